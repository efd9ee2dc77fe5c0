package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Option mutates Micro during construction.
type Option func(*Micro) error

func WithLogger(logger Logger) Option {
	return func(ms *Micro) error {
		if logger == nil {
			return errors.New("nil logger provided")
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.deps.Logger = logger
		return nil
	}
}

func WithConfig(cfg *Config) Option {
	return func(ms *Micro) error {
		if cfg == nil {
			return errors.New("nil config provided")
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.deps.Config = cfg
		return nil
	}
}

// WithTracer installs the tracer; nil keeps the no-op one.
func WithTracer(tracer Tracer) Option {
	return func(ms *Micro) error {
		if tracer == nil {
			tracer = NoopTracer{}
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.deps.Tracer = tracer
		return nil
	}
}

// WithMetrics installs the metrics sink; nil keeps the no-op one.
func WithMetrics(metrics Metrics) Option {
	return func(ms *Micro) error {
		if metrics == nil {
			metrics = NoopMetrics{}
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.deps.Metrics = metrics
		return nil
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(ms *Micro) error {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.metricsHandler = h
		return nil
	}
}

func WithErrorReporter(reporter ErrorReporter) Option {
	return func(ms *Micro) error {
		if reporter == nil {
			reporter = NoopErrorReporter{}
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.deps.Errors = reporter
		return nil
	}
}

func WithPubSub(ps PubSub) Option {
	return func(ms *Micro) error {
		if ps == nil {
			ps = NoopPubSub{}
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.deps.PubSub = ps
		return nil
	}
}

// WithBuildInfo sets what /version reports.
func WithBuildInfo(name, version string) Option {
	return func(ms *Micro) error {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.buildInfo = BuildInfo{Name: name, Version: version}
		return nil
	}
}

// WithHealthChecks registers a named liveness and readiness probe pair.
// Missing or nil checks default to HealthStatusOK.
func WithHealthChecks(name string, checks ...HealthCheck) Option {
	return func(ms *Micro) error {
		if name == "" {
			return errors.New("health check name required")
		}
		liveness, readiness := HealthCheck(HealthStatusOK), HealthCheck(HealthStatusOK)
		if len(checks) > 0 && checks[0] != nil {
			liveness = checks[0]
		}
		if len(checks) > 1 && checks[1] != nil {
			readiness = checks[1]
		}
		ms.health.RegisterLiveness(name, liveness)
		ms.health.RegisterReadiness(name, readiness)
		return nil
	}
}

// WithDebugRoutes enables /debug/routes, reachable only through guards.
func WithDebugRoutes(guards ...func(http.Handler) http.Handler) Option {
	return func(ms *Micro) error {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.debugRoutes = true
		ms.debugGuards = append(ms.debugGuards, guards...)
		return nil
	}
}

// WithLifecycle registers components whose Start/Stop run around the
// runners. Components that report health checks get them registered too.
func WithLifecycle(components ...any) Option {
	return func(ms *Micro) error {
		for _, c := range components {
			if c != nil {
				ms.addComponent(c)
			}
		}
		return nil
	}
}

func WithRunner(r Runner) Option {
	return func(ms *Micro) error {
		if r == nil {
			return errors.New("nil runner provided")
		}
		ms.addRunner(r)
		return nil
	}
}

// WithHTTPMiddleware appends middlewares, applied in order. It must come
// before WithHTTPServer.
func WithHTTPMiddleware(middlewares ...func(http.Handler) http.Handler) Option {
	return func(ms *Micro) error {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		if ms.httpConfigured {
			return errors.New("http middleware must be registered before the http server")
		}
		ms.httpMiddlewares = append(ms.httpMiddlewares, middlewares...)
		return nil
	}
}

// WithRouterConfigurator mutates the mux before modules register routes.
func WithRouterConfigurator(configurer func(*chi.Mux)) Option {
	return func(ms *Micro) error {
		if configurer == nil {
			return errors.New("nil router configurator provided")
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.routerConfig = append(ms.routerConfig, configurer)
		return nil
	}
}

func WithShutdown(fn ShutdownFunc) Option {
	return func(ms *Micro) error {
		if fn == nil {
			return errors.New("nil shutdown hook provided")
		}
		ms.addShutdown(fn)
		return nil
	}
}

// WithDeps allows bulk mutation of the dependency container.
func WithDeps(configurer func(*Deps) error) Option {
	return func(ms *Micro) error {
		if configurer == nil {
			return errors.New("nil dependency configurer provided")
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		if err := configurer(ms.deps); err != nil {
			return fmt.Errorf("configuring dependencies: %w", err)
		}
		return nil
	}
}
