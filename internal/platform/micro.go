package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Micro wires dependencies, owns the runners and drives their lifecycle.
type Micro struct {
	deps      *Deps
	health    *HealthRegistry
	buildInfo BuildInfo

	mu              sync.RWMutex
	runners         []Runner
	lifecycle       []lifecycleEntry
	shutdown        []ShutdownFunc
	httpConfigured  bool
	httpMiddlewares []func(http.Handler) http.Handler
	routerConfig    []func(*chi.Mux)
	metricsHandler  http.Handler
	debugRoutes     bool
	debugGuards     []func(http.Handler) http.Handler
}

// ShutdownFunc runs after every runner and component has stopped.
type ShutdownFunc func(context.Context) error

// NewMicro applies opts in order. Logger and Config are mandatory.
func NewMicro(opts ...Option) (*Micro, error) {
	ms := &Micro{
		deps:   DefaultDeps(),
		health: NewHealthRegistry(),
	}
	ms.health.RegisterLiveness("core", HealthStatusOK)
	ms.health.RegisterReadiness("core", HealthStatusOK)

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(ms); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	if ms.deps.Logger == nil {
		return nil, errors.New("logger dependency must be configured")
	}
	if ms.deps.Config == nil {
		return nil, errors.New("config dependency must be configured")
	}
	return ms, nil
}

// Run starts components then runners, blocks until ctx is done and tears
// everything down in reverse order. Stop and shutdown errors are joined.
func (ms *Micro) Run(ctx context.Context) error {
	ms.mu.RLock()
	runners := append([]Runner(nil), ms.runners...)
	lifecycle := append([]lifecycleEntry(nil), ms.lifecycle...)
	shutdown := append([]ShutdownFunc(nil), ms.shutdown...)
	ms.mu.RUnlock()

	log := ms.deps.Logger
	if err := startAll(ctx, lifecycle); err != nil {
		return err
	}

	for i, runner := range runners {
		if err := runner.Start(ctx); err != nil {
			err = fmt.Errorf("runner start: %w", err)
			for j := i - 1; j >= 0; j-- {
				if stopErr := runners[j].Stop(context.Background()); stopErr != nil {
					err = errors.Join(err, fmt.Errorf("runner rollback: %w", stopErr))
				}
			}
			if stopErr := stopAll(context.Background(), lifecycle); stopErr != nil {
				err = errors.Join(err, fmt.Errorf("lifecycle rollback: %w", stopErr))
			}
			return err
		}
	}
	log.Info("service started", "name", ms.buildInfo.Name, "version", ms.buildInfo.Version)

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx := context.WithoutCancel(ctx)
	var agg error
	for i := len(runners) - 1; i >= 0; i-- {
		if err := runners[i].Stop(stopCtx); err != nil {
			agg = errors.Join(agg, fmt.Errorf("runner stop: %w", err))
		}
	}
	if err := stopAll(stopCtx, lifecycle); err != nil {
		agg = errors.Join(agg, fmt.Errorf("lifecycle stop: %w", err))
	}
	for _, hook := range shutdown {
		if err := hook(stopCtx); err != nil {
			agg = errors.Join(agg, fmt.Errorf("shutdown hook: %w", err))
		}
	}
	return agg
}

// Deps exposes the wired dependency container.
func (ms *Micro) Deps() *Deps {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.deps
}

// Health exposes the probe registry shared by HTTP and gRPC.
func (ms *Micro) Health() *HealthRegistry {
	return ms.health
}

func (ms *Micro) addRunner(r Runner) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.runners = append(ms.runners, r)
}

func (ms *Micro) addShutdown(fn ShutdownFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.shutdown = append(ms.shutdown, fn)
}

// addComponent registers the Start/Stop/HealthChecks a component offers.
func (ms *Micro) addComponent(component any) {
	var entry lifecycleEntry
	if s, ok := component.(Startable); ok {
		entry.start = s.Start
	}
	if s, ok := component.(Stoppable); ok {
		entry.stop = s.Stop
	}
	if hr, ok := component.(HealthReporter); ok {
		ms.health.RegisterChecks(hr.HealthChecks())
	}
	if entry.start == nil && entry.stop == nil {
		return
	}
	ms.mu.Lock()
	ms.lifecycle = append(ms.lifecycle, entry)
	ms.mu.Unlock()
}
