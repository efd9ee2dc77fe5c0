package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPModule registers its routes on the shared router.
type HTTPModule interface {
	RegisterRoutes(router chi.Router)
}

// HTTPModuleFactory builds a module from the dependency container.
type HTTPModuleFactory func(*Deps) (HTTPModule, error)

// WithHTTPServerModules wraps ready-made modules and delegates to
// WithHTTPServer.
func WithHTTPServerModules(addrKey string, modules ...HTTPModule) Option {
	factories := make([]HTTPModuleFactory, len(modules))
	for i, module := range modules {
		mod := module
		factories[i] = func(*Deps) (HTTPModule, error) {
			if mod == nil {
				return nil, errors.New("nil http module provided")
			}
			return mod, nil
		}
	}
	return WithHTTPServer(addrKey, factories...)
}

// WithHTTPServer builds the chi router, mounts health, debug and module
// routes and adds the listener as a runner. Modules that are Startable,
// Stoppable or HealthReporters are hooked into the lifecycle.
func WithHTTPServer(addrKey string, factories ...HTTPModuleFactory) Option {
	return func(ms *Micro) error {
		if addrKey == "" {
			return errors.New("http addr property key required")
		}

		ms.mu.Lock()
		if ms.httpConfigured {
			ms.mu.Unlock()
			return errors.New("http server already configured")
		}
		ms.httpConfigured = true
		middlewares := append([]func(http.Handler) http.Handler(nil), ms.httpMiddlewares...)
		configurers := append([]func(*chi.Mux){}, ms.routerConfig...)
		debug, guards := ms.debugRoutes, ms.debugGuards
		metrics, info := ms.metricsHandler, ms.buildInfo
		ms.mu.Unlock()

		router := chi.NewRouter()
		for _, mw := range middlewares {
			if mw != nil {
				router.Use(mw)
			}
		}
		RegisterHealthEndpoints(router, ms.health, metrics, info)
		RegisterDebugRoutes(router, debug, guards...)
		for _, configure := range configurers {
			configure(router)
		}

		for _, factory := range factories {
			if factory == nil {
				return errors.New("nil http module factory")
			}
			module, err := factory(ms.deps)
			if err != nil {
				return fmt.Errorf("building http module: %w", err)
			}
			if module == nil {
				return errors.New("http module factory returned nil module")
			}
			module.RegisterRoutes(router)
			ms.addComponent(module)
		}

		server := &http.Server{
			Addr:              ms.deps.Config.GetPort(addrKey, ":8080"),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		ms.addRunner(newHTTPServerRunner(server, ms.deps.Logger))
		return nil
	}
}

type httpServerRunner struct {
	server *http.Server
	log    Logger
	errCh  chan error
}

func newHTTPServerRunner(server *http.Server, log Logger) Runner {
	if log == nil {
		log = NewNoopLogger()
	}
	return &httpServerRunner{server: server, log: log, errCh: make(chan error, 1)}
}

// Start binds synchronously so address errors surface here, then serves
// in the background.
func (r *httpServerRunner) Start(_ context.Context) error {
	lis, err := net.Listen("tcp", r.server.Addr)
	if err != nil {
		return fmt.Errorf("http listen on %s: %w", r.server.Addr, err)
	}
	r.log.Info("http server listening", "addr", lis.Addr().String())
	go func() {
		if err := r.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.errCh <- err
		}
		close(r.errCh)
	}()
	return nil
}

func (r *httpServerRunner) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := r.server.Shutdown(shutdownCtx)
	select {
	case srvErr, ok := <-r.errCh:
		if ok && srvErr != nil {
			err = errors.Join(err, srvErr)
		}
	default:
	}
	return err
}
