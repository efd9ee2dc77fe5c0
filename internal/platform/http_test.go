package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type testModule struct {
	started bool
}

func (m *testModule) RegisterRoutes(r chi.Router) {
	r.Get("/widgets", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (m *testModule) Start(context.Context) error {
	m.started = true
	return nil
}

func TestWithHTTPServerRegistersModules(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("http.port", "127.0.0.1:0")
	module := &testModule{}

	ms, err := NewMicro(
		WithConfig(cfg),
		WithLogger(NewNoopLogger()),
		WithHTTPServerModules("http.port", module),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}
	if len(ms.runners) != 1 {
		t.Fatalf("runners = %d, want 1", len(ms.runners))
	}
	if len(ms.lifecycle) != 1 {
		t.Fatalf("lifecycle entries = %d, want 1", len(ms.lifecycle))
	}

	runner := ms.runners[0].(*httpServerRunner)
	if runner.server.Addr != "127.0.0.1:0" {
		t.Errorf("addr = %q", runner.server.Addr)
	}

	rec := httptest.NewRecorder()
	runner.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /widgets = %d, want 200", rec.Code)
	}
	rec = httptest.NewRecorder()
	runner.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ms.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !module.started {
		t.Error("module Start was not called")
	}
}

func TestWithHTTPServerAppliesRouterConfigurators(t *testing.T) {
	var calls int
	ms, err := NewMicro(
		WithConfig(NewConfig()),
		WithLogger(NewNoopLogger()),
		WithRouterConfigurator(func(r *chi.Mux) {
			calls++
			r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		}),
		WithHTTPServerModules("http.port"),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("configurator calls = %d, want 1", calls)
	}

	rec := httptest.NewRecorder()
	ms.runners[0].(*httpServerRunner).server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("GET /version = %d, want 204", rec.Code)
	}
}

func TestWithHTTPServerOrdering(t *testing.T) {
	base := []Option{WithConfig(NewConfig()), WithLogger(NewNoopLogger())}

	_, err := NewMicro(append(base,
		WithHTTPServerModules("http.port"),
		WithHTTPServerModules("http.port"),
	)...)
	if err == nil {
		t.Error("expected error when configuring the http server twice")
	}

	_, err = NewMicro(append(base,
		WithHTTPServerModules("http.port"),
		WithHTTPMiddleware(RequestIDMiddleware),
	)...)
	if err == nil {
		t.Error("expected error for middleware registered after the server")
	}

	_, err = NewMicro(append(base, WithHTTPServerModules("http.port", nil))...)
	if err == nil {
		t.Error("expected error for nil module")
	}

	_, err = NewMicro(append(base, WithHTTPServer("http.port", func(*Deps) (HTTPModule, error) {
		return nil, errors.New("no storage")
	}))...)
	if err == nil {
		t.Error("expected error from failing factory")
	}
}

func TestHTTPServerMiddlewareAndDebugRoutes(t *testing.T) {
	var seen string
	capture := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFrom(r.Context())
			next.ServeHTTP(w, r)
		})
	}
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}

	ms, err := NewMicro(
		WithConfig(NewConfig()),
		WithLogger(NewNoopLogger()),
		WithHTTPMiddleware(RequestIDMiddleware, capture),
		WithDebugRoutes(deny),
		WithHTTPServerModules("http.port"),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}
	handler := ms.runners[0].(*httpServerRunner).server.Handler

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "req-42" {
		t.Errorf("request id = %q, want req-42", seen)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/routes", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("GET /debug/routes = %d, want 403", rec.Code)
	}
}
