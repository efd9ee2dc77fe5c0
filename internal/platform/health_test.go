package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestHealthRegistryIgnoresInvalidChecks(t *testing.T) {
	hr := NewHealthRegistry()
	hr.RegisterLiveness("", HealthStatusOK)
	hr.RegisterLiveness("nil", nil)
	hr.RegisterReadiness("", HealthStatusOK)

	if len(hr.liveness) != 0 {
		t.Errorf("liveness checks = %d, want 0", len(hr.liveness))
	}
	if len(hr.readiness) != 0 {
		t.Errorf("readiness checks = %d, want 0", len(hr.readiness))
	}
}

func TestHealthRegistryReady(t *testing.T) {
	hr := NewHealthRegistry()
	hr.RegisterChecks(HealthChecks{
		Liveness:  map[string]HealthCheck{"core": HealthStatusOK},
		Readiness: map[string]HealthCheck{"db": func(context.Context) error { return errors.New("down") }, "cache": HealthStatusOK},
	})

	live := hr.Live(context.Background())
	if live.Status != "ok" {
		t.Errorf("Live().Status = %q, want ok", live.Status)
	}

	ready := hr.Ready(context.Background())
	if ready.Status != "degraded" {
		t.Errorf("Ready().Status = %q, want degraded", ready.Status)
	}
	if len(ready.Results) != 2 || ready.Results[0].Name != "cache" || ready.Results[1].Name != "db" {
		t.Fatalf("Ready().Results = %+v, want cache then db", ready.Results)
	}
	if ready.Results[1].Error != "down" {
		t.Errorf("db error = %q, want down", ready.Results[1].Error)
	}

	err := hr.ReadyErr(context.Background())
	if err == nil || err.Error() != "db: down" {
		t.Errorf("ReadyErr() = %v, want db: down", err)
	}
}

func TestRegisterHealthEndpoints(t *testing.T) {
	hr := NewHealthRegistry()
	hr.RegisterLiveness("core", HealthStatusOK)
	hr.RegisterReadiness("db", func(context.Context) error { return errors.New("unreachable") })

	r := chi.NewRouter()
	RegisterHealthEndpoints(r, hr, nil, BuildInfo{Name: "cruddemo", Version: "1.2.3"})

	tests := []struct {
		path   string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/livez", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/ping", http.StatusOK},
		{"/metrics", http.StatusNotImplemented},
		{"/version", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.status)
			}
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var info BuildInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info.Name != "cruddemo" || info.Version != "1.2.3" {
		t.Errorf("version = %+v", info)
	}
}

func TestRegisterHealthEndpointsMetricsHandler(t *testing.T) {
	r := chi.NewRouter()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("items_stored 3\n"))
	})
	RegisterHealthEndpoints(r, nil, metrics, BuildInfo{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "items_stored 3\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
