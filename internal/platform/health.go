package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthCheck is a liveness or readiness probe.
type HealthCheck func(context.Context) error

// HealthChecks groups named probes by kind.
type HealthChecks struct {
	Liveness  map[string]HealthCheck
	Readiness map[string]HealthCheck
}

// HealthReporter is implemented by components that contribute probes.
type HealthReporter interface {
	HealthChecks() HealthChecks
}

// HealthRegistry stores probes and serves them over HTTP.
type HealthRegistry struct {
	mu        sync.RWMutex
	liveness  map[string]HealthCheck
	readiness map[string]HealthCheck
}

func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{
		liveness:  map[string]HealthCheck{},
		readiness: map[string]HealthCheck{},
	}
}

func (hr *HealthRegistry) RegisterChecks(checks HealthChecks) {
	for name, check := range checks.Liveness {
		hr.RegisterLiveness(name, check)
	}
	for name, check := range checks.Readiness {
		hr.RegisterReadiness(name, check)
	}
}

func (hr *HealthRegistry) RegisterLiveness(name string, check HealthCheck) {
	if check == nil || name == "" {
		return
	}
	hr.mu.Lock()
	hr.liveness[name] = check
	hr.mu.Unlock()
}

func (hr *HealthRegistry) RegisterReadiness(name string, check HealthCheck) {
	if check == nil || name == "" {
		return
	}
	hr.mu.Lock()
	hr.readiness[name] = check
	hr.mu.Unlock()
}

// Live runs every liveness probe.
func (hr *HealthRegistry) Live(ctx context.Context) ProbeResponse {
	return runChecks(ctx, hr.snapshot(hr.liveness))
}

// Ready runs every readiness probe.
func (hr *HealthRegistry) Ready(ctx context.Context) ProbeResponse {
	return runChecks(ctx, hr.snapshot(hr.readiness))
}

// ReadyErr collapses the readiness probes into a single error.
func (hr *HealthRegistry) ReadyErr(ctx context.Context) error {
	var err error
	for _, res := range hr.Ready(ctx).Results {
		if res.Error != "" {
			err = errors.Join(err, fmt.Errorf("%s: %s", res.Name, res.Error))
		}
	}
	return err
}

func (hr *HealthRegistry) snapshot(checks map[string]HealthCheck) map[string]HealthCheck {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	out := make(map[string]HealthCheck, len(checks))
	for name, check := range checks {
		out[name] = check
	}
	return out
}

// BuildInfo is served on /version.
type BuildInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RegisterHealthEndpoints mounts the probe, metrics and version endpoints.
// A nil metrics handler answers 501.
func RegisterHealthEndpoints(r chi.Router, registry *HealthRegistry, metrics http.Handler, info BuildInfo) {
	if registry == nil {
		registry = NewHealthRegistry()
	}
	r.Get("/healthz", probeHandler(registry.Live))
	r.Get("/livez", probeHandler(registry.Live))
	r.Get("/readyz", probeHandler(registry.Ready))
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotImplemented)
		})
	}
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})
}

func probeHandler(probe func(context.Context) ProbeResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := probe(r.Context())
		status := http.StatusOK
		if summary.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(summary)
	}
}

func runChecks(ctx context.Context, checks map[string]HealthCheck) ProbeResponse {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	results := make([]HealthResult, 0, len(names))
	for _, name := range names {
		result := HealthResult{Name: name}
		if err := checks[name](ctx); err != nil {
			result.Error = err.Error()
			status = "degraded"
		}
		results = append(results, result)
	}

	return ProbeResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Results:   results,
	}
}

// HealthStatusOK always reports healthy.
func HealthStatusOK(context.Context) error { return nil }

type HealthResult struct {
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

type ProbeResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Results   []HealthResult `json:"results,omitempty"`
}
