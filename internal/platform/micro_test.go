package platform

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeRunner struct {
	name     string
	rec      *recorder
	startErr error
}

func (f *fakeRunner) Start(context.Context) error {
	f.rec.add("runner start " + f.name)
	return f.startErr
}

func (f *fakeRunner) Stop(context.Context) error {
	f.rec.add("runner stop " + f.name)
	return nil
}

func hooks(name string, rec *recorder) LifecycleHooks {
	return LifecycleHooks{
		OnStart: func(context.Context) error { rec.add("start " + name); return nil },
		OnStop:  func(context.Context) error { rec.add("stop " + name); return nil },
	}
}

func TestNewMicroRequiresLoggerAndConfig(t *testing.T) {
	if _, err := NewMicro(WithConfig(NewConfig())); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := NewMicro(WithLogger(NewNoopLogger())); err == nil {
		t.Error("expected error without config")
	}
	if _, err := NewMicro(WithLogger(nil)); err == nil {
		t.Error("expected error for nil logger option")
	}

	cfg, logger := NewConfig(), NewNoopLogger()
	ms, err := NewMicro(WithConfig(cfg), WithLogger(logger), nil)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}
	if ms.Deps().Config != cfg || ms.Deps().Logger != logger {
		t.Error("deps not wired")
	}
	if _, ok := ms.Deps().Tracer.(NoopTracer); !ok {
		t.Errorf("default tracer = %T, want NoopTracer", ms.Deps().Tracer)
	}
}

func TestMicroRunOrdering(t *testing.T) {
	rec := &recorder{}
	ms, err := NewMicro(
		WithConfig(NewConfig()),
		WithLogger(NewNoopLogger()),
		WithLifecycle(hooks("storage", rec), hooks("stats", rec)),
		WithRunner(&fakeRunner{name: "http", rec: rec}),
		WithShutdown(func(context.Context) error { rec.add("shutdown"); return nil }),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ms.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{
		"start storage", "start stats", "runner start http",
		"runner stop http", "stop stats", "stop storage", "shutdown",
	}
	if got := rec.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestMicroRunRollsBackOnRunnerFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("bind failed")
	ms, err := NewMicro(
		WithConfig(NewConfig()),
		WithLogger(NewNoopLogger()),
		WithLifecycle(hooks("storage", rec)),
		WithRunner(&fakeRunner{name: "http", rec: rec}),
		WithRunner(&fakeRunner{name: "grpc", rec: rec, startErr: boom}),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}

	err = ms.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	want := []string{
		"start storage", "runner start http", "runner start grpc",
		"runner stop http", "stop storage",
	}
	if got := rec.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestMicroRunJoinsStopErrors(t *testing.T) {
	stopErr := errors.New("flush failed")
	shutdownErr := errors.New("exporter closed")
	ms, err := NewMicro(
		WithConfig(NewConfig()),
		WithLogger(NewNoopLogger()),
		WithLifecycle(LifecycleHooks{OnStop: func(context.Context) error { return stopErr }}),
		WithShutdown(func(context.Context) error { return shutdownErr }),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ms.Run(ctx)
	if !errors.Is(err, stopErr) || !errors.Is(err, shutdownErr) {
		t.Errorf("Run() error = %v, want both stop and shutdown errors", err)
	}
}

type reportingComponent struct{}

func (reportingComponent) HealthChecks() HealthChecks {
	return HealthChecks{Readiness: map[string]HealthCheck{
		"broker": func(context.Context) error { return errors.New("offline") },
	}}
}

func TestWithLifecycleRegistersHealthChecks(t *testing.T) {
	ms, err := NewMicro(
		WithConfig(NewConfig()),
		WithLogger(NewNoopLogger()),
		WithLifecycle(reportingComponent{}),
		WithHealthChecks("items", nil, HealthStatusOK),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}
	if len(ms.lifecycle) != 0 {
		t.Errorf("lifecycle entries = %d, want 0 for a health-only component", len(ms.lifecycle))
	}

	ready := ms.Health().Ready(context.Background())
	names := make([]string, 0, len(ready.Results))
	for _, r := range ready.Results {
		names = append(names, r.Name)
	}
	if want := []string{"broker", "core", "items"}; !reflect.DeepEqual(names, want) {
		t.Errorf("readiness = %v, want %v", names, want)
	}
	if ready.Status != "degraded" {
		t.Errorf("status = %q, want degraded", ready.Status)
	}
}

func TestOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil config", WithConfig(nil)},
		{"nil runner", WithRunner(nil)},
		{"nil shutdown", WithShutdown(nil)},
		{"nil deps configurer", WithDeps(nil)},
		{"nil router configurator", WithRouterConfigurator(nil)},
		{"empty health name", WithHealthChecks("")},
		{"empty http key", WithHTTPServer("")},
		{"empty grpc key", WithGRPCServer("")},
		{"failing deps", WithDeps(func(*Deps) error { return errors.New("nope") })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMicro(WithConfig(NewConfig()), WithLogger(NewNoopLogger()), tt.opt)
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNilDependencyOptionsKeepNoops(t *testing.T) {
	ms, err := NewMicro(
		WithConfig(NewConfig()),
		WithLogger(NewNoopLogger()),
		WithTracer(nil),
		WithMetrics(nil),
		WithErrorReporter(nil),
		WithPubSub(nil),
	)
	if err != nil {
		t.Fatalf("NewMicro() error = %v", err)
	}
	deps := ms.Deps()
	if _, ok := deps.Metrics.(NoopMetrics); !ok {
		t.Errorf("Metrics = %T", deps.Metrics)
	}
	if _, ok := deps.Errors.(NoopErrorReporter); !ok {
		t.Errorf("Errors = %T", deps.Errors)
	}
	if _, ok := deps.PubSub.(NoopPubSub); !ok {
		t.Errorf("PubSub = %T", deps.PubSub)
	}
}

func TestStartAllRollsBack(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	entries := []lifecycleEntry{
		{start: func(context.Context) error { rec.add("start a"); return nil }, stop: func(context.Context) error { rec.add("stop a"); return nil }},
		{start: func(context.Context) error { rec.add("start b"); return boom }, stop: func(context.Context) error { rec.add("stop b"); return nil }},
	}

	err := startAll(context.Background(), entries)
	if !errors.Is(err, boom) {
		t.Fatalf("startAll() error = %v, want %v", err, boom)
	}
	if want := []string{"start a", "start b", "stop a"}; !reflect.DeepEqual(rec.list(), want) {
		t.Errorf("calls = %v, want %v", rec.list(), want)
	}
}
