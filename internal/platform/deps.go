package platform

import (
	"context"
	"time"
)

// Deps carries the cross-cutting collaborators shared by every module.
type Deps struct {
	Logger  Logger
	Config  *Config
	Metrics Metrics
	Tracer  Tracer
	Errors  ErrorReporter
	PubSub  PubSub
}

// DefaultDeps returns a container with no-op collaborators. Logger and
// Config are left nil on purpose; Micro refuses to start without them.
func DefaultDeps() *Deps {
	return &Deps{
		Metrics: NoopMetrics{},
		Tracer:  NoopTracer{},
		Errors:  NoopErrorReporter{},
		PubSub:  NoopPubSub{},
	}
}

// Metrics is the small emission surface modules depend on.
type Metrics interface {
	Counter(ctx context.Context, name string, value float64, labels map[string]string)
	Gauge(ctx context.Context, name string, value float64, labels map[string]string)
	ObserveHTTPRequest(path, method string, status int, duration time.Duration)
}

// Tracer creates spans around units of work.
type Tracer interface {
	Start(ctx context.Context, name string, attrs map[string]any) (context.Context, Span)
}

// Span is ended exactly once with the outcome of the traced work.
type Span interface {
	End(err error)
}

// PubSub publishes opaque payloads to a named subject.
type PubSub interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

type NoopMetrics struct{}

type NoopTracer struct{}

type NoopSpan struct{}

type NoopPubSub struct{}

func (NoopMetrics) Counter(context.Context, string, float64, map[string]string) {}
func (NoopMetrics) Gauge(context.Context, string, float64, map[string]string)   {}
func (NoopMetrics) ObserveHTTPRequest(string, string, int, time.Duration)       {}

func (NoopTracer) Start(ctx context.Context, _ string, _ map[string]any) (context.Context, Span) {
	return ctx, NoopSpan{}
}

func (NoopSpan) End(error) {}

func (NoopPubSub) Publish(context.Context, string, []byte) error { return nil }
