package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Propagator is the W3C trace-context plus baggage propagator installed
// globally by InitTracing.
var Propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// OTel adapts an OpenTelemetry tracer to platform.Tracer.
type OTel struct {
	tracer trace.Tracer
}

// NewOTel wraps a tracer obtained from provider.
func NewOTel(provider trace.TracerProvider, name string) *OTel {
	return &OTel{tracer: provider.Tracer(name)}
}

func (o *OTel) Start(ctx context.Context, name string, attrs map[string]any) (context.Context, platform.Span) {
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

// InitTracing installs a batching OTLP/HTTP tracer provider. An empty
// endpoint leaves tracing disabled and returns the no-op tracer.
func InitTracing(ctx context.Context, endpoint, serviceName string) (platform.Tracer, platform.ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return platform.NoopTracer{}, noop, nil
	}

	hostPort, err := otlpHostPort(endpoint)
	if err != nil {
		return nil, noop, fmt.Errorf("parse tracing endpoint: %w", err)
	}
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(hostPort),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("build tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(Propagator)
	return NewOTel(tp, serviceName), tp.Shutdown, nil
}

// otlpHostPort reduces "http://tempo:4318" to "tempo:4318".
func otlpHostPort(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	port := u.Port()
	if port == "" {
		port = "4318"
	}
	return u.Hostname() + ":" + port, nil
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		case []int64:
			out = append(out, attribute.Int64Slice(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return out
}
