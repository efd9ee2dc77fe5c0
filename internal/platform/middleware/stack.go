package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/propagation"
)

// StackOptions configures the default middleware bundle.
type StackOptions struct {
	Logger              platform.Logger
	Metrics             platform.Metrics
	Tracer              platform.Tracer
	Propagator          propagation.TextMapPropagator
	Errors              platform.ErrorReporter
	Timeout             time.Duration
	CompressLevel       int
	AllowedContentTypes []string
}

// DefaultStack returns the middlewares in the order they must be applied.
func DefaultStack(opts StackOptions) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		RequestID(),
		RealIP(),
		Compress(opts.CompressLevel),
		Recoverer(),
		ErrorReporter(opts.Errors),
		Timeout(opts.Timeout),
		RequestLogger(opts.Logger),
		Metrics(opts.Metrics),
		Tracing(opts.Tracer, opts.Propagator),
		AllowContentType(opts.AllowedContentTypes...),
	}
}

func RequestID() func(http.Handler) http.Handler {
	return platform.RequestIDMiddleware
}

func RealIP() func(http.Handler) http.Handler {
	return chimiddleware.RealIP
}

// Compress enables gzip; non-positive levels fall back to 5.
func Compress(level int) func(http.Handler) http.Handler {
	if level <= 0 {
		level = 5
	}
	return chimiddleware.Compress(level)
}

func Recoverer() func(http.Handler) http.Handler {
	return chimiddleware.Recoverer
}

// Timeout aborts requests after duration, 60s when unset.
func Timeout(duration time.Duration) func(http.Handler) http.Handler {
	if duration <= 0 {
		duration = 60 * time.Second
	}
	return chimiddleware.Timeout(duration)
}

func RequestLogger(logger platform.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = platform.NewNoopLogger()
	}
	return platform.NewRequestLogger(logger)
}

// Metrics counts requests and observes their latency. The path label is the
// matched route pattern so ids do not explode cardinality.
func Metrics(metrics platform.Metrics) func(http.Handler) http.Handler {
	if metrics == nil {
		metrics = platform.NoopMetrics{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(recorder, r)

			path := routePattern(r)
			labels := map[string]string{
				"method": r.Method,
				"path":   path,
				"status": strconv.Itoa(recorder.Status()),
			}
			metrics.Counter(r.Context(), "http_requests_total", 1, labels)
			metrics.ObserveHTTPRequest(path, r.Method, recorder.Status(), time.Since(start))
		})
	}
}

// Tracing extracts the caller's trace context and wraps the request in a
// span named after the method and path.
func Tracing(tracer platform.Tracer, propagator propagation.TextMapPropagator) func(http.Handler) http.Handler {
	if tracer == nil {
		tracer = platform.NoopTracer{}
	}
	if propagator == nil {
		propagator = propagation.TraceContext{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, map[string]any{
				"http.method": r.Method,
				"http.target": r.URL.Path,
				"request.id":  platform.RequestIDFrom(r.Context()),
			})
			recorder := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(recorder, r.WithContext(ctx))

			var err error
			if recorder.Status() >= http.StatusInternalServerError {
				err = fmt.Errorf("http %d", recorder.Status())
			}
			span.End(err)
		})
	}
}

// ErrorReporter forwards 5xx responses and panics to the reporter.
func ErrorReporter(reporter platform.ErrorReporter) func(http.Handler) http.Handler {
	if reporter == nil {
		reporter = platform.NoopErrorReporter{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if rec := recover(); rec != nil {
					reporter.Report(r.Context(), toError(rec), errorFields(r, 0))
					panic(rec)
				}
			}()

			next.ServeHTTP(recorder, r)

			if status := recorder.Status(); status >= http.StatusInternalServerError {
				reporter.Report(r.Context(), fmt.Errorf("http %d", status), errorFields(r, status))
			}
		})
	}
}

// AllowContentType rejects request bodies of unsupported media types.
func AllowContentType(types ...string) func(http.Handler) http.Handler {
	if len(types) == 0 {
		types = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}
	}
	return chimiddleware.AllowContentType(types...)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func errorFields(r *http.Request, status int) map[string]any {
	fields := map[string]any{
		"request_id": platform.RequestIDFrom(r.Context()),
		"path":       r.URL.Path,
		"method":     r.Method,
	}
	if status != 0 {
		fields["status"] = status
	}
	return fields
}

func toError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
