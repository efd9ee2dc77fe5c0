package platform

import "context"

// ErrorReporter receives unexpected failures for alerting.
type ErrorReporter interface {
	Report(ctx context.Context, err error, fields map[string]any)
}

// ErrorReporterFunc adapts a function into an ErrorReporter.
type ErrorReporterFunc func(ctx context.Context, err error, fields map[string]any)

func (f ErrorReporterFunc) Report(ctx context.Context, err error, fields map[string]any) {
	if f == nil {
		return
	}
	f(ctx, err, fields)
}

// NoopErrorReporter drops all reports.
type NoopErrorReporter struct{}

func (NoopErrorReporter) Report(context.Context, error, map[string]any) {}

// NewLoggingErrorReporter writes every report as an error line.
func NewLoggingErrorReporter(logger Logger) ErrorReporter {
	if logger == nil {
		return NoopErrorReporter{}
	}
	return ErrorReporterFunc(func(ctx context.Context, err error, fields map[string]any) {
		args := []any{"error", err}
		if id := RequestIDFrom(ctx); id != "" {
			args = append(args, "request_id", id)
		}
		for k, v := range fields {
			args = append(args, k, v)
		}
		logger.Error(append([]any{"unexpected failure"}, args...)...)
	})
}
