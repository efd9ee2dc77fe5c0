package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	ErrorLevel
)

type Logger interface {
	Debug(v ...any)
	Debugf(format string, a ...any)
	Info(v ...any)
	Infof(format string, a ...any)
	Error(v ...any)
	Errorf(format string, a ...any)
	SetLogLevel(level LogLevel)
	With(args ...any) Logger
}

// slogLogger shares one LevelVar with every logger derived through With,
// so SetLogLevel applies to all of them.
type slogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewLogger writes to stdout. The handler is text unless LOG_FORMAT=json.
func NewLogger(level string) Logger {
	return NewLoggerTo(os.Stdout, level, os.Getenv("LOG_FORMAT") == "json")
}

// NewLoggerTo builds a Logger on an arbitrary writer.
func NewLoggerTo(w io.Writer, level string, json bool) Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(ParseLogLevel(level)))
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &slogLogger{logger: slog.New(handler), level: lvl}
}

func (l *slogLogger) Debug(v ...any) {
	msg, attrs := splitArgs(v...)
	l.logger.Debug(msg, attrs...)
}

func (l *slogLogger) Debugf(format string, a ...any) {
	if l.logger.Enabled(context.Background(), slog.LevelDebug) {
		l.logger.Debug(fmt.Sprintf(format, a...))
	}
}

func (l *slogLogger) Info(v ...any) {
	msg, attrs := splitArgs(v...)
	l.logger.Info(msg, attrs...)
}

func (l *slogLogger) Infof(format string, a ...any) {
	if l.logger.Enabled(context.Background(), slog.LevelInfo) {
		l.logger.Info(fmt.Sprintf(format, a...))
	}
}

func (l *slogLogger) Error(v ...any) {
	msg, attrs := splitArgs(v...)
	l.logger.Error(msg, attrs...)
}

func (l *slogLogger) Errorf(format string, a ...any) {
	l.logger.Error(fmt.Sprintf(format, a...))
}

func (l *slogLogger) SetLogLevel(level LogLevel) {
	l.level.Set(slogLevel(level))
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), level: l.level}
}

type noopLogger struct{}

func (noopLogger) Debug(...any)          {}
func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Info(...any)           {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Error(...any)          {}
func (noopLogger) Errorf(string, ...any) {}
func (noopLogger) SetLogLevel(LogLevel)  {}
func (noopLogger) With(...any) Logger    { return noopLogger{} }

func NewNoopLogger() Logger {
	return noopLogger{}
}

// ParseLogLevel maps "debug", "info" and "error" (and their short forms)
// to a LogLevel. Unknown values fall back to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "dbg":
		return DebugLevel
	case "error", "err":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// splitArgs treats the first argument as the message and the rest as
// key/value pairs. An odd tail is folded into the message.
func splitArgs(args ...any) (string, []any) {
	if len(args) == 0 {
		return "", nil
	}
	msg := fmt.Sprint(args[0])
	rest := args[1:]
	if len(rest) == 0 {
		return msg, nil
	}
	allAttrs := true
	for _, a := range rest {
		if _, ok := a.(slog.Attr); !ok {
			allAttrs = false
			break
		}
	}
	if allAttrs || len(rest)%2 == 0 {
		return msg, rest
	}
	return fmt.Sprint(args...), nil
}

// NewRequestLogger returns a chi RequestLogger that emits one structured
// line per completed request.
func NewRequestLogger(logger Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return chimiddleware.RequestLogger(&requestLogFormatter{logger: logger})
}

type requestLogFormatter struct {
	logger Logger
}

func (f *requestLogFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	entry := f.logger.With(
		"request_id", RequestIDFrom(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
	entry.Debug("request started", "remote_addr", r.RemoteAddr)
	return &requestLogEntry{logger: entry}
}

type requestLogEntry struct {
	logger Logger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	e.logger.Info("request completed",
		"status", status,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

func (e *requestLogEntry) Panic(v any, stack []byte) {
	e.logger.Error("request panic", "panic", fmt.Sprint(v), "stack", string(stack))
}
