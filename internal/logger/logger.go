// Package logger provides structured logging using zerolog.
// It sets up a JSON logger with service-level context and provides
// trace ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded, and is
// installed as the zerolog global so log.Info() etc. share it.
func Init(service, level string) zerolog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit output. An unparsable level falls back
// to info.
func InitWriter(w io.Writer, service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	log.Logger = logger
	return logger
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID from a symbol and timestamp.
// Format: "{symbol}-{unixNano}".
func GenerateTraceID(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, ts.UnixNano())
}

// Ctx returns l with the context's trace ID attached, if any.
// Usage: logger.Ctx(ctx, l).Info().Msg("...")
func Ctx(ctx context.Context, l zerolog.Logger) *zerolog.Logger {
	tid := TraceID(ctx)
	if tid == "" {
		return &l
	}
	out := l.With().Str("trace_id", tid).Logger()
	return &out
}
