package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "test-service", "info")
	l.Info().Msg("hello")
	l.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, `"service":"test-service"`)
	assert.Contains(t, out, `"message":"hello"`)
	assert.NotContains(t, out, "hidden")
}

func TestInitWriter_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "svc", "loud")
	l.Info().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "svc", "debug")
	c := Component("monitor")
	c.Info().Msg("tick")
	assert.Contains(t, buf.String(), `"component":"monitor"`)
}

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", TraceID(ctx))

	ctx = WithTraceID(ctx, "test-trace-123")
	assert.Equal(t, "test-trace-123", TraceID(ctx))
}

func TestGenerateTraceID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	tid := GenerateTraceID("BTCUSDT", ts)

	require.NotEmpty(t, tid)
	assert.True(t, strings.HasPrefix(tid, "BTCUSDT-"))
	assert.Contains(t, tid, "123456789")
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	l := InitWriter(&buf, "svc", "info")

	Ctx(context.Background(), l).Info().Msg("plain")
	assert.NotContains(t, buf.String(), "trace_id")

	Ctx(WithTraceID(context.Background(), "abc-123"), l).Info().Msg("traced")
	assert.Contains(t, buf.String(), `"trace_id":"abc-123"`)
}
