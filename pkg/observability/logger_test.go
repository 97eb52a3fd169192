package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	return entry
}

func TestTracingHandler_AddsServiceAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.Environment = "staging"
	cfg.Mode = observability.ModeMCP

	observability.NewLogger(&buf, cfg).Info("ingest done", "records", 3)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "streamsketch", entry["service"])
	assert.Equal(t, "mcp", entry["mode"])
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, float64(3), entry["records"])
	assert.NotContains(t, entry, "trace_id")
}

func TestTracingHandler_AddsSpanContext(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider()

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true

	observability.NewLogger(&buf, cfg).InfoContext(ctx, "query")

	entry := decodeLine(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestTracingHandler_GroupsKeepServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "svc", "", observability.ModeCLI))

	logger.WithGroup("sketch").With("name", "p50").Info("update")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "svc", entry["service"])
	assert.NotContains(t, entry, "env")

	group, ok := entry["sketch"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p50", group["name"])
}

func TestTracingHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogLevel = slog.LevelWarn

	observability.NewLogger(&buf, cfg).Info("hidden")

	assert.Empty(t, buf.String())
}
