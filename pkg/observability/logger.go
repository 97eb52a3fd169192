package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
)

// TracingHandler is an [slog.Handler] that adds the active span's trace_id
// and span_id to every record. Service, mode and env are attached once at
// construction so they stay top level under WithGroup.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds trace context attributes, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a TracingHandler with attrs added to the inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a TracingHandler with a group on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
