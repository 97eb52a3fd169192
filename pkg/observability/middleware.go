package observability

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const httpStatusServerError = 500

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}

	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(buf []byte) (int, error) {
	if !sw.written {
		sw.statusCode = http.StatusOK
		sw.written = true
	}

	n, err := sw.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

// OpNamer names a request for spans and metrics, typically "METHOD /route/{template}".
type OpNamer func(*http.Request) string

// PathOp names a request by its method and raw path.
func PathOp(hr *http.Request) string {
	return hr.Method + " " + hr.URL.Path
}

// HTTPMiddleware returns an [http.Handler] that creates a server span per
// request, records RED metrics when red is non-nil, and propagates W3C
// trace context from incoming headers.
func HTTPMiddleware(tracer trace.Tracer, red *REDMetrics, name OpNamer, next http.Handler) http.Handler {
	if name == nil {
		name = PathOp
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		op := name(hr)
		start := time.Now()

		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(parentCtx, op,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				attribute.String("http.target", hr.URL.Path),
			),
		)
		defer span.End()

		if red != nil {
			defer red.TrackInflight(ctx, op)()
		}

		sw := &statusWriter{ResponseWriter: rw, statusCode: http.StatusOK}
		next.ServeHTTP(sw, hr.WithContext(ctx))

		span.SetAttributes(semconv.HTTPResponseStatusCode(sw.statusCode))

		status := StatusOK
		if sw.statusCode >= httpStatusServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.statusCode))

			status = StatusError
		}

		if red != nil {
			red.RecordRequest(ctx, op, status, time.Since(start))
		}
	})
}
