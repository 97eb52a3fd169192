package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "streamsketch.requests.total"
	metricRequestDuration  = "streamsketch.request.duration.seconds"
	metricErrorsTotal      = "streamsketch.errors.total"
	metricInflightRequests = "streamsketch.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK labels a successful request.
	StatusOK = "ok"
	// StatusError labels a failed request.
	StatusError = "error"
)

// Sketch operations are microseconds; bulk ingest over HTTP can take seconds.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}
