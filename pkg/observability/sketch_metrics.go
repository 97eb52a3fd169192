package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricSketchUpdates = "streamsketch.sketch.updates.total"
	metricIngestRecords = "streamsketch.ingest.records.total"
	metricIngestErrors  = "streamsketch.ingest.errors.total"
	metricIngestBytes   = "streamsketch.ingest.bytes.total"

	attrSketch = "sketch"
	attrKind   = "kind"
	attrSource = "source"
)

// SketchMetrics counts sketch updates and ingest progress.
type SketchMetrics struct {
	updates       metric.Int64Counter
	ingestRecords metric.Int64Counter
	ingestErrors  metric.Int64Counter
	ingestBytes   metric.Int64Counter
}

// NewSketchMetrics creates the sketch instruments from the given meter.
func NewSketchMetrics(mt metric.Meter) (*SketchMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &SketchMetrics{
		updates:       b.counter(metricSketchUpdates, "Records applied to sketches", "{record}"),
		ingestRecords: b.counter(metricIngestRecords, "Records read by ingest", "{record}"),
		ingestErrors:  b.counter(metricIngestErrors, "Malformed or rejected ingest records", "{record}"),
		ingestBytes:   b.counter(metricIngestBytes, "Decompressed bytes read by ingest", "By"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordUpdate counts one record applied to a sketch.
func (sm *SketchMetrics) RecordUpdate(ctx context.Context, name, kind string) {
	sm.updates.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSketch, name),
		attribute.String(attrKind, kind),
	))
}

// RecordIngest adds the totals of one finished ingest source.
func (sm *SketchMetrics) RecordIngest(ctx context.Context, source string, records, errs, bytes int64) {
	attrs := metric.WithAttributes(attribute.String(attrSource, source))

	sm.ingestRecords.Add(ctx, records, attrs)
	sm.ingestErrors.Add(ctx, errs, attrs)
	sm.ingestBytes.Add(ctx, bytes, attrs)
}
