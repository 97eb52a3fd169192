package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "streamsketch"
	meterName  = "streamsketch"
)

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// MetricsHandler serves the Prometheus scrape endpoint. It is nil unless
	// Config.Prometheus is set.
	MetricsHandler http.Handler

	// Shutdown flushes pending telemetry. Must be called before exit.
	Shutdown func(ctx context.Context) error
}

// Init initializes OpenTelemetry tracing, metrics, and structured logging.
// With no OTLP endpoint and Prometheus disabled, no-op providers are used.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	tp, tpShutdown, err := buildTracerProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", err)
	}

	mp, metricsHandler, mpShutdown, err := buildMeterProvider(ctx, cfg, res)
	if err != nil {
		shutdownErr := tpShutdown(ctx)

		return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", err), shutdownErr)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(shutdownCtx context.Context) error {
		timeoutDur := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
		if timeoutDur <= 0 {
			timeoutDur = time.Duration(defaultShutdownTimeoutSec) * time.Second
		}

		deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeoutDur)
		defer cancel()

		return errors.Join(tpShutdown(deadlineCtx), mpShutdown(deadlineCtx))
	}

	return Providers{
		Tracer:         tp.Tracer(tracerName),
		Meter:          mp.Meter(meterName),
		Logger:         NewLogger(os.Stderr, cfg),
		MetricsHandler: metricsHandler,
		Shutdown:       shutdown,
	}, nil
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(cfg.Mode)))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

type shutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error { return nil }

func buildTracerProvider(
	ctx context.Context, cfg Config, res *resource.Resource,
) (trace.TracerProvider, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), noopShutdown, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}

	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)

	return tp, tp.Shutdown, nil
}

func selectSampler(cfg Config) sdktrace.Sampler {
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

func buildMeterProvider(
	ctx context.Context,
	cfg Config,
	res *resource.Resource,
) (metric.MeterProvider, http.Handler, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" && !cfg.Prometheus {
		return noopmetric.NewMeterProvider(), nil, noopShutdown, nil
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	var handler http.Handler

	if cfg.Prometheus {
		// A private registry keeps repeated Init calls from colliding.
		registry := prometheus.NewRegistry()

		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(exporter))
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	if cfg.OTLPEndpoint != "" {
		grpcOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}

		if cfg.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(cfg.OTLPHeaders) > 0 {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders))
		}

		exporter, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	mp := sdkmetric.NewMeterProvider(opts...)

	return mp, handler, mp.Shutdown, nil
}

// NewLogger builds the slog logger used by every mode: a text or JSON
// handler on w, wrapped by TracingHandler.
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(w, handlerOpts)
	} else {
		inner = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

// ParseOTLPHeaders parses a "key=value,key=value" header list. It returns
// nil for empty or invalid input.
func ParseOTLPHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}

	result := make(map[string]string)

	for pair := range strings.SplitSeq(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}

		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
