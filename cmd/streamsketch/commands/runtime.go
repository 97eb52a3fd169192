package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
	"github.com/Sumatoshi-tech/streamsketch/pkg/config"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
	"github.com/Sumatoshi-tech/streamsketch/pkg/version"
)

// runtime is the wired state shared by the long-running commands.
type runtime struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.SketchMetrics
	reg       *registry.Registry
}

// newRuntime loads configuration, initializes telemetry for mode and builds
// the registry. Callers must call close.
func newRuntime(flags *GlobalFlags, mode observability.AppMode, prometheus bool) (*runtime, error) {
	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	providers, err := observability.Init(observabilityConfig(cfg, flags, mode, prometheus))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	rt := &runtime{cfg: cfg, providers: providers}

	rt.metrics, err = observability.NewSketchMetrics(providers.Meter)
	if err != nil {
		rt.close()

		return nil, err
	}

	rt.reg, err = registry.New(cfg.Sketches, registry.WithMetrics(rt.metrics))
	if err != nil {
		rt.close()

		return nil, err
	}

	providers.Logger.Debug("runtime ready", "sketches", rt.reg.Len(), "mode", string(mode))

	return rt, nil
}

func (rt *runtime) logger() *slog.Logger {
	return rt.providers.Logger
}

func (rt *runtime) close() {
	if err := rt.providers.Shutdown(context.Background()); err != nil {
		rt.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

func observabilityConfig(cfg *config.Config, flags *GlobalFlags, mode observability.AppMode, prometheus bool) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.Environment = cfg.Telemetry.Environment
	obs.Mode = mode
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obs.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obs.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obs.SampleRatio = cfg.Telemetry.SampleRatio
	obs.Prometheus = prometheus
	obs.LogLevel = logLevel(flags, cfg.Logging.Level)
	obs.LogJSON = cfg.Logging.Format == "json" || mode == observability.ModeMCP

	return obs
}

func logLevel(flags *GlobalFlags, configured string) slog.Level {
	switch {
	case flags.Quiet:
		return slog.LevelError
	case flags.Verbose:
		return slog.LevelDebug
	default:
		return observability.ParseLevel(configured)
	}
}

// plainLogger is used by commands that run without configuration.
func plainLogger(w io.Writer, flags *GlobalFlags) *slog.Logger {
	cfg := observability.DefaultConfig()
	cfg.LogLevel = logLevel(flags, "")

	return observability.NewLogger(w, cfg)
}
