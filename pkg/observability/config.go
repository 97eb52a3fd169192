// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for every streamsketch mode (CLI, MCP, HTTP server).
package observability

import (
	"log/slog"
	"strings"
)

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is the one-shot command mode.
	ModeCLI AppMode = "cli"
	// ModeMCP is the MCP stdio server mode.
	ModeMCP AppMode = "mcp"
	// ModeServe is the HTTP server mode.
	ModeServe AppMode = "serve"
)

const (
	defaultServiceName        = "streamsketch"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables
	// export and the tracer provider becomes no-op.
	OTLPEndpoint string

	// OTLPHeaders are extra gRPC metadata headers for the exporters.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool

	// Prometheus attaches a pull reader to the meter provider and exposes
	// it through Providers.MetricsHandler.
	Prometheus bool

	// SampleRatio is the parent-based trace sampling ratio. Zero samples
	// every root span.
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON log output.
	LogJSON bool

	// ShutdownTimeoutSec bounds the flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
