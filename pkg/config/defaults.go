package config

// Server defaults.
const (
	DefaultPort         = 8080
	DefaultHost         = "0.0.0.0"
	DefaultReadTimeout  = "30s"
	DefaultWriteTimeout = "30s"
	DefaultIdleTimeout  = "60s"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Telemetry defaults.
const (
	DefaultEnvironment = "development"
	DefaultSampleRatio = 1.0
)

// Ingest defaults.
const (
	DefaultIngestWorkers = 4
	DefaultDelimiter     = ","
)
