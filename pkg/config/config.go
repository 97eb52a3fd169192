// Package config provides configuration loading and validation for streamsketch.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidWorkers     = errors.New("ingest workers must be positive")
	ErrInvalidDelimiter   = errors.New("ingest delimiter must not be empty")
	ErrInvalidLogLevel    = errors.New("invalid logging level")
	ErrInvalidLogFormat   = errors.New("invalid logging format")
	ErrInvalidSampleRatio = errors.New("telemetry sample ratio must be in [0, 1]")
	ErrMissingName        = errors.New("sketch name is required")
	ErrDuplicateName      = errors.New("duplicate sketch name")
	ErrUnknownKind        = errors.New("unknown sketch kind")
)

const maxPort = 65535

// Sketch kinds.
const (
	KindCountMin = "countmin"
	KindTugOfWar = "tugofwar"
	KindMorris   = "morris"
	KindFrugal   = "frugal"
)

// Config holds all configuration for streamsketch.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Sketches  []SketchSpec    `mapstructure:"sketches"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration. An empty
// endpoint keeps tracing and OTLP metrics disabled.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// IngestConfig holds stream ingestion configuration.
type IngestConfig struct {
	Delimiter string `mapstructure:"delimiter"`
	Workers   int    `mapstructure:"workers"`
}

// SketchSpec declares one named sketch. Which fields apply depends on Kind.
type SketchSpec struct {
	Name         string  `mapstructure:"name" json:"name"`
	Kind         string  `mapstructure:"kind" json:"kind"`
	Hash         string  `mapstructure:"hash" json:"hash,omitempty"`
	Variant      string  `mapstructure:"variant" json:"variant,omitempty"`
	Width        int     `mapstructure:"width" json:"width,omitempty"`
	Depth        int     `mapstructure:"depth" json:"depth,omitempty"`
	Epsilon      float64 `mapstructure:"epsilon" json:"epsilon,omitempty"`
	Delta        float64 `mapstructure:"delta" json:"delta,omitempty"`
	Seed         uint64  `mapstructure:"seed" json:"seed"`
	MaxRegister  int     `mapstructure:"max_register" json:"max_register,omitempty"`
	H            int     `mapstructure:"h" json:"h,omitempty"`
	K            int     `mapstructure:"k" json:"k,omitempty"`
	Initial      float64 `mapstructure:"initial" json:"initial"`
	Step         float64 `mapstructure:"step" json:"step,omitempty"`
	Conservative bool    `mapstructure:"conservative" json:"conservative,omitempty"`
}

// LoadConfig loads configuration from file and environment variables and
// validates it, including the sketch schema.
func LoadConfig(configPath string) (*Config, error) {
	config, err := ReadConfig(configPath)
	if err != nil {
		return nil, err
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	schemaErr := ValidateSketches(config.Sketches)
	if schemaErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", schemaErr)
	}

	return config, nil
}

// ReadConfig loads configuration with defaults applied but does not
// validate it.
func ReadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("streamsketch")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/streamsketch")
	}

	viperCfg.SetEnvPrefix("STREAMSKETCH")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Server defaults.
	viperCfg.SetDefault("server.port", DefaultPort)
	viperCfg.SetDefault("server.host", DefaultHost)
	viperCfg.SetDefault("server.read_timeout", DefaultReadTimeout)
	viperCfg.SetDefault("server.write_timeout", DefaultWriteTimeout)
	viperCfg.SetDefault("server.idle_timeout", DefaultIdleTimeout)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", DefaultEnvironment)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)

	// Ingest defaults.
	viperCfg.SetDefault("ingest.workers", DefaultIngestWorkers)
	viperCfg.SetDefault("ingest.delimiter", DefaultDelimiter)
}

// Validate checks server, ingest, logging and telemetry settings and the
// sketch names and kinds. Per-kind parameters are left to the schema.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Ingest.Workers)
	}

	if c.Ingest.Delimiter == "" {
		return ErrInvalidDelimiter
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return validateSketchNames(c.Sketches)
}

func validateSketchNames(specs []SketchSpec) error {
	seen := make(map[string]struct{}, len(specs))

	for i, spec := range specs {
		if spec.Name == "" {
			return fmt.Errorf("%w: sketches[%d]", ErrMissingName, i)
		}

		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, spec.Name)
		}

		seen[spec.Name] = struct{}{}

		switch spec.Kind {
		case KindCountMin, KindTugOfWar, KindMorris, KindFrugal:
		default:
			return fmt.Errorf("%w: %q for sketch %q", ErrUnknownKind, spec.Kind, spec.Name)
		}
	}

	return nil
}
