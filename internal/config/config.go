package config

import (
	"errors"
	"time"
)

// Config represents the provisioning coordinator configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	ChirpStack ChirpStackConfig `mapstructure:"chirpstack"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents process-level configuration
type ServerConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MongoConfig represents the document store configuration
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ChirpStackConfig represents the remote provisioning service configuration.
// The API token is environment-supplied and never appears in request
// parameters.
type ChirpStackConfig struct {
	Address     string        `mapstructure:"address"`
	APIToken    string        `mapstructure:"api_token"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	PageSize    int           `mapstructure:"page_size"`
	ReadRetries int           `mapstructure:"read_retries"`

	// IsolateTemplates selects the out-of-process template catalog. Use
	// it when the deployed template stub set is schema-incompatible with
	// the main client's stubs.
	IsolateTemplates bool          `mapstructure:"isolate_templates"`
	SidecarProgram   string        `mapstructure:"sidecar_program"`
	SidecarTimeout   time.Duration `mapstructure:"sidecar_timeout"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ShutdownTimeout: 15 * time.Second,
		},
		Mongo: MongoConfig{
			Database:       "PLATAFORMA_IOT",
			ConnectTimeout: 10 * time.Second,
		},
		ChirpStack: ChirpStackConfig{
			Address:     "localhost:8080",
			CallTimeout: 10 * time.Second,
			PageSize:    50,
			ReadRetries: 2,

			SidecarProgram: "dpsidecar",
			SidecarTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo.database is required")
	}
	if c.ChirpStack.Address == "" {
		return errors.New("chirpstack.address is required")
	}
	if c.ChirpStack.APIToken == "" {
		return errors.New("chirpstack.api_token is required")
	}
	if c.ChirpStack.PageSize <= 0 {
		return errors.New("chirpstack.page_size must be positive")
	}
	if c.ChirpStack.IsolateTemplates && c.ChirpStack.SidecarProgram == "" {
		return errors.New("chirpstack.sidecar_program is required when isolate_templates is set")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.New("metrics.port must be between 1 and 65535")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}
