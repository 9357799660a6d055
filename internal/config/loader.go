package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// The file is optional; environment variables alone can carry a full
	// configuration.
	if err := viper.ReadInConfig(); err == nil {
		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	// Document store
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if db := os.Getenv("MONGODB_DATABASE"); db != "" {
		cfg.Mongo.Database = db
	}

	// Remote provisioning service
	if addr := os.Getenv("CHIRPSTACK_GRPC_ADDRESS"); addr != "" {
		cfg.ChirpStack.Address = addr
	}
	if token := os.Getenv("CHIRPSTACK_API_TOKEN"); token != "" {
		cfg.ChirpStack.APIToken = token
	}
	// Older deployments export the token under CHIRPSTACK_API_KEY.
	if token := os.Getenv("CHIRPSTACK_API_KEY"); token != "" && cfg.ChirpStack.APIToken == "" {
		cfg.ChirpStack.APIToken = token
	}
	if timeout := os.Getenv("CHIRPSTACK_CALL_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.ChirpStack.CallTimeout = d
		}
	}
	if isolate := os.Getenv("CHIRPSTACK_ISOLATE_TEMPLATES"); isolate != "" {
		if b, err := strconv.ParseBool(isolate); err == nil {
			cfg.ChirpStack.IsolateTemplates = b
		}
	}
	if program := os.Getenv("SIDECAR_PROGRAM"); program != "" {
		cfg.ChirpStack.SidecarProgram = program
	}

	// Metrics
	if port := os.Getenv("METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
