package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from the environment and an optional
// atlas.yaml in the working directory. Environment variables use the
// ATLAS_ prefix with underscores for nesting, ATLAS_SERVER_PORT for
// server.port, and take precedence over file values. Returns a
// validated Config or an error describing what is wrong.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("atlas")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every known key with its default. Registering
// the key is also what lets AutomaticEnv find the matching variable
// during Unmarshal, so even required settings appear here with empty
// defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.ip_request_limit", 120)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.service_key", "")

	v.SetDefault("quota.default_limit", 10)
	v.SetDefault("quota.default_window", "1h")
	v.SetDefault("quota.high_demand_limit", 5)
	v.SetDefault("quota.high_demand_window", "1h")

	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.depth", 100)
	v.SetDefault("queue.retention_ttl", "1h")
	v.SetDefault("queue.stuck_after", "30m")
	v.SetDefault("queue.sweep_interval", "5m")
	v.SetDefault("queue.workspace_root", "")

	v.SetDefault("artifacts.backend", "disk")
	v.SetDefault("artifacts.root", "")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.access_key", "")
	v.SetDefault("artifacts.s3.secret_key", "")
	v.SetDefault("artifacts.s3.key_prefix", "artifacts")
	v.SetDefault("artifacts.s3.use_path_style", true)

	v.SetDefault("generator.bin_path", "atlas-render")
	v.SetDefault("generator.job_timeout", "30m")

	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "atlas.tasks")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "atlas-api")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// validate applies the struct tags plus the cross-field rules the tags
// cannot express.
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Artifacts.Backend == "s3" && cfg.Artifacts.S3.Bucket == "" {
		return fmt.Errorf("config validation failed: artifacts.s3.bucket is required for the s3 backend")
	}
	return nil
}
