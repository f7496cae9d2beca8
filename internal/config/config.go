package config

import "time"

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Logging   LoggingConfig   `mapstructure:"logging" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Quota     QuotaConfig     `mapstructure:"quota" validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue" validate:"required"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" validate:"required"`
	Generator GeneratorConfig `mapstructure:"generator" validate:"required"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`

	// CORSOrigins lists allowed origins; ["*"] opens the API.
	CORSOrigins []string `mapstructure:"cors_origins"`

	// IPRequestLimit caps requests per minute per client IP before any
	// authentication happens. Zero disables the throttle.
	IPRequestLimit int `mapstructure:"ip_request_limit" validate:"gte=0"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// AuthConfig contains the API key authority settings.
type AuthConfig struct {
	// Secret signs derived API keys. Rotating it invalidates every
	// issued key.
	Secret string `mapstructure:"secret" validate:"required,min=16"`

	// ServiceKey, when set, is accepted verbatim and bypasses rate
	// limiting for internal callers.
	ServiceKey string `mapstructure:"service_key"`
}

// QuotaConfig sets the per-user admission quotas by route class.
type QuotaConfig struct {
	DefaultLimit  int           `mapstructure:"default_limit" validate:"gte=0"`
	DefaultWindow time.Duration `mapstructure:"default_window" validate:"gt=0"`

	HighDemandLimit  int           `mapstructure:"high_demand_limit" validate:"gte=0"`
	HighDemandWindow time.Duration `mapstructure:"high_demand_window" validate:"gt=0"`
}

// QueueConfig sets the task queue dimensions and retention behavior.
type QueueConfig struct {
	Workers       int           `mapstructure:"workers" validate:"required,gte=1"`
	Depth         int           `mapstructure:"depth" validate:"required,gte=1"`
	RetentionTTL  time.Duration `mapstructure:"retention_ttl" validate:"gt=0"`
	StuckAfter    time.Duration `mapstructure:"stuck_after" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`

	// WorkspaceRoot hosts per-task scratch directories; empty falls back
	// to the system temp directory.
	WorkspaceRoot string `mapstructure:"workspace_root"`
}

// ArtifactsConfig selects and configures the artifact store backend.
type ArtifactsConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=disk s3"`

	// Root is the blob directory for the disk backend; empty falls back
	// to a directory under the system temp directory.
	Root string `mapstructure:"root"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config holds the object storage settings for the s3 artifact
// backend. Bucket is required when that backend is selected, which Load
// checks after struct validation.
type S3Config struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// GeneratorConfig configures the external render tool that executes
// generation jobs.
type GeneratorConfig struct {
	BinPath    string        `mapstructure:"bin_path" validate:"required"`
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"gt=0"`
}

// EventsConfig configures lifecycle event publishing. An empty NATSURL
// disables the NATS sink.
type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// TelemetryConfig configures trace export. An empty OTLPEndpoint
// disables export entirely.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}
