package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Source  SourceConfig  `mapstructure:"source" validate:"required"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
	Export  ExportConfig  `mapstructure:"export" validate:"required"`
	Retry   RetryConfig   `mapstructure:"retry" validate:"required"`
	Store   StoreConfig   `mapstructure:"store"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// SourceConfig describes the relational source tasks are executed against.
type SourceConfig struct {
	Driver         string        `mapstructure:"driver" validate:"required,oneof=postgres duckdb pgx-sql"`
	URL            string        `mapstructure:"url" validate:"required"`
	MaxConns       int           `mapstructure:"max_conns" validate:"gt=0"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" validate:"gt=0"`
	FetchSize      int           `mapstructure:"fetch_size" validate:"gt=0"`
}

// StorageConfig describes where exported artifacts are published.
type StorageConfig struct {
	Backend   string `mapstructure:"backend" validate:"required,oneof=gcs local"`
	Bucket    string `mapstructure:"bucket" validate:"required"`
	Prefix    string `mapstructure:"prefix"`
	LocalRoot string `mapstructure:"local_root" validate:"required_if=Backend local"`
	Endpoint  string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// ExportConfig contains settings for the local export sinks.
type ExportConfig struct {
	Dir           string `mapstructure:"dir" validate:"required"`
	MaxConcurrent int    `mapstructure:"max_concurrent" validate:"gte=0"`
}

// RetryConfig mirrors the retry policy parameters.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	BaseDelay         time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" validate:"gte=1"`
	MaxDelay          time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	JitterEnabled     bool          `mapstructure:"jitter_enabled"`
	JitterFactor      float64       `mapstructure:"jitter_factor" validate:"gte=0,lte=1"`
}

// StoreConfig configures persistence of step results. An empty URL disables it.
type StoreConfig struct {
	URL string `mapstructure:"url"`
}
