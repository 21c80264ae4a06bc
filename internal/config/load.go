package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix shared by every configuration environment variable.
const EnvPrefix = "EXPORTD"

// DefaultKeyPrefix is the object key prefix used when storage.prefix is unset.
const DefaultKeyPrefix = "exports"

// keys lists every configuration key so that environment variables are
// picked up even when no config file mentions them.
var keys = []string{
	"log.level",
	"log.format",
	"source.driver",
	"source.url",
	"source.max_conns",
	"source.acquire_timeout",
	"source.fetch_size",
	"storage.backend",
	"storage.bucket",
	"storage.prefix",
	"storage.local_root",
	"storage.endpoint",
	"export.dir",
	"export.max_concurrent",
	"retry.max_retries",
	"retry.base_delay",
	"retry.backoff_multiplier",
	"retry.max_delay",
	"retry.jitter_enabled",
	"retry.jitter_factor",
	"store.url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("source.driver", "postgres")
	v.SetDefault("source.max_conns", 10)
	v.SetDefault("source.acquire_timeout", "30s")
	v.SetDefault("source.fetch_size", 1000)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.prefix", DefaultKeyPrefix)

	v.SetDefault("export.dir", filepath.Join(os.TempDir(), "exportd"))
	v.SetDefault("export.max_concurrent", 0)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "5s")
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("retry.max_delay", "60s")
	v.SetDefault("retry.jitter_enabled", true)
	v.SetDefault("retry.jitter_factor", 0.1)
}

// Load reads configuration from environment variables and, when configPath is
// non-empty, from that YAML file. Environment variables take precedence over
// values from the file. Returns a populated Config or an error if loading or
// validation fails.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Storage.Prefix) == "" {
		cfg.Storage.Prefix = DefaultKeyPrefix
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
