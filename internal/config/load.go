package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// DESIGN_ prefix with underscores for nesting (e.g. DESIGN_SERVER_PORT)
// and take precedence over file values.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DESIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for everything that has a sensible one.
// Secrets default to empty so that Unmarshal sees env-only keys; validation
// rejects the empty values when they are not supplied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket", "design-artifacts")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.max_upload_bytes", 10*1024*1024)
	v.SetDefault("storage.max_image_dimension", 1024)

	v.SetDefault("generator.provider", "qwen")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.model_name", "qwen-plus")
	v.SetDefault("generator.timeout_seconds", 120)

	v.SetDefault("tasks.worker_count", 2)
	v.SetDefault("tasks.queue_size", 100)
	v.SetDefault("tasks.max_delivery_attempts", 3)
	v.SetDefault("tasks.stuck_task_age_minutes", 30)
	v.SetDefault("tasks.stuck_task_check_interval_minutes", 5)

	v.SetDefault("designs.categories", []string{"dress", "shirt", "pants", "skirt", "jacket"})

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_minutes", 60)
}
