package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Generator GeneratorConfig `mapstructure:"generator" validate:"required"`
	Tasks     TaskConfig      `mapstructure:"tasks"     validate:"required"`
	Designs   DesignConfig    `mapstructure:"designs"   validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// StorageConfig configures the artifact blob store and upload limits.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"           validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"      validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key"  validate:"required"`
	Bucket          string `mapstructure:"bucket"             validate:"required"`
	UseSSL          bool   `mapstructure:"use_ssl"`

	// MaxUploadBytes bounds the size of an uploaded reference image.
	// An upload of exactly this size is accepted.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"required,gt=0"`

	// MaxImageDimension bounds the width and height of the stored image;
	// larger uploads are resized preserving aspect ratio.
	MaxImageDimension int `mapstructure:"max_image_dimension" validate:"required,gt=0"`
}

// GeneratorConfig contains settings for the external design generator.
type GeneratorConfig struct {
	// Provider selects the generator backend.
	Provider string `mapstructure:"provider" validate:"required,oneof=qwen gemini"`

	APIKey    string `mapstructure:"api_key"    validate:"required"`
	BaseURL   string `mapstructure:"base_url"`
	ModelName string `mapstructure:"model_name" validate:"required"`

	// TimeoutSeconds bounds a single generation call; when exceeded the job
	// fails with a timeout reason.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size"   validate:"required,gt=0"`

	// MaxDeliveryAttempts bounds how many times a work item may be delivered
	// before the job is force-failed.
	MaxDeliveryAttempts int `mapstructure:"max_delivery_attempts" validate:"required,gt=0"`

	// StuckTaskAgeMinutes is how long a task may sit in processing before
	// the monitor resets it for redelivery.
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`

	// StuckTaskCheckIntervalMinutes is how often the monitor runs.
	StuckTaskCheckIntervalMinutes int `mapstructure:"stuck_task_check_interval_minutes" validate:"required,gt=0"`
}

// DesignConfig contains the closed category enumeration submissions are
// validated against.
type DesignConfig struct {
	Categories []string `mapstructure:"categories" validate:"required,min=1"`
}

// CacheConfig configures the optional terminal-status cache. An empty URL
// disables caching.
type CacheConfig struct {
	RedisURL   string `mapstructure:"redis_url"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}
