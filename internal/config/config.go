package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Upload   UploadConfig   `mapstructure:"upload" validate:"required"`
	Broker   BrokerConfig   `mapstructure:"broker" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication settings.
// Tokens are issued elsewhere; the service only verifies them.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	Leeway    time.Duration `mapstructure:"leeway" validate:"gte=0"`
}

// UploadConfig controls the file ingestion pipeline.
type UploadConfig struct {
	Dir               string   `mapstructure:"dir" validate:"required"`
	TempDir           string   `mapstructure:"temp_dir" validate:"required"`
	MaxBytes          int64    `mapstructure:"max_bytes" validate:"gt=0"`
	ChunkSize         int      `mapstructure:"chunk_size" validate:"gt=0"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" validate:"required,min=1,dive,startswith=."`
	CollisionRetries  int      `mapstructure:"collision_retries" validate:"gte=1,lte=10"`
}

// BrokerConfig selects and configures task dispatch.
type BrokerConfig struct {
	Kind      string      `mapstructure:"kind" validate:"required,oneof=kafka memory"`
	Kafka     KafkaConfig `mapstructure:"kafka"`
	QueueSize int         `mapstructure:"queue_size" validate:"gt=0"`
}

// KafkaConfig holds Kafka connection settings, required when Kind is kafka.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// WorkerConfig controls the in-process task workers.
type WorkerConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Count              int           `mapstructure:"count" validate:"gte=1"`
	StuckTaskAge       time.Duration `mapstructure:"stuck_task_age" validate:"gt=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gt=0"`
}

// CacheConfig controls the terminal task status cache.
// RedisAddr is optional; without it only the in-process cache is used.
type CacheConfig struct {
	LRUSize   int           `mapstructure:"lru_size" validate:"gt=0"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
}
