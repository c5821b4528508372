package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "FCS"

// setDefaults registers the default value of every optional setting.
// Every key must be registered for AutomaticEnv to see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("upload.dir", "./data/files")
	v.SetDefault("upload.temp_dir", "./data/files/.tmp")
	v.SetDefault("upload.max_bytes", 100<<20)
	v.SetDefault("upload.chunk_size", 1<<20)
	v.SetDefault("upload.allowed_extensions", []string{".fcs"})
	v.SetDefault("upload.collision_retries", 3)

	v.SetDefault("broker.kind", "memory")
	v.SetDefault("broker.queue_size", 100)
	v.SetDefault("broker.kafka.brokers", []string{})
	v.SetDefault("broker.kafka.topic", "fcs-tasks")
	v.SetDefault("broker.kafka.group_id", "fcs-workers")

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.stuck_task_age", "30m")
	v.SetDefault("worker.stuck_check_interval", "1m")

	v.SetDefault("cache.lru_size", 1024)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.redis_addr", "")
}

// Load configuration from environment variables and optionally config files.
// Environment variables (FCS_SERVER_PORT, FCS_UPLOAD_MAX_BYTES, ...) take
// precedence over values from config.yaml, which is searched in the working
// directory and in ./config.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Broker.Kind == "kafka" {
		if len(cfg.Broker.Kafka.Brokers) == 0 {
			return fmt.Errorf("config validation failed: broker.kafka.brokers is required for kafka broker")
		}
		if cfg.Broker.Kafka.Topic == "" || cfg.Broker.Kafka.GroupID == "" {
			return fmt.Errorf("config validation failed: broker.kafka.topic and group_id are required for kafka broker")
		}
	}
	for i, ext := range cfg.Upload.AllowedExtensions {
		cfg.Upload.AllowedExtensions[i] = strings.ToLower(ext)
	}
	return nil
}
