package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main struct that holds all configuration for the application.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notifiers NotifiersConfig `mapstructure:"notifiers"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
}

// LoggerConfig holds logging-specific settings.
type LoggerConfig struct {
	Level string `mapstructure:"level"`
	// Format is "console" (default) or "json".
	Format string `mapstructure:"format"`
}

// HTTPConfig holds HTTP server-specific settings.
type HTTPConfig struct {
	Port    string `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`
	// MetricsPort is where the worker serves /metrics. Empty disables it.
	MetricsPort string `mapstructure:"metrics_port"`
}

// PostgresConfig holds all settings for the PostgreSQL database connection.
type PostgresConfig struct {
	MasterDSN string     `mapstructure:"master_dsn"`
	Pool      PoolConfig `mapstructure:"pool"`
}

// PoolConfig defines the connection pool settings for the database.
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RabbitMQConfig holds all settings for the RabbitMQ connection.
type RabbitMQConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds all settings for the Redis connection.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NotifiersConfig holds configurations for all notification channels.
type NotifiersConfig struct {
	// Mode can be "log_only" or "production".
	// In "log_only" mode, every notification type is handled by the LogNotifier.
	Mode string `mapstructure:"mode"`

	// DeferralInterval is how long a notification outside all of its periods waits before it is re-checked.
	DeferralInterval time.Duration `mapstructure:"deferral_interval"`
	// MaxAttempts is the number of send attempts before a notification is marked as failed.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RateLimitPerMinute caps sends per notification type. Zero disables the limit.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	// Workers is the size of the consumer worker pool.
	Workers int `mapstructure:"workers"`
	// SendTimeout bounds one channel send. Sends are not cut short by worker shutdown.
	SendTimeout time.Duration `mapstructure:"send_timeout"`

	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// EmailConfig holds SMTP settings for the email notifier.
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// TelegramConfig holds settings for the Telegram notifier.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// WebhookConfig holds settings for the webhook notifier.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SweeperConfig controls the job that re-publishes scheduled notifications lost by the broker.
type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Grace    time.Duration `mapstructure:"grace"`
	Batch    int           `mapstructure:"batch"`
}

// NewConfig parses the YAML file and environment variables to return a configuration struct.
// A local .env file, when present, is loaded into the environment first.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	return Load("configs/config.yaml")
}

// Load reads the configuration from path, applying defaults and environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	v.SetDefault("logger.level", "info")
	v.SetDefault("http.port", ":8080")
	v.SetDefault("http.gin_mode", "release")
	v.SetDefault("http.metrics_port", ":9091")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("notifiers.mode", "log_only")
	v.SetDefault("notifiers.deferral_interval", 5*time.Minute)
	v.SetDefault("notifiers.max_attempts", 5)
	v.SetDefault("notifiers.rate_limit_per_minute", 0)
	v.SetDefault("notifiers.workers", 5)
	v.SetDefault("notifiers.send_timeout", 30*time.Second)
	v.SetDefault("notifiers.webhook.timeout", 10*time.Second)
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "@every 1m")
	v.SetDefault("sweeper.grace", 10*time.Minute)
	v.SetDefault("sweeper.batch", 100)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
