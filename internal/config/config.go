package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging/amqp"
	"github.com/jwalitptl/salon-api/pkg/messaging/kafka"
	"github.com/jwalitptl/salon-api/pkg/messaging/redis"
	"github.com/jwalitptl/salon-api/pkg/worker"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	WorkerPort     int           `mapstructure:"worker_port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	Mode           string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns URL when set, otherwise a URL built from the individual parts.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type BrokerConfig struct {
	// Driver is one of redis, kafka, amqp or none.
	Driver          string        `mapstructure:"driver"`
	TopicPrefix     string        `mapstructure:"topic_prefix"`
	KafkaBrokers    []string      `mapstructure:"kafka_brokers"`
	AMQPURL         string        `mapstructure:"amqp_url"`
	AMQPExchange    string        `mapstructure:"amqp_exchange"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type BookingConfig struct {
	DefaultStep int           `mapstructure:"default_step"`
	ScanDays    int           `mapstructure:"scan_days"`
	LockEnabled bool          `mapstructure:"lock_enabled"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

type CacheConfig struct {
	TenantTTL       time.Duration `mapstructure:"tenant_ttl"`
	IdempotencySize int           `mapstructure:"idempotency_size"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// overrides are deployment settings read from SALON_* variables after the file.
type overrides struct {
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	RedisURL     string `envconfig:"REDIS_URL"`
	BrokerDriver string `envconfig:"BROKER_DRIVER"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
	Port         int    `envconfig:"PORT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_port", 8081)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "salon")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("broker.driver", "none")
	v.SetDefault("broker.topic_prefix", "salon.")
	v.SetDefault("broker.amqp_exchange", "salon.events")
	v.SetDefault("broker.breaker_failures", 5)
	v.SetDefault("broker.breaker_timeout", 30*time.Second)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 5*time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_interval", time.Hour)

	v.SetDefault("booking.default_step", 30)
	v.SetDefault("booking.scan_days", 30)
	v.SetDefault("booking.lock_enabled", true)
	v.SetDefault("booking.lock_ttl", 10*time.Second)

	v.SetDefault("cache.tenant_ttl", 5*time.Minute)
	v.SetDefault("cache.idempotency_size", 10000)
	v.SetDefault("cache.idempotency_ttl", 24*time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "salon")
}

// LoadConfig reads config.yaml from path (then . and ./config), environment
// variables, and finally SALON_* overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env overrides
	if err := envconfig.Process("SALON", &env); err != nil {
		return nil, fmt.Errorf("failed to read SALON_* overrides: %w", err)
	}
	config.apply(env)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) apply(env overrides) {
	if env.DatabaseURL != "" {
		c.Database.URL = env.DatabaseURL
	}
	if env.RedisURL != "" {
		c.Redis.URL = env.RedisURL
	}
	if env.BrokerDriver != "" {
		c.Broker.Driver = env.BrokerDriver
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
}

func (c *Config) Validate() error {
	switch c.Broker.Driver {
	case "none", "":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("broker driver redis requires redis.url")
		}
	case "kafka":
		if len(c.Broker.KafkaBrokers) == 0 {
			return errors.New("broker driver kafka requires broker.kafka_brokers")
		}
	case "amqp":
		if c.Broker.AMQPURL == "" {
			return errors.New("broker driver amqp requires broker.amqp_url")
		}
	default:
		return fmt.Errorf("unknown broker driver %q", c.Broker.Driver)
	}
	if c.Booking.DefaultStep <= 0 {
		return errors.New("booking.default_step must be positive")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	return nil
}

// Add conversion methods to convert config types
func (c *OutboxConfig) ToWorkerConfig(topicPrefix string) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		TopicPrefix:   topicPrefix,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *BrokerConfig) ToKafkaConfig() kafka.Config {
	return kafka.Config{Brokers: c.KafkaBrokers}
}

func (c *BrokerConfig) ToAMQPConfig() amqp.Config {
	return amqp.Config{URL: c.AMQPURL, Exchange: c.AMQPExchange}
}

func (c *LoggingConfig) ToLoggerConfig() *logger.Config {
	return &logger.Config{
		Level:  logger.ParseLevel(c.Level),
		Format: c.Format,
	}
}
