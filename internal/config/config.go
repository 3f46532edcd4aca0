package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the hotel service
type Config struct {
	AppName  string         `mapstructure:"app_name"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Refunds  RefundsConfig  `mapstructure:"refunds"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

// GRPCConfig holds gRPC server configuration
type GRPCConfig struct {
	Address            string `mapstructure:"address"`
	EnableReflection   bool   `mapstructure:"enable_reflection"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"` // per actor and method; 0 disables
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory or postgres
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// KafkaConfig holds notification producer configuration
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	Channels []string `mapstructure:"channels"`
}

// BillingConfig holds payment gateway configuration
type BillingConfig struct {
	Provider            string        `mapstructure:"provider"`
	StripeSecret        string        `mapstructure:"stripe_secret"`
	CaptureOnConfirm    bool          `mapstructure:"capture_on_confirm"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	BreakerMaxFailures  int           `mapstructure:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `mapstructure:"breaker_reset_timeout"`
}

// PricingConfig holds rate engine configuration
type PricingConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	QuoteValidity   time.Duration `mapstructure:"quote_validity"`
	DefaultCurrency string        `mapstructure:"default_currency"`
}

// BookingConfig holds lifecycle timing and policy defaults
type BookingConfig struct {
	PendingTTL     time.Duration        `mapstructure:"pending_ttl"`
	NoShowGrace    time.Duration        `mapstructure:"no_show_grace"`
	ReminderLead   time.Duration        `mapstructure:"reminder_lead"`
	SweepInterval  time.Duration        `mapstructure:"sweep_interval"`
	CheckInHour    int                  `mapstructure:"check_in_hour"`
	SweepBatchSize int                  `mapstructure:"sweep_batch_size"`
	Deposit        DepositConfig        `mapstructure:"deposit"`
	Cancellation   CancellationDefaults `mapstructure:"cancellation"`
}

// DepositConfig is the deposit policy applied to new bookings
type DepositConfig struct {
	Type    string  `mapstructure:"type"`
	Value   float64 `mapstructure:"value"`
	Minimum float64 `mapstructure:"minimum"`
	Maximum float64 `mapstructure:"maximum"` // 0 means no cap
}

// CancellationDefaults is used when a property has no policy of its own
type CancellationDefaults struct {
	RefundPercentage   float64 `mapstructure:"refund_percentage"`
	HoursBeforeCheckIn int     `mapstructure:"hours_before_check_in"`
	PenaltyType        string  `mapstructure:"penalty_type"`
	PenaltyValue       float64 `mapstructure:"penalty_value"`
	ModificationFee    float64 `mapstructure:"modification_fee"`
}

// RefundsConfig holds refund retry worker configuration
type RefundsConfig struct {
	WorkerInterval time.Duration `mapstructure:"worker_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SamplingRatio  float64 `mapstructure:"sampling_ratio"`
	Environment    string  `mapstructure:"environment"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "hotel-service")
	v.SetDefault("grpc.address", ":8081")
	v.SetDefault("grpc.enable_reflection", false)
	v.SetDefault("grpc.rate_limit_per_minute", 600)
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "booking-notifications")
	v.SetDefault("kafka.channels", []string{"EMAIL"})
	v.SetDefault("billing.provider", "mock")
	v.SetDefault("billing.stripe_secret", "")
	v.SetDefault("billing.capture_on_confirm", true)
	v.SetDefault("billing.retry_attempts", 3)
	v.SetDefault("billing.breaker_max_failures", 5)
	v.SetDefault("billing.breaker_reset_timeout", 30*time.Second)
	v.SetDefault("pricing.cache_ttl", 5*time.Minute)
	v.SetDefault("pricing.quote_validity", 15*time.Minute)
	v.SetDefault("pricing.default_currency", "USD")
	v.SetDefault("booking.pending_ttl", 30*time.Minute)
	v.SetDefault("booking.no_show_grace", 24*time.Hour)
	v.SetDefault("booking.reminder_lead", 48*time.Hour)
	v.SetDefault("booking.sweep_interval", time.Minute)
	v.SetDefault("booking.check_in_hour", 15)
	v.SetDefault("booking.sweep_batch_size", 100)
	v.SetDefault("booking.deposit.type", "PERCENTAGE")
	v.SetDefault("booking.deposit.value", 30)
	v.SetDefault("booking.deposit.minimum", 50)
	v.SetDefault("booking.deposit.maximum", 0)
	v.SetDefault("booking.cancellation.refund_percentage", 100)
	v.SetDefault("booking.cancellation.hours_before_check_in", 48)
	v.SetDefault("booking.cancellation.penalty_type", "FIRST_NIGHT")
	v.SetDefault("booking.cancellation.penalty_value", 0)
	v.SetDefault("booking.cancellation.modification_fee", 0)
	v.SetDefault("refunds.worker_interval", 30*time.Second)
	v.SetDefault("refunds.batch_size", 20)
	v.SetDefault("refunds.max_attempts", 8)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sampling_ratio", 1.0)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name is required")
	}
	if c.GRPC.Address == "" {
		return fmt.Errorf("grpc.address is required")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when storage.driver is postgres")
		}
		if c.Postgres.MaxConns <= 0 {
			return fmt.Errorf("postgres.max_conns must be greater than 0")
		}
	default:
		return fmt.Errorf("unsupported storage.driver: %s", c.Storage.Driver)
	}
	switch c.Billing.Provider {
	case "mock", "noop":
	case "stripe":
		if c.Billing.StripeSecret == "" {
			return fmt.Errorf("billing.stripe_secret is required for the stripe provider")
		}
	default:
		return fmt.Errorf("unsupported billing.provider: %s", c.Billing.Provider)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if c.Pricing.CacheTTL < 0 || c.Pricing.QuoteValidity <= 0 {
		return fmt.Errorf("pricing.cache_ttl must be >= 0 and pricing.quote_validity > 0")
	}
	if c.Pricing.CacheTTL > c.Pricing.QuoteValidity {
		return fmt.Errorf("pricing.cache_ttl (%s) must not exceed pricing.quote_validity (%s)",
			c.Pricing.CacheTTL, c.Pricing.QuoteValidity)
	}
	if c.Booking.SweepInterval <= 0 || c.Refunds.WorkerInterval <= 0 {
		return fmt.Errorf("booking.sweep_interval and refunds.worker_interval must be positive")
	}
	if c.Booking.CheckInHour < 0 || c.Booking.CheckInHour > 23 {
		return fmt.Errorf("booking.check_in_hour must be between 0 and 23")
	}
	switch strings.ToUpper(c.Booking.Deposit.Type) {
	case "PERCENTAGE", "FIXED_AMOUNT", "FIRST_NIGHT", "FULL":
	default:
		return fmt.Errorf("unsupported booking.deposit.type: %s", c.Booking.Deposit.Type)
	}
	switch strings.ToUpper(c.Booking.Cancellation.PenaltyType) {
	case "PERCENTAGE", "FIXED_AMOUNT", "FIRST_NIGHT":
	default:
		return fmt.Errorf("unsupported booking.cancellation.penalty_type: %s", c.Booking.Cancellation.PenaltyType)
	}
	if c.Booking.Cancellation.RefundPercentage < 0 || c.Booking.Cancellation.RefundPercentage > 100 {
		return fmt.Errorf("booking.cancellation.refund_percentage must be between 0 and 100")
	}
	if c.Refunds.MaxAttempts <= 0 {
		return fmt.Errorf("refunds.max_attempts must be greater than 0")
	}
	return nil
}

// GetRedisAddr returns the Redis connection address
func (c *RedisConfig) GetRedisAddr() string {
	return c.Addr
}
