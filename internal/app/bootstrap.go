package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/billing"
	"github.com/jia-app/hotelservice/internal/booking"
	"github.com/jia-app/hotelservice/internal/cache"
	"github.com/jia-app/hotelservice/internal/circuitbreaker"
	"github.com/jia-app/hotelservice/internal/config"
	"github.com/jia-app/hotelservice/internal/db"
	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/notification"
	"github.com/jia-app/hotelservice/internal/repository"
	"github.com/jia-app/hotelservice/internal/repository/memory"
	"github.com/jia-app/hotelservice/internal/repository/postgres"
	"github.com/jia-app/hotelservice/internal/retry"
)

const storeConnectTimeout = 10 * time.Second

// newStore opens the configured storage backend
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
		defer cancel()

		pool, err := db.NewPool(ctx, &db.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using PostgreSQL storage")
		return postgres.NewStoreWithPool(pool.Pool), nil
	case "memory", "":
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

// newCache connects to Redis for the price cache. A failure disables
// caching instead of failing startup.
func newCache(cfg *config.Config, logger *zap.Logger) *cache.Cache {
	if cfg.Redis.Addr == "" || cfg.Pricing.CacheTTL <= 0 {
		logger.Info("Price cache disabled")
		return nil
	}

	c, err := cache.NewCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis initialization failed, continuing without price cache",
			zap.Error(err),
			zap.String("redis_addr", cfg.Redis.Addr))
		return nil
	}
	return c
}

// newGateway builds the payment gateway behind retries and a circuit breaker
func newGateway(cfg *config.Config, logger *zap.Logger) (billing.Gateway, error) {
	logger.Info("Initializing payment gateway", zap.String("provider", cfg.Billing.Provider))

	gateway, err := billing.NewGateway(billing.ProviderConfig{
		Provider:     cfg.Billing.Provider,
		StripeSecret: cfg.Billing.StripeSecret,
	}, logger)
	if err != nil {
		return nil, err
	}

	retryCfg := retry.DefaultConfig()
	if cfg.Billing.RetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Billing.RetryAttempts
	}
	breakerCfg := circuitbreaker.DefaultConfig()
	if cfg.Billing.BreakerMaxFailures > 0 {
		breakerCfg.MaxFailures = cfg.Billing.BreakerMaxFailures
	}
	if cfg.Billing.BreakerResetTimeout > 0 {
		breakerCfg.Timeout = cfg.Billing.BreakerResetTimeout
	}

	return billing.NewResilientGateway(gateway, billing.ResilientConfig{
		Retry:   retryCfg,
		Breaker: breakerCfg,
	}, logger.Named("billing")), nil
}

// newNotifier publishes to Kafka when enabled and logs otherwise
func newNotifier(cfg *config.Config, logger *zap.Logger) (notification.Service, error) {
	if !cfg.Kafka.Enabled {
		return notification.NewNoopNotifier(logger.Named("notification")), nil
	}

	producer, err := notification.NewKafkaProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing booking notifications to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic))
	return notification.NewKafkaNotifier(producer, cfg.Kafka.Topic, cfg.Kafka.Channels, logger.Named("notification")), nil
}

// bookingConfig converts the configured policy defaults to domain values
func bookingConfig(cfg *config.Config) (booking.Config, error) {
	dep := cfg.Booking.Deposit
	var depositType domain.DepositType
	if err := depositType.UnmarshalText([]byte(strings.ToUpper(dep.Type))); err != nil {
		return booking.Config{}, fmt.Errorf("invalid deposit type: %w", err)
	}
	deposit := domain.DepositPolicy{
		Type:          depositType,
		Value:         decimal.NewFromFloat(dep.Value),
		MinimumAmount: decimal.NewFromFloat(dep.Minimum),
	}
	if dep.Maximum > 0 {
		maximum := decimal.NewFromFloat(dep.Maximum)
		deposit.MaximumAmount = &maximum
	}

	policy := cfg.Booking.Cancellation
	var penaltyType domain.PenaltyType
	if err := penaltyType.UnmarshalText([]byte(strings.ToUpper(policy.PenaltyType))); err != nil {
		return booking.Config{}, fmt.Errorf("invalid cancellation penalty type: %w", err)
	}

	return booking.Config{
		Deposit: deposit,
		DefaultPolicy: domain.CancellationPolicy{
			Name:               "default",
			RefundPercentage:   decimal.NewFromFloat(policy.RefundPercentage),
			HoursBeforeCheckIn: policy.HoursBeforeCheckIn,
			PenaltyType:        penaltyType,
			PenaltyValue:       decimal.NewFromFloat(policy.PenaltyValue),
			ModificationFee:    decimal.NewFromFloat(policy.ModificationFee),
		},
		CheckInHour:      cfg.Booking.CheckInHour,
		CaptureOnConfirm: cfg.Billing.CaptureOnConfirm,
	}, nil
}
