package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jia-app/hotelservice/internal/billing"
	"github.com/jia-app/hotelservice/internal/booking"
	"github.com/jia-app/hotelservice/internal/cache"
	"github.com/jia-app/hotelservice/internal/config"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/notification"
	"github.com/jia-app/hotelservice/internal/outbox"
	"github.com/jia-app/hotelservice/internal/pricing"
	"github.com/jia-app/hotelservice/internal/ratelimit"
	"github.com/jia-app/hotelservice/internal/repository"
	"github.com/jia-app/hotelservice/internal/server"
	"github.com/jia-app/hotelservice/internal/server/hotelapi"
	"github.com/jia-app/hotelservice/internal/usecase"
)

const metricsShutdownTimeout = 5 * time.Second

// Services are the configuration services of the rate engine
type Services struct {
	SeasonalRates *usecase.SeasonalRateService
	DynamicRules  *usecase.DynamicRuleService
	Promotions    *usecase.PromotionService
	Taxes         *usecase.TaxService
}

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger

	store    repository.Store
	cache    *cache.Cache // nil when redis is unavailable
	notifier notification.Service
	gateway  billing.Gateway

	pricer   *pricing.Orchestrator
	bookings *booking.Manager
	services Services

	sweeper       *booking.Sweeper
	refundWorker  *outbox.Worker
	grpcServer    *server.GRPCServer
	metricsServer *metrics.Server

	closeOnce sync.Once
}

// New creates a new application instance. Storage must be reachable; the
// price cache and Kafka are optional and degrade with a warning.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing hotel service application",
		zap.String("app_name", cfg.AppName),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("grpc_address", cfg.GRPC.Address))

	a := &App{config: cfg, logger: logger}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store

	a.cache = newCache(cfg, logger)

	a.gateway, err = newGateway(cfg, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	a.notifier, err = newNotifier(cfg, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	var priceCache *pricing.PriceCache
	if a.cache != nil && cfg.Pricing.CacheTTL > 0 {
		priceCache = pricing.NewPriceCache(a.cache, cfg.Pricing.CacheTTL)
	}
	a.pricer = pricing.NewOrchestrator(
		pricing.DependenciesFromStore(store),
		priceCache,
		pricing.WithQuoteValidity(cfg.Pricing.QuoteValidity),
	)

	a.services = newServices(store, a.pricer.Cache())

	a.refundWorker = outbox.NewWorker(store, a.gateway, logger.Named("refunds"), outbox.Config{
		Interval:    cfg.Refunds.WorkerInterval,
		BatchSize:   cfg.Refunds.BatchSize,
		MaxAttempts: cfg.Refunds.MaxAttempts,
	})

	bookingCfg, err := bookingConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.bookings = booking.NewManager(booking.Dependencies{
		Store:    store,
		Pricer:   a.pricer,
		Gateway:  a.gateway,
		Notifier: a.notifier,
		Refunds:  a.refundWorker,
	}, bookingCfg, logger.Named("booking"))

	a.sweeper, err = booking.NewSweeper(a.bookings, booking.SweeperConfig{
		Interval:     cfg.Booking.SweepInterval,
		PendingTTL:   cfg.Booking.PendingTTL,
		NoShowGrace:  cfg.Booking.NoShowGrace,
		ReminderLead: cfg.Booking.ReminderLead,
		BatchSize:    cfg.Booking.SweepBatchSize,
	}, logger.Named("sweeper"))
	if err != nil {
		a.close()
		return nil, err
	}

	var serverOpts []server.Option
	if a.cache != nil && cfg.GRPC.RateLimitPerMinute > 0 {
		limiter := ratelimit.NewWindowLimiter(a.cache, cfg.GRPC.RateLimitPerMinute, time.Minute, logger.Named("ratelimit"))
		serverOpts = append(serverOpts, server.WithRateLimiter(limiter))
	}

	checks := a.healthChecks()
	a.grpcServer = server.NewGRPCServer(cfg.GRPC, checks, logger.Named("grpc"), serverOpts...)
	a.grpcServer.RegisterService(&hotelapi.ServiceDesc, hotelapi.NewServer(hotelapi.Backends{
		Pricer:        a.pricer,
		Bookings:      a.bookings,
		SeasonalRates: a.services.SeasonalRates,
		DynamicRules:  a.services.DynamicRules,
		Promotions:    a.services.Promotions,
		Taxes:         a.services.Taxes,
	}))
	a.metricsServer = metrics.NewServer(cfg.Metrics.Address, logger.Named("metrics"), checks)

	return a, nil
}

// newServices wires the configuration services to the store. Every change
// drops the cached quotes of the affected property.
func newServices(store repository.Store, invalidator *pricing.PriceCache) Services {
	var inv usecase.CacheInvalidator
	if invalidator != nil {
		inv = invalidator
	}
	return Services{
		SeasonalRates: usecase.NewSeasonalRateService(store.SeasonalRates(), store.Properties(), inv),
		DynamicRules:  usecase.NewDynamicRuleService(store.DynamicRules(), store.Properties(), inv),
		Promotions:    usecase.NewPromotionService(store.Promotions(), store.Properties(), inv),
		Taxes:         usecase.NewTaxService(store.Taxes(), store.Properties(), inv),
	}
}

func (a *App) healthChecks() map[string]metrics.HealthCheck {
	checks := map[string]metrics.HealthCheck{
		"store": a.store.Ping,
	}
	if a.cache != nil {
		checks["redis"] = a.cache.Ping
	}
	return checks
}

// Pricer returns the rate engine
func (a *App) Pricer() *pricing.Orchestrator { return a.pricer }

// Bookings returns the booking lifecycle manager
func (a *App) Bookings() *booking.Manager { return a.bookings }

// Services returns the configuration services
func (a *App) Services() Services { return a.services }

// Store returns the repository store
func (a *App) Store() repository.Store { return a.store }

// Run starts the background workers and servers and blocks until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting hotel service application")

	if err := a.sweeper.Start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.refundWorker.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("refund worker error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.metricsServer.Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return a.metricsServer.Shutdown(shutdownCtx)
	})

	a.grpcServer.StartHealthMonitoring(ctx)
	g.Go(func() error {
		if err := a.grpcServer.Serve(ctx); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown stops the workers and releases every connection
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down hotel service application")

	var errs []error
	if err := a.sweeper.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := a.metricsServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop metrics server: %w", err))
	}
	if err := a.refundWorker.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	notified := make(chan struct{})
	go func() {
		a.bookings.Wait()
		close(notified)
	}()
	select {
	case <-notified:
	case <-ctx.Done():
		a.logger.Warn("Shutdown deadline reached with notifications in flight")
	}

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("Application shutdown complete")
	return errors.Join(errs...)
}

// close releases connections; safe to call more than once
func (a *App) close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if closer, ok := a.notifier.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close notifier: %w", err))
			}
		}
		if a.cache != nil {
			if err := a.cache.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
			}
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close store: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}
