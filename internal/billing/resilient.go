package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/circuitbreaker"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/retry"
)

// ResilientConfig tunes retries and the circuit breaker around a gateway
type ResilientConfig struct {
	Retry   retry.Config
	Breaker circuitbreaker.Config
}

// ResilientGateway retries transient gateway failures behind one circuit
// breaker per operation. Declines are returned at once and never trip the
// breaker. Retries are safe because every call carries an idempotency key.
type ResilientGateway struct {
	next     Gateway
	breakers *circuitbreaker.Manager
	cfg      ResilientConfig
	logger   *zap.Logger
}

// NewResilientGateway wraps next
func NewResilientGateway(next Gateway, cfg ResilientConfig, logger *zap.Logger) *ResilientGateway {
	cfg.Breaker.IsSuccessful = func(err error) bool { return errors.Is(err, ErrPaymentDeclined) }
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	return &ResilientGateway{
		next:     next,
		breakers: circuitbreaker.NewManager(logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// BreakerStats exposes the state of every breaker
func (g *ResilientGateway) BreakerStats() map[string]circuitbreaker.Stats {
	return g.breakers.GetAllStats()
}

func (g *ResilientGateway) call(ctx context.Context, op string, fn func() (*PaymentResult, error)) (*PaymentResult, error) {
	start := time.Now()
	breaker := g.breakers.GetOrCreate("payment."+op, g.cfg.Breaker)

	var result *PaymentResult
	err := retry.Do(ctx, g.cfg.Retry, g.logger, func() error {
		return breaker.Execute(ctx, func() error {
			r, err := fn()
			if err != nil {
				if errors.Is(err, ErrPaymentDeclined) || !retry.IsRetryableError(err) {
					return retry.Permanent(err)
				}
				return err
			}
			result = r
			return nil
		})
	})

	status := "success"
	switch {
	case errors.Is(err, ErrPaymentDeclined):
		status = "declined"
	case err != nil:
		status = "error"
	}
	metrics.RecordPaymentOperation(op, status, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *ResilientGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*PaymentResult, error) {
	return g.call(ctx, OpAuthorize, func() (*PaymentResult, error) { return g.next.Authorize(ctx, req) })
}

func (g *ResilientGateway) Capture(ctx context.Context, transactionID string, amount decimal.Decimal, currency, idempotencyKey string) (*PaymentResult, error) {
	return g.call(ctx, OpCapture, func() (*PaymentResult, error) {
		return g.next.Capture(ctx, transactionID, amount, currency, idempotencyKey)
	})
}

func (g *ResilientGateway) Void(ctx context.Context, transactionID, idempotencyKey string) (*PaymentResult, error) {
	return g.call(ctx, OpVoid, func() (*PaymentResult, error) { return g.next.Void(ctx, transactionID, idempotencyKey) })
}

func (g *ResilientGateway) Refund(ctx context.Context, req RefundRequest) (*PaymentResult, error) {
	return g.call(ctx, OpRefund, func() (*PaymentResult, error) { return g.next.Refund(ctx, req) })
}
