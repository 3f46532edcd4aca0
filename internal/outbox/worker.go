package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/billing"
	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/repository"
)

// Worker retries refunds queued by cancellations until the gateway accepts
// them or the attempt budget is spent
type Worker struct {
	refunds     repository.RefundRepository
	bookings    repository.BookingRepository
	tx          repository.TxManager
	gateway     billing.Gateway
	logger      *zap.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

// Config holds worker configuration
type Config struct {
	Interval    time.Duration // Interval between processing cycles
	BatchSize   int           // Number of refunds to process per cycle
	MaxAttempts int           // Attempts before a refund is marked FAILED
}

// DefaultConfig returns a default worker configuration
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		BatchSize:   10,
		MaxAttempts: 5,
	}
}

// NewWorker creates a new refund worker
func NewWorker(store repository.Store, gateway billing.Gateway, logger *zap.Logger, config Config) *Worker {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	return &Worker{
		refunds:     store.Refunds(),
		bookings:    store.Bookings(),
		tx:          store,
		gateway:     gateway,
		logger:      logger,
		interval:    config.Interval,
		batchSize:   config.BatchSize,
		maxAttempts: config.MaxAttempts,
	}
}

// Start runs the worker until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting refund worker",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize),
		zap.Int("max_attempts", w.maxAttempts))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start
	if err := w.ProcessBatch(ctx); err != nil {
		w.logger.Error("Failed to process initial refund batch", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Refund worker stopping due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error("Failed to process refund batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch sends one batch of pending refunds to the gateway
func (w *Worker) ProcessBatch(ctx context.Context) error {
	pending, err := w.refunds.ListPendingRefunds(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending refunds: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.Info("Processing refund batch", zap.Int("count", len(pending)))

	for _, refund := range pending {
		if err := w.ProcessRefund(ctx, refund); err != nil {
			w.logger.Error("Failed to process refund",
				zap.Error(err),
				zap.String("refund_id", refund.ID),
				zap.String("booking_id", refund.BookingID))
			// Continue with the rest of the batch
		}
	}
	return nil
}

// ProcessRefund sends one refund with its stored idempotency key. Success
// marks the row and moves the booking's payment status. Failure records the
// attempt and is returned.
func (w *Worker) ProcessRefund(ctx context.Context, refund domain.PendingRefund) error {
	result, err := w.gateway.Refund(ctx, billing.RefundRequest{
		TransactionID:  refund.PaymentID,
		Amount:         refund.Amount,
		Currency:       refund.Currency,
		Reason:         refund.Reason,
		IdempotencyKey: refund.IdempotencyKey,
	})
	if err != nil {
		metrics.RecordRefund("error")
		if markErr := w.refunds.MarkRefundAttemptFailed(ctx, refund.ID, err.Error(), w.maxAttempts); markErr != nil {
			return errors.Join(err, fmt.Errorf("failed to record refund attempt: %w", markErr))
		}
		if refund.Attempts+1 >= w.maxAttempts {
			metrics.RecordRefund("failed")
			log.Error(ctx, "Refund gave up after max attempts",
				zap.String("refund_id", refund.ID),
				zap.String("booking_id", refund.BookingID),
				zap.Int("attempts", refund.Attempts+1))
		}
		return fmt.Errorf("refund %s failed: %w", refund.ID, err)
	}

	err = w.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := w.refunds.MarkRefundSucceeded(ctx, refund.ID); err != nil {
			return err
		}
		booking, err := w.bookings.GetBooking(ctx, refund.BookingID)
		if err != nil {
			return err
		}
		return w.bookings.UpdatePaymentStatus(ctx, booking.ID, RefundedStatus(*booking, refund.Amount), booking.PaymentTransactionID)
	})
	if err != nil {
		return fmt.Errorf("failed to record refund %s: %w", refund.ID, err)
	}
	metrics.RecordRefund("succeeded")

	log.Info(ctx, "Refund processed",
		zap.String("refund_id", refund.ID),
		zap.String("booking_id", refund.BookingID),
		zap.String("gateway_refund_id", result.TransactionID),
		zap.String("amount", refund.Amount.String()))
	return nil
}

// RefundedStatus is the payment status of a booking after refunding amount
func RefundedStatus(b domain.Booking, amount decimal.Decimal) domain.PaymentStatus {
	if amount.GreaterThanOrEqual(b.Pricing.TotalAmount) {
		return domain.PaymentRefunded
	}
	return domain.PaymentPartiallyRefunded
}

// Stop drains one last batch
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping refund worker")

	if err := w.ProcessBatch(ctx); err != nil {
		w.logger.Error("Failed to process final refund batch", zap.Error(err))
	}
	return nil
}
