package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/billing"
	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/notification"
	"github.com/jia-app/hotelservice/internal/repository"
	"github.com/jia-app/hotelservice/internal/tracing"
)

// CancelRequest is the input of CancelBooking
type CancelRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelledBy"`
}

// CancellationResult is returned by CancelBooking
type CancellationResult struct {
	Booking        *domain.Booking     `json:"booking"`
	Refund         RefundCalculation   `json:"refundCalculation"`
	RefundAmount   decimal.Decimal     `json:"refundAmount"`
	RefundEligible bool                `json:"refundEligible"`
	RefundStatus   domain.RefundStatus `json:"refundStatus,omitempty"`
	RefundError    string              `json:"refundError,omitempty"`
}

// CancelBooking cancels a booking under its property's cancellation policy.
// The status change and the refund job are written together; the refund is
// then attempted once and left to the outbox worker if that fails. An
// authorization that was never captured is captured for the fee only, or
// voided when there is no fee.
func (m *Manager) CancelBooking(ctx context.Context, bookingID string, req CancelRequest) (result *CancellationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking.CancelBooking", attribute.String("booking_id", bookingID))
	defer func() { tracing.EndSpan(span, err) }()

	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, domain.BookingCancelled) {
		return nil, domain.NewConflictError("Booking cannot be cancelled",
			fmt.Sprintf("booking %s is %s", b.ID, b.Status))
	}

	policy, err := m.cancellationPolicy(ctx, b.PropertyID)
	if err != nil {
		return nil, err
	}
	calc := m.calculator.CalculateRefund(*b, policy)
	eligible := b.PaymentStatus == domain.PaymentCaptured && calc.RefundableAmount.IsPositive()

	cancelledBy := req.CancelledBy
	if cancelledBy == "" {
		cancelledBy = b.GuestID
	}

	now := m.now()
	cancelled := b.Clone()
	cancelled.Status = domain.BookingCancelled
	cancelled.CancelledAt = &now
	cancelled.CancellationReason = req.Reason
	cancelled.CancellationFee = calc.CancellationFee
	cancelled.RefundAmount = decimal.Zero
	if eligible {
		cancelled.RefundAmount = calc.RefundableAmount
	}
	cancelled.UpdatedAt = now
	cancelled.Version++

	var refund *domain.PendingRefund
	if eligible {
		refund = &domain.PendingRefund{
			ID:             uuid.NewString(),
			BookingID:      b.ID,
			PaymentID:      b.PaymentTransactionID,
			Amount:         calc.RefundableAmount,
			Currency:       calc.Currency,
			Reason:         req.Reason,
			IdempotencyKey: billing.IdempotencyKey(b.ID, billing.OpRefund),
			Status:         domain.RefundPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	err = m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := m.bookings.UpdateBooking(ctx, cancelled, b.Status, b.Version); err != nil {
			return transitionError(err, b.ID, b.Status, domain.BookingCancelled)
		}
		entry := m.historyEntry(b.ID, b.Status, domain.BookingCancelled, cancelledBy, req.Reason, map[string]any{
			"policy":            calc.PolicyApplied,
			"refund_amount":     cancelled.RefundAmount.String(),
			"cancellation_fee":  calc.CancellationFee.String(),
			"within_penalty":    calc.WithinPenaltyWindow,
			"hours_to_check_in": calc.HoursUntilCheckIn,
		})
		if err := m.bookings.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to append booking history: %w", err)
		}
		if refund == nil {
			return nil
		}
		if err := m.refundRepo.EnqueueRefund(ctx, *refund); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.NewConflictError("Refund already queued", b.ID)
			}
			return fmt.Errorf("failed to enqueue refund: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(b.Status), string(domain.BookingCancelled))
	log.Info(ctx, "Booking cancelled",
		zap.String("booking_id", b.ID),
		zap.String("from", string(b.Status)),
		zap.String("policy", calc.PolicyApplied),
		zap.String("refund_amount", cancelled.RefundAmount.String()),
		zap.String("cancellation_fee", calc.CancellationFee.String()))

	result = &CancellationResult{
		Refund:         calc,
		RefundAmount:   cancelled.RefundAmount,
		RefundEligible: eligible,
	}

	switch {
	case b.PaymentStatus == domain.PaymentAuthorized:
		m.settleAuthorization(ctx, &cancelled)
	case refund != nil:
		result.RefundStatus = domain.RefundPending
		if m.refunds != nil {
			if err := m.refunds.ProcessRefund(ctx, *refund); err != nil {
				result.RefundError = err.Error()
				log.Warn(ctx, "Refund deferred to worker",
					zap.String("booking_id", b.ID),
					zap.String("refund_id", refund.ID),
					zap.Error(err))
			} else {
				result.RefundStatus = domain.RefundSucceeded
			}
		}
	}

	if fresh, err := m.bookings.GetBooking(ctx, b.ID); err == nil {
		cancelled = *fresh
	}
	result.Booking = &cancelled

	m.notify(ctx, notification.TypeUpdate, cancelled, req.Reason)
	return result, nil
}

// settleAuthorization captures the cancellation fee from an uncaptured hold,
// releasing the rest, or voids the hold when nothing is owed
func (m *Manager) settleAuthorization(ctx context.Context, b *domain.Booking) {
	if b.CancellationFee.IsPositive() {
		captured, err := m.gateway.Capture(ctx, b.PaymentTransactionID, b.CancellationFee, b.Pricing.Currency,
			billing.IdempotencyKey(b.ID, billing.OpCaptureFee))
		if err != nil {
			metrics.RecordError("payment_capture", "booking")
			log.Error(ctx, "Failed to capture cancellation fee",
				zap.String("booking_id", b.ID),
				zap.String("fee", b.CancellationFee.String()),
				zap.Error(err))
			return
		}
		m.setPaymentStatus(ctx, b, captured.Status)
		return
	}
	if m.voidAuthorization(ctx, b.ID, b.PaymentTransactionID) {
		m.setPaymentStatus(ctx, b, domain.PaymentVoided)
	}
}

func (m *Manager) setPaymentStatus(ctx context.Context, b *domain.Booking, status domain.PaymentStatus) {
	if err := m.bookings.UpdatePaymentStatus(ctx, b.ID, status, ""); err != nil {
		log.Error(ctx, "Failed to record payment status",
			zap.String("booking_id", b.ID),
			zap.String("payment_status", string(status)),
			zap.Error(err))
		return
	}
	b.PaymentStatus = status
	b.Version++
}

// cancellationPolicy returns the property's policy or the configured default
func (m *Manager) cancellationPolicy(ctx context.Context, propertyID string) (domain.CancellationPolicy, error) {
	policy, err := m.policies.GetCancellationPolicy(ctx, propertyID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		def := m.cfg.DefaultPolicy
		def.PropertyID = propertyID
		return def, nil
	case err != nil:
		return domain.CancellationPolicy{}, fmt.Errorf("failed to load cancellation policy: %w", err)
	}
	return *policy, nil
}
