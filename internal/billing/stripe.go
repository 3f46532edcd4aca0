package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
)

const stripeCallTimeout = 30 * time.Second

// StripeGateway implements Gateway with Stripe PaymentIntents using manual
// capture, so confirmation only places a hold on the card.
type StripeGateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeGateway creates a Stripe gateway. backends may be nil to use the
// default Stripe endpoints.
func NewStripeGateway(secretKey string, backends *stripe.Backends, logger *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api, logger: logger}
}

// Authorize creates and confirms a PaymentIntent with manual capture
func (s *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrPaymentDeclined)
	}
	ctx, cancel := context.WithTimeout(ctx, stripeCallTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(req.Amount, req.Currency)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Description:   stripe.String(req.Description),
	}
	if req.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
		params.Confirm = stripe.Bool(true)
	}
	params.Context = ctx
	params.AddMetadata("booking_id", req.BookingID)
	params.SetIdempotencyKey(req.IdempotencyKey)

	s.logger.Info("Authorizing payment with Stripe",
		zap.String("booking_id", req.BookingID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency))

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, s.wrapError("authorize", err)
	}
	return s.intentResult(pi, req.Currency), nil
}

// Capture collects an authorized PaymentIntent
func (s *StripeGateway) Capture(ctx context.Context, transactionID string, amount decimal.Decimal, currency, idempotencyKey string) (*PaymentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, stripeCallTimeout)
	defer cancel()

	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(toMinorUnits(amount, currency)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := s.api.PaymentIntents.Capture(transactionID, params)
	if err != nil {
		return nil, s.wrapError("capture", err)
	}
	return s.intentResult(pi, currency), nil
}

// Void cancels an uncaptured PaymentIntent
func (s *StripeGateway) Void(ctx context.Context, transactionID, idempotencyKey string) (*PaymentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, stripeCallTimeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := s.api.PaymentIntents.Cancel(transactionID, params)
	if err != nil {
		return nil, s.wrapError("void", err)
	}
	return s.intentResult(pi, string(pi.Currency)), nil
}

// Refund refunds a captured PaymentIntent
func (s *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*PaymentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, stripeCallTimeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.TransactionID),
		Amount:        stripe.Int64(toMinorUnits(req.Amount, req.Currency)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, s.wrapError("refund", err)
	}

	result := &PaymentResult{
		TransactionID: r.ID,
		Amount:        fromMinorUnits(r.Amount, req.Currency),
	}
	switch r.Status {
	case stripe.RefundStatusSucceeded, stripe.RefundStatusPending:
		result.Status = domain.PaymentRefunded
	default:
		result.Status = domain.PaymentFailed
		result.Message = string(r.FailureReason)
		return result, fmt.Errorf("%w: refund %s", ErrPaymentDeclined, r.Status)
	}

	s.logger.Info("Stripe refund created",
		zap.String("refund_id", r.ID),
		zap.String("payment_intent", req.TransactionID),
		zap.String("status", string(r.Status)))
	return result, nil
}

func (s *StripeGateway) intentResult(pi *stripe.PaymentIntent, currency string) *PaymentResult {
	result := &PaymentResult{
		TransactionID: pi.ID,
		Amount:        fromMinorUnits(pi.Amount, currency),
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		result.Status = domain.PaymentAuthorized
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = domain.PaymentCaptured
		if pi.AmountReceived > 0 {
			result.Amount = fromMinorUnits(pi.AmountReceived, currency)
		}
	case stripe.PaymentIntentStatusCanceled:
		result.Status = domain.PaymentVoided
	default:
		result.Status = domain.PaymentPending
		result.Message = string(pi.Status)
	}
	return result
}

// wrapError marks card errors as declines and leaves the rest retryable
func (s *StripeGateway) wrapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		s.logger.Warn("Stripe request failed",
			zap.String("operation", op),
			zap.String("type", string(stripeErr.Type)),
			zap.String("code", string(stripeErr.Code)),
			zap.Int("http_status", stripeErr.HTTPStatusCode),
			zap.String("request_id", stripeErr.RequestID))

		if stripeErr.Type == stripe.ErrorTypeCard ||
			(stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429) {
			return fmt.Errorf("%w: %s", ErrPaymentDeclined, stripeErr.Msg)
		}
		return fmt.Errorf("stripe %s failed (%d): %w", op, stripeErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("stripe %s failed: %w", op, err)
}
