package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
)

// ErrPaymentDeclined marks a failure caused by the payer rather than the
// gateway. It is never retried.
var ErrPaymentDeclined = errors.New("payment declined")

// Gateway is the payment collaborator used by the booking lifecycle
type Gateway interface {
	// Authorize places a hold for the amount without capturing it
	Authorize(ctx context.Context, req AuthorizeRequest) (*PaymentResult, error)

	// Capture collects up to the authorized amount
	Capture(ctx context.Context, transactionID string, amount decimal.Decimal, currency, idempotencyKey string) (*PaymentResult, error)

	// Void releases an authorization that was never captured
	Void(ctx context.Context, transactionID, idempotencyKey string) (*PaymentResult, error)

	// Refund returns captured money to the payer
	Refund(ctx context.Context, req RefundRequest) (*PaymentResult, error)
}

// AuthorizeRequest asks the gateway to hold an amount for a booking
type AuthorizeRequest struct {
	BookingID       string          `json:"booking_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentMethodID string          `json:"payment_method_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key"`
}

// RefundRequest asks the gateway to refund part or all of a captured payment
type RefundRequest struct {
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// PaymentResult is the gateway's answer to any payment operation
type PaymentResult struct {
	Status        domain.PaymentStatus `json:"status"`
	TransactionID string               `json:"transaction_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Message       string               `json:"message,omitempty"`
}

// Operation names used for idempotency keys and metrics
const (
	OpAuthorize  = "authorize"
	OpCapture    = "capture"
	OpCaptureFee = "capture_fee" // cancellation fee taken from an uncaptured hold
	OpVoid       = "void"
	OpRefund     = "refund"
)

// IdempotencyKey builds the deterministic key of a booking payment operation
func IdempotencyKey(bookingID, operation string) string {
	return fmt.Sprintf("booking:%s:%s", bookingID, operation)
}

// ProviderConfig selects and configures a gateway
type ProviderConfig struct {
	Provider     string
	StripeSecret string
}

// NewGateway builds the configured gateway
func NewGateway(cfg ProviderConfig, logger *zap.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "mock", "noop", "":
		return NewMockGateway(), nil
	case "stripe":
		if cfg.StripeSecret == "" {
			return nil, fmt.Errorf("stripe secret key is required")
		}
		return NewStripeGateway(cfg.StripeSecret, nil, logger), nil
	default:
		return nil, fmt.Errorf("unsupported billing provider: %s", cfg.Provider)
	}
}

// toMinorUnits converts an amount to the integer minor units of its currency
func toMinorUnits(amount decimal.Decimal, currency string) int64 {
	return domain.RoundAmount(amount, currency).Shift(domain.MinorUnits(currency)).IntPart()
}

func fromMinorUnits(units int64, currency string) decimal.Decimal {
	return decimal.New(units, -domain.MinorUnits(currency))
}
