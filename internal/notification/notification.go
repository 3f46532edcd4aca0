package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
)

// Type names a guest notification
type Type string

const (
	TypeConfirmation Type = "booking.confirmation"
	TypeUpdate       Type = "booking.update"
	TypeReminder     Type = "booking.reminder"
)

// Delivery statuses reported in Result
const (
	StatusQueued  = "QUEUED"
	StatusSkipped = "SKIPPED"
)

// BookingData is the booking information a notification carries
type BookingData struct {
	BookingID          string               `json:"booking_id"`
	ConfirmationNumber string               `json:"confirmation_number"`
	PropertyID         string               `json:"property_id"`
	GuestID            string               `json:"guest_id"`
	Status             domain.BookingStatus `json:"status"`
	CheckIn            time.Time            `json:"check_in"`
	CheckOut           time.Time            `json:"check_out"`
	Nights             int                  `json:"nights"`
	TotalAmount        decimal.Decimal      `json:"total_amount"`
	RefundAmount       decimal.Decimal      `json:"refund_amount"`
	Currency           string               `json:"currency"`
	Message            string               `json:"message,omitempty"`
}

// NewBookingData extracts the notification payload of a booking
func NewBookingData(b domain.Booking, message string) BookingData {
	return BookingData{
		BookingID:          b.ID,
		ConfirmationNumber: b.ConfirmationNumber,
		PropertyID:         b.PropertyID,
		GuestID:            b.GuestID,
		Status:             b.Status,
		CheckIn:            b.CheckIn,
		CheckOut:           b.CheckOut,
		Nights:             b.Nights,
		TotalAmount:        b.Pricing.TotalAmount,
		RefundAmount:       b.RefundAmount,
		Currency:           b.Pricing.Currency,
		Message:            message,
	}
}

// Result describes an accepted notification
type Result struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Channels []string `json:"channels"`
}

// Service delivers guest notifications. Callers treat it as best effort.
type Service interface {
	SendBookingConfirmation(ctx context.Context, data BookingData) (*Result, error)
	SendBookingUpdate(ctx context.Context, data BookingData) (*Result, error)
	SendBookingReminder(ctx context.Context, data BookingData) (*Result, error)
}

// NoopNotifier drops every notification. Used when no broker is configured.
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a notifier that only logs
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) skip(t Type, data BookingData) (*Result, error) {
	n.logger.Debug("Notification skipped",
		zap.String("type", string(t)),
		zap.String("booking_id", data.BookingID))
	return &Result{ID: uuid.NewString(), Status: StatusSkipped}, nil
}

func (n *NoopNotifier) SendBookingConfirmation(ctx context.Context, data BookingData) (*Result, error) {
	return n.skip(TypeConfirmation, data)
}

func (n *NoopNotifier) SendBookingUpdate(ctx context.Context, data BookingData) (*Result, error) {
	return n.skip(TypeUpdate, data)
}

func (n *NoopNotifier) SendBookingReminder(ctx context.Context, data BookingData) (*Result, error) {
	return n.skip(TypeReminder, data)
}
