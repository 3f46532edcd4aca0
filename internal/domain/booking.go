package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingSnapshot is the frozen price of a booking. It is only replaced by a
// modification, never recomputed in place.
type PricingSnapshot struct {
	Currency          string                   `json:"currency"`
	BaseAmount        decimal.Decimal          `json:"base_amount"`
	DiscountAmount    decimal.Decimal          `json:"discount_amount"`
	TaxAmount         decimal.Decimal          `json:"tax_amount"`
	FeeAmount         decimal.Decimal          `json:"fee_amount"`
	TotalAmount       decimal.Decimal          `json:"total_amount"`
	Lines             []PriceCalculationResult `json:"lines"`
	AppliedPromotions []AppliedPromotion       `json:"applied_promotions"`
	QuotedAt          time.Time                `json:"quoted_at"`
	ValidUntil        time.Time                `json:"valid_until"`
}

// FirstNightAmount sums the first night of every priced room line
func (p PricingSnapshot) FirstNightAmount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.FirstNightAmount())
	}
	return total
}

// BookedRoom is one room line of a booking
type BookedRoom struct {
	ID            string          `json:"id"`
	BookingID     string          `json:"booking_id"`
	RoomTypeID    string          `json:"room_type_id"`
	Quantity      int             `json:"quantity"`
	GuestsPerRoom int             `json:"guests_per_room"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// Booking is a guest reservation
type Booking struct {
	ID                   string          `json:"id"`
	ConfirmationNumber   string          `json:"confirmation_number"`
	PropertyID           string          `json:"property_id"`
	GuestID              string          `json:"guest_id"`
	CheckIn              time.Time       `json:"check_in"`
	CheckOut             time.Time       `json:"check_out"`
	Nights               int             `json:"nights"`
	Rooms                []BookedRoom    `json:"rooms"`
	Pricing              PricingSnapshot `json:"pricing"`
	Status               BookingStatus   `json:"status"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	PaymentTransactionID string          `json:"payment_transaction_id,omitempty"`
	PaymentMethodID      string          `json:"payment_method_id,omitempty"`
	DepositAmount        decimal.Decimal `json:"deposit_amount"`
	RefundAmount         decimal.Decimal `json:"refund_amount"`
	CancellationFee      decimal.Decimal `json:"cancellation_fee"`
	CancellationReason   string          `json:"cancellation_reason,omitempty"`
	BookingSource        string          `json:"booking_source,omitempty"`
	CorporateCode        string          `json:"corporate_code,omitempty"`
	LoyaltyMemberID      string          `json:"loyalty_member_id,omitempty"`
	SpecialRequests      string          `json:"special_requests,omitempty"`
	BookedAt             time.Time       `json:"booked_at"`
	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty"`
	CheckedInAt          *time.Time      `json:"checked_in_at,omitempty"`
	CheckedOutAt         *time.Time      `json:"checked_out_at,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
	ReminderSentAt       *time.Time      `json:"reminder_sent_at,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Version              int             `json:"version"`
}

// PromotionIDs lists the promotions redeemed by the booking
func (b Booking) PromotionIDs() []string {
	ids := make([]string, 0, len(b.Pricing.AppliedPromotions))
	for _, p := range b.Pricing.AppliedPromotions {
		ids = append(ids, p.PromotionID)
	}
	return ids
}

// Clone returns a deep copy of the booking
func (b Booking) Clone() Booking {
	c := b
	c.Rooms = append([]BookedRoom(nil), b.Rooms...)
	c.Pricing.Lines = append([]PriceCalculationResult(nil), b.Pricing.Lines...)
	c.Pricing.AppliedPromotions = append([]AppliedPromotion(nil), b.Pricing.AppliedPromotions...)
	return c
}

// BookingHistory is an audit entry of a status change
type BookingHistory struct {
	ID         string         `json:"id"`
	BookingID  string         `json:"booking_id"`
	FromStatus BookingStatus  `json:"from_status,omitempty"`
	ToStatus   BookingStatus  `json:"to_status"`
	ChangedBy  string         `json:"changed_by"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ChangedAt  time.Time      `json:"changed_at"`
}

// CancellationPolicy governs refunds for a property
type CancellationPolicy struct {
	ID                 string          `json:"id"`
	PropertyID         string          `json:"property_id"`
	Name               string          `json:"name"`
	RefundPercentage   decimal.Decimal `json:"refund_percentage"`
	HoursBeforeCheckIn int             `json:"hours_before_check_in"`
	PenaltyType        PenaltyType     `json:"penalty_type"`
	PenaltyValue       decimal.Decimal `json:"penalty_value"`
	ModificationFee    decimal.Decimal `json:"modification_fee"`
}

// DepositPolicy decides the upfront amount of a booking
type DepositPolicy struct {
	Type          DepositType      `json:"type"`
	Value         decimal.Decimal  `json:"value"`
	MinimumAmount decimal.Decimal  `json:"minimum_amount"`
	MaximumAmount *decimal.Decimal `json:"maximum_amount,omitempty"`
}

// PendingRefund is an outbox row for a refund that still has to reach the gateway
type PendingRefund struct {
	ID             string          `json:"id"`
	BookingID      string          `json:"booking_id"`
	PaymentID      string          `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
	Attempts       int             `json:"attempts"`
	Status         RefundStatus    `json:"status"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
