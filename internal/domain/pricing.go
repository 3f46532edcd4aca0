package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRequest is the input of a price calculation
type PriceRequest struct {
	PropertyID        string    `json:"property_id"`
	RoomTypeID        string    `json:"room_type_id"`
	CheckIn           time.Time `json:"check_in"`
	CheckOut          time.Time `json:"check_out"`
	GuestCount        int       `json:"guest_count"`
	RoomQuantity      int       `json:"room_quantity"`
	PromotionCodes    []string  `json:"promotion_codes,omitempty"`
	CorporateCode     string    `json:"corporate_code,omitempty"`
	LoyaltyMemberID   string    `json:"loyalty_member_id,omitempty"`
	BookingSource     string    `json:"booking_source,omitempty"`
	GuestID           string    `json:"guest_id,omitempty"`
	RequirePromotions bool      `json:"require_promotions,omitempty"`
	// HeldPromotionIDs are promotions the booking being re-priced already
	// redeemed. Their usage limits already count that booking.
	HeldPromotionIDs []string `json:"held_promotion_ids,omitempty"`
}

// Adjustment records one step applied to a nightly rate
type Adjustment struct {
	Source string          `json:"source"`
	RuleID string          `json:"rule_id"`
	Name   string          `json:"name"`
	Method string          `json:"method"`
	Value  decimal.Decimal `json:"value"`
	Before decimal.Decimal `json:"before"`
	After  decimal.Decimal `json:"after"`
}

// NightlyRate is the priced result for one night
type NightlyRate struct {
	Date         time.Time       `json:"date"`
	BaseRate     decimal.Decimal `json:"base_rate"`
	AdjustedRate decimal.Decimal `json:"adjusted_rate"`
	Adjustments  []Adjustment    `json:"adjustments"`
	FinalRate    decimal.Decimal `json:"final_rate"`
}

// LineItem is an entry of the price breakdown
type LineItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity,omitempty"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Amount      decimal.Decimal `json:"amount"`
	Inclusive   bool            `json:"inclusive,omitempty"`
}

// PriceBreakdown groups line items by kind
type PriceBreakdown struct {
	RoomCharges []LineItem `json:"room_charges"`
	Taxes       []LineItem `json:"taxes"`
	Fees        []LineItem `json:"fees"`
	Discounts   []LineItem `json:"discounts"`
}

// AppliedPromotion is a promotion that reduced the price
type AppliedPromotion struct {
	PromotionID string          `json:"promotion_id"`
	Code        string          `json:"code,omitempty"`
	Name        string          `json:"name"`
	Discount    decimal.Decimal `json:"discount"`
}

// RejectedPromotion is a requested code that could not be applied
type RejectedPromotion struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// PriceCalculationResult is an immutable quote
type PriceCalculationResult struct {
	PropertyID         string              `json:"property_id"`
	RoomTypeID         string              `json:"room_type_id"`
	CheckIn            time.Time           `json:"check_in"`
	CheckOut           time.Time           `json:"check_out"`
	Nights             int                 `json:"nights"`
	RoomQuantity       int                 `json:"room_quantity"`
	GuestCount         int                 `json:"guest_count"`
	BaseAmount         decimal.Decimal     `json:"base_amount"`
	DiscountAmount     decimal.Decimal     `json:"discount_amount"`
	TaxAmount          decimal.Decimal     `json:"tax_amount"`
	FeeAmount          decimal.Decimal     `json:"fee_amount"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	Currency           string              `json:"currency"`
	Breakdown          PriceBreakdown      `json:"breakdown"`
	NightlyRates       []NightlyRate       `json:"nightly_rates"`
	AppliedPromotions  []AppliedPromotion  `json:"applied_promotions"`
	RejectedPromotions []RejectedPromotion `json:"rejected_promotions,omitempty"`
	CalculatedAt       time.Time           `json:"calculated_at"`
	ValidUntil         time.Time           `json:"valid_until"`
}

// FirstNightAmount is the final rate of the first night for every room
func (r PriceCalculationResult) FirstNightAmount() decimal.Decimal {
	if len(r.NightlyRates) == 0 {
		return decimal.Zero
	}
	return r.NightlyRates[0].FinalRate.Mul(decimal.NewFromInt(int64(r.RoomQuantity)))
}
