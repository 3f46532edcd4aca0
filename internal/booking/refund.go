package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// RefundCalculation is the outcome of applying a cancellation policy
type RefundCalculation struct {
	OriginalAmount      decimal.Decimal `json:"original_amount"`
	RefundableAmount    decimal.Decimal `json:"refundable_amount"`
	CancellationFee     decimal.Decimal `json:"cancellation_fee"`
	RefundPercentage    decimal.Decimal `json:"refund_percentage"`
	PolicyApplied       string          `json:"policy_applied"`
	HoursUntilCheckIn   float64         `json:"hours_until_check_in"`
	WithinPenaltyWindow bool            `json:"within_penalty_window"`
	Currency            string          `json:"currency"`
}

// RefundCalculator applies cancellation policies. The check-in instant is
// the check-in date at checkInHour UTC.
type RefundCalculator struct {
	now         func() time.Time
	checkInHour int
}

// NewRefundCalculator creates a calculator
func NewRefundCalculator(now func() time.Time, checkInHour int) *RefundCalculator {
	if now == nil {
		now = time.Now
	}
	return &RefundCalculator{now: now, checkInHour: checkInHour}
}

// CheckInTime is the moment a booking's stay begins
func (c *RefundCalculator) CheckInTime(b domain.Booking) time.Time {
	return domain.Day(b.CheckIn).Add(time.Duration(c.checkInHour) * time.Hour)
}

// HoursUntilCheckIn is negative once check-in has passed
func (c *RefundCalculator) HoursUntilCheckIn(b domain.Booking) float64 {
	return c.CheckInTime(b).Sub(c.now()).Hours()
}

// CalculateRefund computes the refundable amount and fee of cancelling b now.
// Outside the notice window the fee is whatever the refund percentage keeps.
// Inside it the fee follows the penalty type. Both are clamped to
// [0, original].
func (c *RefundCalculator) CalculateRefund(b domain.Booking, policy domain.CancellationPolicy) RefundCalculation {
	original := b.Pricing.TotalAmount
	currency := b.Pricing.Currency
	hours := c.HoursUntilCheckIn(b)

	calc := RefundCalculation{
		OriginalAmount:    original,
		RefundPercentage:  policy.RefundPercentage,
		PolicyApplied:     policy.Name,
		HoursUntilCheckIn: hours,
		Currency:          currency,
	}
	if calc.PolicyApplied == "" {
		calc.PolicyApplied = "default"
	}

	refundable := domain.Percent(original, policy.RefundPercentage)
	var fee decimal.Decimal
	if hours >= float64(policy.HoursBeforeCheckIn) {
		fee = original.Sub(refundable)
	} else {
		calc.WithinPenaltyWindow = true
		switch policy.PenaltyType {
		case domain.PenaltyPercentage:
			fee = domain.Percent(original, policy.PenaltyValue)
		case domain.PenaltyFixedAmount:
			fee = policy.PenaltyValue
		case domain.PenaltyFirstNight:
			fee = b.Pricing.FirstNightAmount()
		default:
			fee = original.Sub(refundable)
		}
	}

	upper := decimal.Max(original, decimal.Zero)
	calc.RefundableAmount = domain.RoundAmount(domain.Clamp(refundable, decimal.Zero, upper), currency)
	calc.CancellationFee = domain.RoundAmount(domain.Clamp(fee, decimal.Zero, upper), currency)
	return calc
}
