package booking

import (
	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// CalculateDeposit returns the upfront amount policy asks for. The result is
// raised to MinimumAmount, lowered to MaximumAmount and never exceeds the
// booking total.
func CalculateDeposit(b domain.Booking, policy domain.DepositPolicy) decimal.Decimal {
	total := b.Pricing.TotalAmount
	currency := b.Pricing.Currency

	var deposit decimal.Decimal
	switch policy.Type {
	case domain.DepositPercentage:
		deposit = domain.Percent(total, policy.Value)
	case domain.DepositFixedAmount:
		deposit = policy.Value
	case domain.DepositFirstNight:
		deposit = b.Pricing.FirstNightAmount()
	case domain.DepositFull:
		deposit = total
	default:
		deposit = decimal.Zero
	}

	if deposit.LessThan(policy.MinimumAmount) {
		deposit = policy.MinimumAmount
	}
	if policy.MaximumAmount != nil && deposit.GreaterThan(*policy.MaximumAmount) {
		deposit = *policy.MaximumAmount
	}
	if !total.IsNegative() {
		deposit = domain.Clamp(deposit, decimal.Zero, total)
	}
	return domain.RoundAmount(deposit, currency)
}
