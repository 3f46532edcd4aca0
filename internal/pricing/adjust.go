package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// Adjustment sources recorded on nightly rates
const (
	SourceSeasonal = "SEASONAL"
	SourceDynamic  = "DYNAMIC"
)

var one = decimal.NewFromInt(1)

// adjustRate applies a signed adjustment value with the given method.
// PERCENTAGE is rate*(1+value/100), MULTIPLIER is rate*value,
// FIXED_AMOUNT is rate+value and SET_RATE replaces the rate.
func adjustRate(rate decimal.Decimal, method domain.AdjustmentMethod, value decimal.Decimal) decimal.Decimal {
	switch method {
	case domain.AdjustmentPercentage:
		return rate.Mul(one.Add(value.Div(hundred)))
	case domain.AdjustmentFixedAmount:
		return rate.Add(value)
	case domain.AdjustmentMultiplier:
		return rate.Mul(value)
	case domain.AdjustmentSetRate:
		return value
	default:
		return rate
	}
}

// clampOptional bounds rate by whichever limits are set and never lets it go
// below zero.
func clampOptional(rate decimal.Decimal, lo, hi *decimal.Decimal) decimal.Decimal {
	if lo != nil && rate.LessThan(*lo) {
		rate = *lo
	}
	if hi != nil && rate.GreaterThan(*hi) {
		rate = *hi
	}
	if rate.IsNegative() {
		return decimal.Zero
	}
	return rate
}

var hundred = decimal.NewFromInt(100)
