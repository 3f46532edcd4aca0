package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// EvaluationContext carries every value a rule or promotion condition can
// inspect. Unknown values make the conditions that need them false.
type EvaluationContext struct {
	Occupancy     *domain.OccupancyData
	Date          time.Time
	Now           time.Time
	LengthOfStay  int
	BookingAmount decimal.NullDecimal
	GuestCount    int
	RoomQuantity  int
}

// EvaluateConditions reports whether every condition holds, stopping at the
// first one that does not.
func EvaluateConditions(conditions []domain.Condition, ec EvaluationContext) bool {
	for _, c := range conditions {
		if !EvaluateCondition(c, ec) {
			return false
		}
	}
	return true
}

// EvaluateCondition compares the context value selected by the condition type
// against the condition operands.
func EvaluateCondition(c domain.Condition, ec EvaluationContext) bool {
	actual, ok := contextValue(c.Type, ec)
	if !ok {
		return false
	}
	return compare(c.Operator, actual, c.Value, c.Values)
}

func contextValue(t domain.ConditionType, ec EvaluationContext) (decimal.Decimal, bool) {
	switch t {
	case domain.ConditionOccupancyRate:
		if ec.Occupancy == nil {
			return decimal.Zero, false
		}
		return ec.Occupancy.OccupancyRate, true
	case domain.ConditionDemandScore:
		if ec.Occupancy == nil {
			return decimal.Zero, false
		}
		return ec.Occupancy.DemandScore, true
	case domain.ConditionBookingPace:
		if ec.Occupancy == nil {
			return decimal.Zero, false
		}
		return ec.Occupancy.BookingPace, true
	case domain.ConditionAdvanceBookingDays:
		days := int64(domain.Day(ec.Date).Sub(domain.Day(ec.Now)).Hours() / 24)
		return decimal.NewFromInt(days), true
	case domain.ConditionLengthOfStay:
		return decimal.NewFromInt(int64(ec.LengthOfStay)), true
	case domain.ConditionDayOfWeek:
		return decimal.NewFromInt(int64(ec.Date.Weekday())), true
	case domain.ConditionBookingAmount:
		return ec.BookingAmount.Decimal, ec.BookingAmount.Valid
	case domain.ConditionGuestCount:
		return decimal.NewFromInt(int64(ec.GuestCount)), ec.GuestCount > 0
	case domain.ConditionRoomQuantity:
		return decimal.NewFromInt(int64(ec.RoomQuantity)), ec.RoomQuantity > 0
	default:
		return decimal.Zero, false
	}
}

func compare(op domain.Operator, actual, value decimal.Decimal, values []decimal.Decimal) bool {
	switch op {
	case domain.OperatorGT:
		return actual.GreaterThan(value)
	case domain.OperatorLT:
		return actual.LessThan(value)
	case domain.OperatorGTE:
		return actual.GreaterThanOrEqual(value)
	case domain.OperatorLTE:
		return actual.LessThanOrEqual(value)
	case domain.OperatorEQ:
		return actual.Equal(value)
	case domain.OperatorIN:
		if len(values) == 0 {
			return actual.Equal(value)
		}
		for _, v := range values {
			if actual.Equal(v) {
				return true
			}
		}
		return false
	case domain.OperatorBetween:
		if len(values) != 2 {
			return false
		}
		lo, hi := values[0], values[1]
		if lo.GreaterThan(hi) {
			lo, hi = hi, lo
		}
		return actual.GreaterThanOrEqual(lo) && actual.LessThanOrEqual(hi)
	default:
		return false
	}
}
