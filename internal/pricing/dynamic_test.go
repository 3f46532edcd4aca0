package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jia-app/hotelservice/internal/domain"
)

func activeRule(conditions ...domain.Condition) domain.DynamicPricingRule {
	return domain.DynamicPricingRule{
		ID: "rule", IsActive: true,
		ValidFrom:  checkIn.AddDate(0, -1, 0),
		ValidTo:    checkIn.AddDate(0, 1, 0),
		Conditions: conditions,
	}
}

func TestEvaluateRule_Conditions(t *testing.T) {
	engine := NewDynamicEngine(func() time.Time { return fixedNow })
	occupancy := &domain.OccupancyData{OccupancyRate: dec("85"), DemandScore: dec("7"), BookingPace: dec("1.5")}

	tests := []struct {
		name      string
		condition domain.Condition
		occupancy *domain.OccupancyData
		los       int
		want      bool
	}{
		{"occupancy above", domain.Condition{Type: domain.ConditionOccupancyRate, Operator: domain.OperatorGT, Value: dec("80")}, occupancy, 1, true},
		{"occupancy missing", domain.Condition{Type: domain.ConditionOccupancyRate, Operator: domain.OperatorGT, Value: dec("80")}, nil, 1, false},
		{"demand between", domain.Condition{Type: domain.ConditionDemandScore, Operator: domain.OperatorBetween, Values: []decimal.Decimal{dec("5"), dec("7")}}, occupancy, 1, true},
		{"pace lte", domain.Condition{Type: domain.ConditionBookingPace, Operator: domain.OperatorLTE, Value: dec("1")}, occupancy, 1, false},
		// 2027-01-10 to 2027-03-01 is 50 days
		{"advance days", domain.Condition{Type: domain.ConditionAdvanceBookingDays, Operator: domain.OperatorEQ, Value: dec("50")}, nil, 1, true},
		{"length of stay", domain.Condition{Type: domain.ConditionLengthOfStay, Operator: domain.OperatorGTE, Value: dec("7")}, nil, 5, false},
		// 2027-03-01 is a Monday
		{"weekday in", domain.Condition{Type: domain.ConditionDayOfWeek, Operator: domain.OperatorIN, Values: []decimal.Decimal{dec("1"), dec("2")}}, nil, 1, true},
		{"weekend in", domain.Condition{Type: domain.ConditionDayOfWeek, Operator: domain.OperatorIN, Values: []decimal.Decimal{dec("0"), dec("6")}}, nil, 1, false},
		{"booking amount unknown", domain.Condition{Type: domain.ConditionBookingAmount, Operator: domain.OperatorGT, Value: dec("0")}, nil, 1, false},
		{"between needs two values", domain.Condition{Type: domain.ConditionLengthOfStay, Operator: domain.OperatorBetween, Values: []decimal.Decimal{dec("1")}}, nil, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.EvaluateRule(activeRule(tt.condition), tt.occupancy, checkIn, tt.los, "rt1")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateRule_Applicability(t *testing.T) {
	engine := NewDynamicEngine(func() time.Time { return fixedNow })

	rule := activeRule()
	assert.True(t, engine.EvaluateRule(rule, nil, checkIn, 1, "rt1"))

	inactive := activeRule()
	inactive.IsActive = false
	assert.False(t, engine.EvaluateRule(inactive, nil, checkIn, 1, "rt1"))

	assert.False(t, engine.EvaluateRule(rule, nil, checkIn.AddDate(0, 2, 0), 1, "rt1"), "outside validity window")
	assert.True(t, engine.EvaluateRule(rule, nil, rule.ValidTo, 1, "rt1"), "validity is inclusive")

	scoped := activeRule()
	scoped.ApplicableRoomTypes = []string{"rt2"}
	assert.False(t, engine.EvaluateRule(scoped, nil, checkIn, 1, "rt1"))
	assert.True(t, engine.EvaluateRule(scoped, nil, checkIn, 1, "rt2"))
}

func TestDynamicApply_MaxAdjustmentPerAdjustment(t *testing.T) {
	engine := NewDynamicEngine(func() time.Time { return fixedNow })
	rule := activeRule()
	rule.Adjustments = []domain.RuleAdjustment{
		{Type: domain.DirectionIncrease, Method: domain.AdjustmentPercentage, Value: dec("50"), MaxAdjustment: decPtr("10")},
		{Type: domain.DirectionDecrease, Method: domain.AdjustmentFixedAmount, Value: dec("40"), MaxAdjustment: decPtr("5")},
	}

	rate, adjustments := engine.Apply(dec("100"), "rt1", "USD", []domain.DynamicPricingRule{rule}, EvaluationContext{Date: checkIn})
	// +50% capped at 10% of 100 -> 110, then -40 capped at 5 -> 105
	assert.True(t, rate.Equal(dec("105")), "got %s", rate)
	assert.Len(t, adjustments, 2)
}

func TestDynamicApply_ClampAndOrder(t *testing.T) {
	engine := NewDynamicEngine(func() time.Time { return fixedNow })
	setRate := activeRule()
	setRate.ID = "b"
	setRate.Priority = 1
	setRate.Adjustments = []domain.RuleAdjustment{{Method: domain.AdjustmentSetRate, Value: dec("300"), MaxRate: decPtr("250")}}

	discount := activeRule()
	discount.ID = "a"
	discount.Priority = 1
	discount.Adjustments = []domain.RuleAdjustment{{Type: domain.DirectionDecrease, Method: domain.AdjustmentPercentage, Value: dec("10"), MinRate: decPtr("95")}}

	rate, adjustments := engine.Apply(dec("100"), "rt1", "USD", []domain.DynamicPricingRule{setRate, discount}, EvaluationContext{Date: checkIn})
	// "a" first: 90 raised to 95; then "b": 300 lowered to 250
	assert.True(t, rate.Equal(dec("250")), "got %s", rate)
	assert.Equal(t, "a", adjustments[0].RuleID)
	assert.True(t, adjustments[0].After.Equal(dec("95")))
}

func TestDynamicApply_RoundsToMinorUnit(t *testing.T) {
	engine := NewDynamicEngine(func() time.Time { return fixedNow })
	rule := activeRule()
	rule.Adjustments = []domain.RuleAdjustment{{Type: domain.DirectionIncrease, Method: domain.AdjustmentPercentage, Value: dec("33.333")}}

	rate, _ := engine.Apply(dec("100"), "rt1", "USD", []domain.DynamicPricingRule{rule}, EvaluationContext{Date: checkIn})
	assert.True(t, rate.Equal(dec("133.33")), "got %s", rate)

	rate, _ = engine.Apply(dec("10000"), "rt1", "JPY", []domain.DynamicPricingRule{rule}, EvaluationContext{Date: checkIn})
	assert.True(t, rate.Equal(dec("13333")), "got %s", rate)
}
