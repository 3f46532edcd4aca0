package pricing

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// DynamicEngine evaluates and applies dynamic pricing rules
type DynamicEngine struct {
	now func() time.Time
}

// NewDynamicEngine creates a dynamic engine. now defaults to time.Now.
func NewDynamicEngine(now func() time.Time) *DynamicEngine {
	if now == nil {
		now = time.Now
	}
	return &DynamicEngine{now: now}
}

// EvaluateRule reports whether rule applies to one night of a stay
func (e *DynamicEngine) EvaluateRule(rule domain.DynamicPricingRule, occupancy *domain.OccupancyData, date time.Time, lengthOfStay int, roomTypeID string) bool {
	return ruleApplies(rule, roomTypeID, EvaluationContext{
		Occupancy:    occupancy,
		Date:         date,
		Now:          e.now(),
		LengthOfStay: lengthOfStay,
	})
}

func ruleApplies(rule domain.DynamicPricingRule, roomTypeID string, ec EvaluationContext) bool {
	if !rule.IsActive {
		return false
	}
	d := domain.Day(ec.Date)
	if d.Before(domain.Day(rule.ValidFrom)) || d.After(domain.Day(rule.ValidTo)) {
		return false
	}
	if len(rule.ApplicableRoomTypes) > 0 && !slices.Contains(rule.ApplicableRoomTypes, roomTypeID) {
		return false
	}
	return EvaluateConditions(rule.Conditions, ec)
}

// Apply runs every applicable rule in ascending priority, ties broken by ID.
// Each adjustment is bounded by its MaxAdjustment relative to the rate before
// it, then clamped to MinRate and MaxRate.
func (e *DynamicEngine) Apply(rate decimal.Decimal, roomTypeID, currency string, rules []domain.DynamicPricingRule, ec EvaluationContext) (decimal.Decimal, []domain.Adjustment) {
	if ec.Now.IsZero() {
		ec.Now = e.now()
	}
	ordered := slices.Clone(rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	var adjustments []domain.Adjustment
	for _, rule := range ordered {
		if !ruleApplies(rule, roomTypeID, ec) {
			continue
		}
		for _, adj := range rule.Adjustments {
			before := rate
			rate = domain.RoundAmount(applyRuleAdjustment(rate, adj), currency)
			adjustments = append(adjustments, domain.Adjustment{
				Source: SourceDynamic,
				RuleID: rule.ID,
				Name:   rule.Name,
				Method: string(adj.Method),
				Value:  adj.Value,
				Before: before,
				After:  rate,
			})
		}
	}
	return rate, adjustments
}

func applyRuleAdjustment(rate decimal.Decimal, adj domain.RuleAdjustment) decimal.Decimal {
	value := adj.Value
	if adj.Type == domain.DirectionDecrease && (adj.Method == domain.AdjustmentPercentage || adj.Method == domain.AdjustmentFixedAmount) {
		value = value.Neg()
	}
	after := adjustRate(rate, adj.Method, value)

	if adj.MaxAdjustment != nil {
		limit := adj.MaxAdjustment.Abs()
		if adj.Method == domain.AdjustmentPercentage {
			limit = domain.Percent(rate, limit)
		}
		delta := after.Sub(rate)
		if delta.Abs().GreaterThan(limit) {
			if delta.IsNegative() {
				after = rate.Sub(limit)
			} else {
				after = rate.Add(limit)
			}
		}
	}
	return clampOptional(after, adj.MinRate, adj.MaxRate)
}
