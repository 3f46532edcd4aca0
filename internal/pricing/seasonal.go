package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// SeasonalEngine stacks seasonal adjustments on a nightly rate
type SeasonalEngine struct{}

// NewSeasonalEngine creates a seasonal engine
func NewSeasonalEngine() *SeasonalEngine {
	return &SeasonalEngine{}
}

// Apply runs every active seasonal rate covering date that has an entry for
// roomTypeID, in ascending priority with ties broken by ID. Each step clamps
// to the entry's bounds and rounds to the currency minor unit.
func (e *SeasonalEngine) Apply(rate decimal.Decimal, date time.Time, roomTypeID, currency string, seasonal []domain.SeasonalRate) (decimal.Decimal, []domain.Adjustment) {
	matching := make([]domain.SeasonalRate, 0, len(seasonal))
	for _, s := range seasonal {
		if !s.IsActive || !s.Covers(date) {
			continue
		}
		if _, ok := s.RateFor(roomTypeID); ok {
			matching = append(matching, s)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].Priority != matching[j].Priority {
			return matching[i].Priority < matching[j].Priority
		}
		return matching[i].ID < matching[j].ID
	})

	var adjustments []domain.Adjustment
	for _, s := range matching {
		entry, _ := s.RateFor(roomTypeID)
		before := rate
		rate = adjustRate(rate, entry.AdjustmentType, entry.AdjustmentValue)
		rate = clampOptional(rate, entry.MinimumRate, entry.MaximumRate)
		rate = domain.RoundAmount(rate, currency)
		adjustments = append(adjustments, domain.Adjustment{
			Source: SourceSeasonal,
			RuleID: s.ID,
			Name:   s.Name,
			Method: string(entry.AdjustmentType),
			Value:  entry.AdjustmentValue,
			Before: before,
			After:  rate,
		})
	}
	return rate, adjustments
}
