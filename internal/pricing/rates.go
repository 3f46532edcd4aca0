package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

// RateResolver loads the BASE rate of every night of a stay
type RateResolver struct {
	rates repository.RateRepository
}

// NewRateResolver creates a rate resolver
func NewRateResolver(rates repository.RateRepository) *RateResolver {
	return &RateResolver{rates: rates}
}

// Resolve returns one record per night of [checkIn, checkOut) in date order,
// and the currency they share.
func (r *RateResolver) Resolve(ctx context.Context, propertyID, roomTypeID string, checkIn, checkOut time.Time) ([]domain.RateRecord, string, error) {
	records, err := r.rates.ListRates(ctx, propertyID, roomTypeID, domain.RateTypeBase, domain.Day(checkIn), domain.Day(checkOut))
	if err != nil {
		return nil, "", fmt.Errorf("failed to load base rates: %w", err)
	}

	byDate := make(map[time.Time]domain.RateRecord, len(records))
	for _, rec := range records {
		byDate[domain.Day(rec.Date)] = rec
	}

	var (
		nights   []domain.RateRecord
		missing  []string
		currency string
	)
	for _, d := range domain.StayDates(checkIn, checkOut) {
		rec, ok := byDate[d]
		if !ok {
			missing = append(missing, d.Format(time.DateOnly))
			continue
		}
		if currency == "" {
			currency = strings.ToUpper(rec.Currency)
		} else if !strings.EqualFold(currency, rec.Currency) {
			return nil, "", domain.NewValidationError("currency",
				fmt.Sprintf("base rates for room type %s mix currencies %s and %s", roomTypeID, currency, rec.Currency))
		}
		nights = append(nights, rec)
	}

	if len(missing) > 0 {
		return nil, "", domain.NewValidationError("checkInDate",
			fmt.Sprintf("No base rates found for room type %s on %s", roomTypeID, strings.Join(missing, ", ")))
	}
	return nights, currency, nil
}
