package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/repository"
)

var minPercentage = decimal.NewFromInt(-100)

// SeasonalRateService manages seasonal rates
type SeasonalRateService struct {
	rates      repository.SeasonalRateRepository
	properties repository.PropertyRepository
	cache      CacheInvalidator
	now        func() time.Time
}

// NewSeasonalRateService creates a seasonal rate service
func NewSeasonalRateService(rates repository.SeasonalRateRepository, properties repository.PropertyRepository, cache CacheInvalidator) *SeasonalRateService {
	return &SeasonalRateService{
		rates:      rates,
		properties: properties,
		cache:      invalidatorOrNoop(cache),
		now:        time.Now,
	}
}

// Create validates and stores a new seasonal rate
func (s *SeasonalRateService) Create(ctx context.Context, rate domain.SeasonalRate) (*domain.SeasonalRate, error) {
	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	if err := s.validate(ctx, rate); err != nil {
		return nil, err
	}

	now := s.now()
	rate.CreatedAt, rate.UpdatedAt = now, now
	if err := s.rates.CreateSeasonalRate(ctx, rate); err != nil {
		return nil, mapStoreError(err, "seasonal rate", rate.ID)
	}
	s.cache.InvalidateProperty(ctx, rate.PropertyID)

	log.Info(ctx, "Seasonal rate created",
		zap.String("seasonal_rate_id", rate.ID),
		zap.String("property_id", rate.PropertyID),
		zap.Int("priority", rate.Priority))
	return &rate, nil
}

// Update validates and replaces an existing seasonal rate
func (s *SeasonalRateService) Update(ctx context.Context, rate domain.SeasonalRate) (*domain.SeasonalRate, error) {
	existing, err := s.rates.GetSeasonalRate(ctx, rate.ID)
	if err != nil {
		return nil, mapStoreError(err, "seasonal rate", rate.ID)
	}
	if err := s.validate(ctx, rate); err != nil {
		return nil, err
	}

	rate.CreatedAt = existing.CreatedAt
	rate.UpdatedAt = s.now()
	if err := s.rates.UpdateSeasonalRate(ctx, rate); err != nil {
		return nil, mapStoreError(err, "seasonal rate", rate.ID)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	if existing.PropertyID != rate.PropertyID {
		s.cache.InvalidateProperty(ctx, rate.PropertyID)
	}
	return &rate, nil
}

// Delete removes a seasonal rate
func (s *SeasonalRateService) Delete(ctx context.Context, id string) error {
	existing, err := s.rates.GetSeasonalRate(ctx, id)
	if err != nil {
		return mapStoreError(err, "seasonal rate", id)
	}
	if err := s.rates.DeleteSeasonalRate(ctx, id); err != nil {
		return mapStoreError(err, "seasonal rate", id)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	return nil
}

// Get returns a seasonal rate by ID
func (s *SeasonalRateService) Get(ctx context.Context, id string) (*domain.SeasonalRate, error) {
	rate, err := s.rates.GetSeasonalRate(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "seasonal rate", id)
	}
	return rate, nil
}

// List returns every seasonal rate of a property
func (s *SeasonalRateService) List(ctx context.Context, propertyID string) ([]domain.SeasonalRate, error) {
	rates, err := s.rates.ListSeasonalRates(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasonal rates: %w", err)
	}
	return rates, nil
}

func (s *SeasonalRateService) validate(ctx context.Context, rate domain.SeasonalRate) error {
	if !domain.Day(rate.StartDate).Before(domain.Day(rate.EndDate)) {
		return domain.NewValidationError("endDate", "end date must be after start date")
	}
	if len(rate.RoomTypeRates) == 0 {
		return domain.NewValidationError("roomTypeRates", "at least one room type rate is required")
	}

	roomTypes := make([]string, 0, len(rate.RoomTypeRates))
	for i, r := range rate.RoomTypeRates {
		field := fmt.Sprintf("roomTypeRates[%d]", i)
		if r.RoomTypeID == "" {
			return domain.NewValidationError(field+".roomTypeId", "room type ID is required")
		}
		switch r.AdjustmentType {
		case domain.AdjustmentPercentage:
			if r.AdjustmentValue.LessThan(minPercentage) {
				return domain.NewValidationError(field+".adjustmentValue", "percentage adjustment cannot be below -100")
			}
		case domain.AdjustmentMultiplier:
			if !r.AdjustmentValue.IsPositive() {
				return domain.NewValidationError(field+".adjustmentValue", "multiplier must be greater than 0")
			}
		case domain.AdjustmentSetRate:
			if r.AdjustmentValue.IsNegative() {
				return domain.NewValidationError(field+".adjustmentValue", "rate cannot be negative")
			}
		case domain.AdjustmentFixedAmount:
		default:
			return domain.NewValidationError(field+".adjustmentType", fmt.Sprintf("unknown adjustment type %q", r.AdjustmentType))
		}
		if r.MinimumRate != nil && r.MinimumRate.IsNegative() {
			return domain.NewValidationError(field+".minimumRate", "minimum rate cannot be negative")
		}
		if r.MinimumRate != nil && r.MaximumRate != nil && !r.MaximumRate.GreaterThan(*r.MinimumRate) {
			return domain.NewValidationError(field+".maximumRate", "maximum rate must be greater than minimum rate")
		}
		roomTypes = append(roomTypes, r.RoomTypeID)
	}

	if err := requireProperty(ctx, s.properties, rate.PropertyID); err != nil {
		return err
	}
	if err := requireRoomTypes(ctx, s.properties, rate.PropertyID, roomTypes); err != nil {
		return err
	}
	return s.checkConflicts(ctx, rate)
}

// checkConflicts rejects a rate overlapping an active higher-priority rate
// that adjusts one of the same room types.
func (s *SeasonalRateService) checkConflicts(ctx context.Context, rate domain.SeasonalRate) error {
	existing, err := s.rates.ListSeasonalRates(ctx, rate.PropertyID)
	if err != nil {
		return fmt.Errorf("failed to list seasonal rates: %w", err)
	}
	for _, other := range existing {
		if other.ID == rate.ID || !other.IsActive || other.Priority <= rate.Priority {
			continue
		}
		if !overlaps(rate.StartDate, rate.EndDate, other.StartDate, other.EndDate) {
			continue
		}
		for _, r := range rate.RoomTypeRates {
			if _, shared := other.RateFor(r.RoomTypeID); shared {
				return domain.NewConflictError(
					"seasonal rate overlaps a higher-priority seasonal rate",
					fmt.Sprintf("conflicts with %s (%s, priority %d) for room type %s", other.ID, other.Name, other.Priority, r.RoomTypeID))
			}
		}
	}
	return nil
}
