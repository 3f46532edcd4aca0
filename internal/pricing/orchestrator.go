package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/repository"
	"github.com/jia-app/hotelservice/internal/tracing"
)

const defaultQuoteValidity = 15 * time.Minute

// Dependencies are the stores the orchestrator reads from
type Dependencies struct {
	Properties repository.PropertyRepository
	Rates      repository.RateRepository
	Seasonal   repository.SeasonalRateRepository
	Dynamic    repository.DynamicRuleRepository
	Promotions repository.PromotionRepository
	Taxes      repository.TaxRepository
	Occupancy  repository.OccupancyRepository
}

// DependenciesFromStore takes every pricing dependency from one store
func DependenciesFromStore(store repository.Store) Dependencies {
	return Dependencies{
		Properties: store.Properties(),
		Rates:      store.Rates(),
		Seasonal:   store.SeasonalRates(),
		Dynamic:    store.DynamicRules(),
		Promotions: store.Promotions(),
		Taxes:      store.Taxes(),
		Occupancy:  store.Occupancy(),
	}
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithQuoteValidity sets how long a quote stays valid
func WithQuoteValidity(d time.Duration) Option {
	return func(o *Orchestrator) { o.quoteValidity = d }
}

// Orchestrator runs the pricing pipeline: base rates, seasonal stacking,
// dynamic rules, promotions, then taxes and fees.
type Orchestrator struct {
	deps          Dependencies
	cache         *PriceCache
	resolver      *RateResolver
	seasonal      *SeasonalEngine
	dynamic       *DynamicEngine
	promotions    *PromotionValidator
	taxes         *TaxCalculator
	now           func() time.Time
	quoteValidity time.Duration
}

// NewOrchestrator creates an orchestrator. cache may be nil.
func NewOrchestrator(deps Dependencies, cache *PriceCache, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:          deps,
		cache:         cache,
		now:           time.Now,
		quoteValidity: defaultQuoteValidity,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.resolver = NewRateResolver(deps.Rates)
	o.seasonal = NewSeasonalEngine()
	o.dynamic = NewDynamicEngine(o.now)
	o.promotions = NewPromotionValidator(deps.Promotions, o.now)
	o.taxes = NewTaxCalculator()
	return o
}

// Cache returns the price cache, which may be nil
func (o *Orchestrator) Cache() *PriceCache {
	return o.cache
}

// DynamicEngine exposes the rule engine for single-rule evaluation
func (o *Orchestrator) DynamicEngine() *DynamicEngine {
	return o.dynamic
}

// ValidateRequest checks the request fields that do not need a store
func ValidateRequest(req domain.PriceRequest) error {
	if strings.TrimSpace(req.PropertyID) == "" {
		return domain.NewValidationError("propertyId", "property ID is required")
	}
	if strings.TrimSpace(req.RoomTypeID) == "" {
		return domain.NewValidationError("roomTypeId", "room type ID is required")
	}
	if req.CheckIn.IsZero() || req.CheckOut.IsZero() {
		return domain.NewValidationError("checkInDate", "check-in and check-out dates are required")
	}
	if !domain.Day(req.CheckOut).After(domain.Day(req.CheckIn)) {
		return domain.NewValidationError("checkOutDate", "check-out date must be after check-in date")
	}
	if req.GuestCount < 1 {
		return domain.NewValidationError("guestCount", "guest count must be at least 1")
	}
	if req.RoomQuantity < 0 {
		return domain.NewValidationError("roomQuantity", "room quantity must be at least 1")
	}
	return nil
}

// CalculatePrice prices a stay
func (o *Orchestrator) CalculatePrice(ctx context.Context, req domain.PriceRequest) (result *domain.PriceCalculationResult, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "pricing.CalculatePrice",
		attribute.String("property_id", req.PropertyID),
		attribute.String("room_type_id", req.RoomTypeID))
	outcome := "computed"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		metrics.RecordPriceCalculation(outcome, time.Since(start))
		tracing.EndSpan(span, err)
	}()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	req = normalizeRequest(req)

	if _, err := o.loadProperty(ctx, req.PropertyID, req.RoomTypeID); err != nil {
		return nil, err
	}

	if cached, ok := o.cache.Get(ctx, req, o.now()); ok {
		outcome = "cached"
		return cached, nil
	}

	result, err = o.compute(ctx, req)
	if err != nil {
		return nil, err
	}
	o.cache.Set(ctx, req, result)

	log.Debug(ctx, "Price calculated",
		zap.String("property_id", req.PropertyID),
		zap.String("room_type_id", req.RoomTypeID),
		zap.String("total", result.TotalAmount.String()),
		zap.String("currency", result.Currency))
	return result, nil
}

func (o *Orchestrator) loadProperty(ctx context.Context, propertyID, roomTypeID string) (*domain.RoomType, error) {
	if _, err := o.deps.Properties.GetProperty(ctx, propertyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("property", propertyID)
		}
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	roomType, err := o.deps.Properties.GetRoomType(ctx, roomTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("room type", roomTypeID)
		}
		return nil, fmt.Errorf("failed to load room type: %w", err)
	}
	if roomType.PropertyID != propertyID {
		nf := domain.NewNotFoundError("room type", roomTypeID)
		nf.Details = fmt.Sprintf("room type %s not found for property %s", roomTypeID, propertyID)
		return nil, nf
	}
	return roomType, nil
}

func (o *Orchestrator) compute(ctx context.Context, req domain.PriceRequest) (*domain.PriceCalculationResult, error) {
	now := o.now()
	nights := domain.NightsBetween(req.CheckIn, req.CheckOut)
	quantity := decimal.NewFromInt(int64(req.RoomQuantity))

	records, currency, err := o.resolver.Resolve(ctx, req.PropertyID, req.RoomTypeID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	seasonal, err := o.deps.Seasonal.ListSeasonalRates(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seasonal rates: %w", err)
	}
	rules, err := o.deps.Dynamic.ListDynamicRules(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dynamic rules: %w", err)
	}

	result := &domain.PriceCalculationResult{
		PropertyID:   req.PropertyID,
		RoomTypeID:   req.RoomTypeID,
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		Nights:       nights,
		RoomQuantity: req.RoomQuantity,
		GuestCount:   req.GuestCount,
		Currency:     currency,
		BaseAmount:   decimal.Zero,
		CalculatedAt: now,
		ValidUntil:   now.Add(o.quoteValidity),
	}

	for _, rec := range records {
		base := domain.RoundAmount(rec.Rate, currency)
		seasonalRate, adjustments := o.seasonal.Apply(base, rec.Date, req.RoomTypeID, currency, seasonal)

		var occupancy *domain.OccupancyData
		if len(rules) > 0 {
			occupancy, err = o.deps.Occupancy.GetOccupancy(ctx, req.PropertyID, rec.Date)
			if err != nil {
				return nil, fmt.Errorf("failed to load occupancy: %w", err)
			}
		}
		final, dynamicAdjustments := o.dynamic.Apply(seasonalRate, req.RoomTypeID, currency, rules, EvaluationContext{
			Occupancy:    occupancy,
			Date:         rec.Date,
			Now:          now,
			LengthOfStay: nights,
			GuestCount:   req.GuestCount,
			RoomQuantity: req.RoomQuantity,
		})
		adjustments = append(adjustments, dynamicAdjustments...)

		result.NightlyRates = append(result.NightlyRates, domain.NightlyRate{
			Date:         domain.Day(rec.Date),
			BaseRate:     base,
			AdjustedRate: seasonalRate,
			Adjustments:  adjustments,
			FinalRate:    final,
		})
		lineAmount := final.Mul(quantity)
		result.Breakdown.RoomCharges = append(result.Breakdown.RoomCharges, domain.LineItem{
			Code:        "ROOM",
			Description: "Room charge " + domain.Day(rec.Date).Format(time.DateOnly),
			Quantity:    req.RoomQuantity,
			UnitAmount:  final,
			Amount:      lineAmount,
		})
		result.BaseAmount = result.BaseAmount.Add(lineAmount)
	}
	result.BaseAmount = domain.RoundAmount(result.BaseAmount, currency)

	promos, err := o.promotions.Apply(ctx, PromotionInput{
		Request:    req,
		BaseAmount: result.BaseAmount,
		Currency:   currency,
		Nights:     nights,
	})
	if err != nil {
		return nil, err
	}
	result.DiscountAmount = promos.Discount
	result.AppliedPromotions = promos.Applied
	result.RejectedPromotions = promos.Rejected
	result.Breakdown.Discounts = promos.Discounts

	taxConfigs, err := o.deps.Taxes.ListTaxConfigurations(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax configurations: %w", err)
	}
	taxes := o.taxes.Calculate(taxConfigs, TaxInput{
		Taxable:      result.BaseAmount.Sub(result.DiscountAmount),
		CheckIn:      req.CheckIn,
		Nights:       nights,
		RoomQuantity: req.RoomQuantity,
		Currency:     currency,
	})
	result.TaxAmount = taxes.TaxAmount
	result.FeeAmount = taxes.FeeAmount
	result.Breakdown.Taxes = taxes.Taxes
	result.Breakdown.Fees = taxes.Fees

	total := result.BaseAmount.Sub(result.DiscountAmount).Add(result.TaxAmount).Add(result.FeeAmount)
	result.TotalAmount = domain.RoundAmount(decimal.Max(total, decimal.Zero), currency)
	return result, nil
}
