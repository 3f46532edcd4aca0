package pricing

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/hotelservice/internal/cache"
	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
	"github.com/jia-app/hotelservice/internal/repository/memory"
)

var (
	fixedNow = time.Date(2027, 1, 10, 12, 0, 0, 0, time.UTC)
	checkIn  = time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

// newFixture seeds property p1 with room type rt1 and a BASE rate of 100 USD
// for each of the given nights starting at checkIn.
func newFixture(t *testing.T, nights int) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	store.AddProperty(domain.Property{ID: "p1", Name: "Harbour Hotel", Status: domain.PropertyActive, Currency: "USD"})
	store.AddRoomType(domain.RoomType{ID: "rt1", PropertyID: "p1", Name: "Deluxe", IsActive: true, MaxOccupancy: 2, BaseRate: dec("100")})
	store.AddProperty(domain.Property{ID: "p2", Status: domain.PropertyActive, Currency: "USD"})
	store.AddRoomType(domain.RoomType{ID: "rt-other", PropertyID: "p2", IsActive: true, MaxOccupancy: 2})

	var rates []domain.RateRecord
	for i := 0; i < nights; i++ {
		rates = append(rates, domain.RateRecord{
			PropertyID: "p1", RoomTypeID: "rt1", Date: checkIn.AddDate(0, 0, i),
			Rate: dec("100"), Currency: "USD", RateType: domain.RateTypeBase,
		})
	}
	require.NoError(t, store.UpsertRates(context.Background(), rates))
	return store
}

func newOrchestrator(store repository.Store, c *PriceCache) *Orchestrator {
	return NewOrchestrator(DependenciesFromStore(store), c, WithClock(func() time.Time { return fixedNow }))
}

func oneNight() domain.PriceRequest {
	return domain.PriceRequest{
		PropertyID: "p1", RoomTypeID: "rt1",
		CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 1),
		GuestCount: 2, RoomQuantity: 1,
	}
}

func assertTotalIdentity(t *testing.T, r *domain.PriceCalculationResult) {
	t.Helper()
	want := r.BaseAmount.Sub(r.DiscountAmount).Add(r.TaxAmount).Add(r.FeeAmount)
	assert.True(t, r.TotalAmount.Equal(want), "total %s != %s", r.TotalAmount, want)
	assert.False(t, r.TotalAmount.IsNegative())
}

func TestCalculatePrice_BaseRateOnly(t *testing.T) {
	store := newFixture(t, 3)
	req := oneNight()
	req.CheckOut = checkIn.AddDate(0, 0, 3)
	req.RoomQuantity = 2

	result, err := newOrchestrator(store, nil).CalculatePrice(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Nights)
	assert.Len(t, result.NightlyRates, 3)
	assert.True(t, result.BaseAmount.Equal(dec("600")))
	assert.Equal(t, "USD", result.Currency)
	assert.Equal(t, fixedNow.Add(defaultQuoteValidity), result.ValidUntil)
	assertTotalIdentity(t, result)
}

func TestCalculatePrice_SeasonalStacking(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, store.CreateSeasonalRate(ctx, domain.SeasonalRate{
		ID: "s-high", PropertyID: "p1", Name: "Festival", Priority: 2, IsActive: true,
		StartDate: checkIn.AddDate(0, 0, -5), EndDate: checkIn.AddDate(0, 0, 5),
		RoomTypeRates: []domain.RoomTypeRate{{RoomTypeID: "rt1", AdjustmentType: domain.AdjustmentPercentage, AdjustmentValue: dec("30")}},
	}))
	require.NoError(t, store.CreateSeasonalRate(ctx, domain.SeasonalRate{
		ID: "s-low", PropertyID: "p1", Name: "Spring", Priority: 1, IsActive: true,
		StartDate: checkIn.AddDate(0, 0, -5), EndDate: checkIn.AddDate(0, 0, 5),
		RoomTypeRates: []domain.RoomTypeRate{{RoomTypeID: "rt1", AdjustmentType: domain.AdjustmentPercentage, AdjustmentValue: dec("20")}},
	}))

	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, oneNight())
	require.NoError(t, err)

	night := result.NightlyRates[0]
	assert.True(t, night.FinalRate.Equal(dec("156")), "got %s", night.FinalRate)
	require.Len(t, night.Adjustments, 2)
	assert.Equal(t, "s-low", night.Adjustments[0].RuleID)
	assert.True(t, night.Adjustments[0].After.Equal(dec("120")))
	assert.Equal(t, "s-high", night.Adjustments[1].RuleID)
	assertTotalIdentity(t, result)
}

func TestCalculatePrice_SeasonalClampAndTies(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	window := func(id string, method domain.AdjustmentMethod, value string, maxRate *decimal.Decimal) domain.SeasonalRate {
		return domain.SeasonalRate{
			ID: id, PropertyID: "p1", Priority: 1, IsActive: true,
			StartDate: checkIn, EndDate: checkIn,
			RoomTypeRates: []domain.RoomTypeRate{{RoomTypeID: "rt1", AdjustmentType: method, AdjustmentValue: dec(value), MaximumRate: maxRate}},
		}
	}
	// same priority: "a" runs before "b"
	require.NoError(t, store.CreateSeasonalRate(ctx, window("b", domain.AdjustmentFixedAmount, "10", nil)))
	require.NoError(t, store.CreateSeasonalRate(ctx, window("a", domain.AdjustmentMultiplier, "2", decPtr("150"))))

	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, oneNight())
	require.NoError(t, err)
	assert.True(t, result.NightlyRates[0].FinalRate.Equal(dec("160")), "got %s", result.NightlyRates[0].FinalRate)
}

func TestCalculatePrice_OccupancyRule(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, store.CreateDynamicRule(ctx, domain.DynamicPricingRule{
		ID: "r1", PropertyID: "p1", Name: "High occupancy", Type: domain.RuleOccupancyBased, IsActive: true,
		ValidFrom: checkIn.AddDate(0, -1, 0), ValidTo: checkIn.AddDate(0, 1, 0),
		Conditions:  []domain.Condition{{Type: domain.ConditionOccupancyRate, Operator: domain.OperatorGT, Value: dec("80")}},
		Adjustments: []domain.RuleAdjustment{{Type: domain.DirectionIncrease, Method: domain.AdjustmentPercentage, Value: dec("15")}},
	}))
	store.SetOccupancy(domain.OccupancyData{PropertyID: "p1", Date: checkIn, OccupancyRate: dec("85")})

	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, oneNight())
	require.NoError(t, err)
	assert.True(t, result.NightlyRates[0].FinalRate.Equal(dec("115")), "got %s", result.NightlyRates[0].FinalRate)
	assert.True(t, result.TotalAmount.Equal(dec("115")))
}

func TestCalculatePrice_RuleSkippedWithoutOccupancy(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, store.CreateDynamicRule(ctx, domain.DynamicPricingRule{
		ID: "r1", PropertyID: "p1", IsActive: true,
		ValidFrom: checkIn.AddDate(0, -1, 0), ValidTo: checkIn.AddDate(0, 1, 0),
		Conditions:  []domain.Condition{{Type: domain.ConditionOccupancyRate, Operator: domain.OperatorGT, Value: dec("80")}},
		Adjustments: []domain.RuleAdjustment{{Type: domain.DirectionIncrease, Method: domain.AdjustmentPercentage, Value: dec("15")}},
	}))

	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, oneNight())
	require.NoError(t, err)
	assert.True(t, result.BaseAmount.Equal(dec("100")))
}

func TestCalculatePrice_PromotionCode(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, store.CreatePromotion(ctx, domain.Promotion{
		ID: "promo-save20", PropertyID: "p1", Code: "SAVE20", Name: "Save 20%",
		Type: domain.PromotionCode, DiscountType: domain.DiscountPercentage, DiscountValue: dec("20"),
		ValidFrom: fixedNow.AddDate(0, -1, 0), ValidTo: fixedNow.AddDate(0, 1, 0), IsActive: true,
	}))

	req := oneNight()
	req.PromotionCodes = []string{"save20", "SAVE20", "NOPE"}
	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.DiscountAmount.Equal(dec("20")))
	assert.True(t, result.TotalAmount.Equal(dec("80")))
	require.Len(t, result.AppliedPromotions, 1)
	assert.Equal(t, "promo-save20", result.AppliedPromotions[0].PromotionID)
	require.Len(t, result.RejectedPromotions, 1)
	assert.Equal(t, domain.RejectedPromotion{Code: "NOPE", Reason: ReasonNotFound}, result.RejectedPromotions[0])
	assertTotalIdentity(t, result)
}

func TestCalculatePrice_RequiredPromotionFails(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, store.CreatePromotion(ctx, domain.Promotion{
		ID: "promo-old", PropertyID: "p1", Code: "EXPIRED", Type: domain.PromotionCode,
		DiscountType: domain.DiscountPercentage, DiscountValue: dec("10"),
		ValidFrom: fixedNow.AddDate(-1, 0, 0), ValidTo: fixedNow.AddDate(0, -1, 0), IsActive: true,
	}))

	req := oneNight()
	req.PromotionCodes = []string{"EXPIRED"}
	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ReasonOutsideValidity, result.RejectedPromotions[0].Reason)

	req.RequirePromotions = true
	_, err = newOrchestrator(store, nil).CalculatePrice(ctx, req)
	assert.True(t, domain.IsValidation(err), "got %v", err)
}

func TestCalculatePrice_AutomaticPromotionAndDiscountCap(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, store.CreatePromotion(ctx, domain.Promotion{
		ID: "auto-1", PropertyID: "p1", Name: "Winter", Type: domain.PromotionAutomatic,
		DiscountType: domain.DiscountFixedAmount, DiscountValue: dec("70"),
		ValidFrom: fixedNow.AddDate(0, -1, 0), ValidTo: fixedNow.AddDate(0, 1, 0), IsActive: true,
	}))
	require.NoError(t, store.CreatePromotion(ctx, domain.Promotion{
		ID: "auto-2", PropertyID: "p1", Name: "Members", Type: domain.PromotionAutomatic,
		DiscountType: domain.DiscountFixedAmount, DiscountValue: dec("70"),
		ValidFrom: fixedNow.AddDate(0, -1, 0), ValidTo: fixedNow.AddDate(0, 1, 0), IsActive: true,
	}))

	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, oneNight())
	require.NoError(t, err)
	assert.True(t, result.DiscountAmount.Equal(dec("100")), "got %s", result.DiscountAmount)
	require.Len(t, result.AppliedPromotions, 2)
	assert.True(t, result.AppliedPromotions[1].Discount.Equal(dec("30")))
	assert.True(t, result.TotalAmount.IsZero())
	assertTotalIdentity(t, result)
}

func TestCalculatePrice_ExclusiveTax(t *testing.T) {
	store := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, store.CreateTaxConfiguration(ctx, domain.TaxConfiguration{
		ID: "city-tax", PropertyID: "p1", Name: "City tax", Type: domain.TaxTypeTax,
		Rate: dec("10"), IsPercentage: true, ChargeBasis: domain.ChargePerStay,
		IsActive: true, ValidFrom: checkIn.AddDate(-1, 0, 0),
	}))

	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, oneNight())
	require.NoError(t, err)
	assert.True(t, result.TaxAmount.Equal(dec("10")))
	assert.True(t, result.TotalAmount.Equal(dec("110")))
	assertTotalIdentity(t, result)
}

func TestCalculatePrice_InclusiveTaxAndFees(t *testing.T) {
	store := newFixture(t, 2)
	ctx := context.Background()
	require.NoError(t, store.CreateTaxConfiguration(ctx, domain.TaxConfiguration{
		ID: "vat", PropertyID: "p1", Name: "VAT", Type: domain.TaxTypeTax,
		Rate: dec("25"), IsPercentage: true, IsInclusive: true,
		IsActive: true, ValidFrom: checkIn.AddDate(-1, 0, 0),
	}))
	require.NoError(t, store.CreateTaxConfiguration(ctx, domain.TaxConfiguration{
		ID: "resort-fee", PropertyID: "p1", Name: "Resort fee", Type: domain.TaxTypeFee,
		Rate: dec("5"), ChargeBasis: domain.ChargePerRoomNight,
		IsActive: true, ValidFrom: checkIn.AddDate(-1, 0, 0),
	}))

	req := oneNight()
	req.CheckOut = checkIn.AddDate(0, 0, 2)
	req.RoomQuantity = 2
	result, err := newOrchestrator(store, nil).CalculatePrice(ctx, req)
	require.NoError(t, err)

	assert.True(t, result.BaseAmount.Equal(dec("400")))
	assert.True(t, result.TaxAmount.IsZero(), "inclusive taxes are not added")
	require.Len(t, result.Breakdown.Taxes, 1)
	assert.True(t, result.Breakdown.Taxes[0].Inclusive)
	assert.True(t, result.Breakdown.Taxes[0].Amount.Equal(dec("80")))
	assert.True(t, result.FeeAmount.Equal(dec("20")))
	assert.True(t, result.TotalAmount.Equal(dec("420")))
	assertTotalIdentity(t, result)
}

func TestCalculatePrice_Validation(t *testing.T) {
	store := newFixture(t, 1)
	o := newOrchestrator(store, nil)
	ctx := context.Background()

	req := oneNight()
	req.CheckOut = checkIn.AddDate(0, 0, -1)
	_, err := o.CalculatePrice(ctx, req)
	assert.True(t, domain.IsValidation(err))

	req = oneNight()
	req.GuestCount = 0
	_, err = o.CalculatePrice(ctx, req)
	assert.True(t, domain.IsValidation(err))

	req = oneNight()
	req.PropertyID = "missing"
	_, err = o.CalculatePrice(ctx, req)
	assert.True(t, domain.IsNotFound(err))

	req = oneNight()
	req.RoomTypeID = "rt-other"
	_, err = o.CalculatePrice(ctx, req)
	assert.True(t, domain.IsNotFound(err))
}

func TestCalculatePrice_MissingBaseRates(t *testing.T) {
	store := newFixture(t, 1)
	req := oneNight()
	req.CheckOut = checkIn.AddDate(0, 0, 3)

	_, err := newOrchestrator(store, nil).CalculatePrice(context.Background(), req)
	require.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "No base rates found")
	assert.Contains(t, err.Error(), "2027-03-02")
	assert.Contains(t, err.Error(), "2027-03-03")
}

type countingSeasonal struct {
	repository.SeasonalRateRepository
	calls atomic.Int32
}

func (c *countingSeasonal) ListSeasonalRates(ctx context.Context, propertyID string) ([]domain.SeasonalRate, error) {
	c.calls.Add(1)
	return c.SeasonalRateRepository.ListSeasonalRates(ctx, propertyID)
}

type countingRates struct {
	repository.RateRepository
	calls atomic.Int32
}

func (c *countingRates) ListRates(ctx context.Context, propertyID, roomTypeID string, rateType domain.RateType, from, to time.Time) ([]domain.RateRecord, error) {
	c.calls.Add(1)
	return c.RateRepository.ListRates(ctx, propertyID, roomTypeID, rateType, from, to)
}

func TestCalculatePrice_CacheHitSkipsConfiguration(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCache, err := cache.NewCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer redisCache.Close()

	store := newFixture(t, 2)
	seasonal := &countingSeasonal{SeasonalRateRepository: store.SeasonalRates()}
	rates := &countingRates{RateRepository: store.Rates()}
	deps := DependenciesFromStore(store)
	deps.Seasonal = seasonal
	deps.Rates = rates

	o := NewOrchestrator(deps, NewPriceCache(redisCache, time.Minute), WithClock(func() time.Time { return fixedNow }))
	req := oneNight()
	req.CheckOut = checkIn.AddDate(0, 0, 2)

	first, err := o.CalculatePrice(context.Background(), req)
	require.NoError(t, err)
	second, err := o.CalculatePrice(context.Background(), req)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
	assert.Equal(t, int32(1), seasonal.calls.Load())
	assert.Equal(t, int32(1), rates.calls.Load())

	o.Cache().InvalidateProperty(context.Background(), "p1")
	_, err = o.CalculatePrice(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), rates.calls.Load())
}

func TestCalculatePrice_ExpiredCachedQuoteIsRecomputed(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCache, err := cache.NewCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer redisCache.Close()

	store := newFixture(t, 1)
	rates := &countingRates{RateRepository: store.Rates()}
	deps := DependenciesFromStore(store)
	deps.Rates = rates

	now := fixedNow
	o := NewOrchestrator(deps, NewPriceCache(redisCache, time.Hour),
		WithQuoteValidity(10*time.Minute),
		WithClock(func() time.Time { return now }))

	first, err := o.CalculatePrice(context.Background(), oneNight())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(10*time.Minute), first.ValidUntil)

	now = fixedNow.Add(10 * time.Minute)
	second, err := o.CalculatePrice(context.Background(), oneNight())
	require.NoError(t, err)
	assert.Equal(t, int32(2), rates.calls.Load())
	assert.True(t, second.ValidUntil.After(now))
}

func TestCalculatePrice_CacheFailureDegradesToMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCache, err := cache.NewCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer redisCache.Close()
	mr.SetError("LOADING")

	store := newFixture(t, 1)
	o := newOrchestrator(store, NewPriceCache(redisCache, time.Minute))
	result, err := o.CalculatePrice(context.Background(), oneNight())
	require.NoError(t, err)
	assert.True(t, result.TotalAmount.Equal(dec("100")))
}

func TestFingerprintNormalizesRequest(t *testing.T) {
	a := oneNight()
	a.PromotionCodes = []string{"save20", " SAVE20 "}
	a.CheckIn = checkIn.Add(5 * time.Hour)
	b := oneNight()
	b.PromotionCodes = []string{"SAVE20"}

	ka, err := Fingerprint(a)
	require.NoError(t, err)
	kb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
	assert.Contains(t, ka, "price:p1:")

	b.GuestCount = 1
	kc, err := Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc)
}
