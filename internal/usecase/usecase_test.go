package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository/memory"
)

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) InvalidateProperty(ctx context.Context, propertyID string) {
	m.Called(ctx, propertyID)
}

var start = time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func seededStore() *memory.Store {
	store := memory.NewStore()
	store.AddProperty(domain.Property{ID: "p1", Status: domain.PropertyActive, Currency: "EUR"})
	store.AddRoomType(domain.RoomType{ID: "rt1", PropertyID: "p1", IsActive: true, MaxOccupancy: 2})
	store.AddRoomType(domain.RoomType{ID: "rt2", PropertyID: "p1", IsActive: true, MaxOccupancy: 4})
	store.AddProperty(domain.Property{ID: "p2", Status: domain.PropertyActive, Currency: "EUR"})
	store.AddRoomType(domain.RoomType{ID: "rt9", PropertyID: "p2", IsActive: true, MaxOccupancy: 2})
	return store
}

func summer(priority int, roomTypes ...string) domain.SeasonalRate {
	rate := domain.SeasonalRate{
		PropertyID: "p1", Name: "Summer", Priority: priority, IsActive: true,
		StartDate: start, EndDate: start.AddDate(0, 2, 0),
	}
	for _, rt := range roomTypes {
		rate.RoomTypeRates = append(rate.RoomTypeRates, domain.RoomTypeRate{
			RoomTypeID: rt, AdjustmentType: domain.AdjustmentPercentage, AdjustmentValue: dec("20"),
		})
	}
	return rate
}

func TestSeasonalRateService_CreateInvalidatesCache(t *testing.T) {
	store := seededStore()
	inv := &mockInvalidator{}
	inv.On("InvalidateProperty", mock.Anything, "p1").Return()
	svc := NewSeasonalRateService(store, store, inv)

	created, err := svc.Create(context.Background(), summer(1, "rt1"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	inv.AssertNumberOfCalls(t, "InvalidateProperty", 1)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	inv.AssertNumberOfCalls(t, "InvalidateProperty", 2)
}

func TestSeasonalRateService_Validation(t *testing.T) {
	store := seededStore()
	svc := NewSeasonalRateService(store, store, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(*domain.SeasonalRate)
		field string
	}{
		{"end before start", func(r *domain.SeasonalRate) { r.EndDate = r.StartDate }, "endDate"},
		{"no room types", func(r *domain.SeasonalRate) { r.RoomTypeRates = nil }, "roomTypeRates"},
		{"percentage below -100", func(r *domain.SeasonalRate) { r.RoomTypeRates[0].AdjustmentValue = dec("-101") }, "roomTypeRates[0].adjustmentValue"},
		{"zero multiplier", func(r *domain.SeasonalRate) {
			r.RoomTypeRates[0].AdjustmentType = domain.AdjustmentMultiplier
			r.RoomTypeRates[0].AdjustmentValue = decimal.Zero
		}, "roomTypeRates[0].adjustmentValue"},
		{"unknown method", func(r *domain.SeasonalRate) { r.RoomTypeRates[0].AdjustmentType = "DOUBLE" }, "roomTypeRates[0].adjustmentType"},
		{"max not above min", func(r *domain.SeasonalRate) {
			lo, hi := dec("100"), dec("90")
			r.RoomTypeRates[0].MinimumRate, r.RoomTypeRates[0].MaximumRate = &lo, &hi
		}, "roomTypeRates[0].maximumRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := summer(1, "rt1")
			tt.edit(&rate)
			_, err := svc.Create(ctx, rate)
			require.True(t, domain.IsValidation(err), "got %v", err)
			assert.Equal(t, tt.field, domain.GetDomainError(err).Field)
		})
	}
}

func TestSeasonalRateService_UnknownReferences(t *testing.T) {
	store := seededStore()
	svc := NewSeasonalRateService(store, store, nil)
	ctx := context.Background()

	rate := summer(1, "rt1")
	rate.PropertyID = "nope"
	_, err := svc.Create(ctx, rate)
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.Create(ctx, summer(1, "rt9"))
	assert.True(t, domain.IsNotFound(err), "room type of another property")

	_, err = svc.Get(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestSeasonalRateService_ConflictsWithHigherPriority(t *testing.T) {
	store := seededStore()
	svc := NewSeasonalRateService(store, store, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, summer(5, "rt1"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, summer(1, "rt1", "rt2"))
	assert.True(t, domain.IsConflict(err), "got %v", err)

	// different room type, no conflict
	_, err = svc.Create(ctx, summer(1, "rt2"))
	assert.NoError(t, err)

	// higher priority than the existing one, no conflict
	_, err = svc.Create(ctx, summer(9, "rt1"))
	assert.NoError(t, err)

	// no overlap
	later := summer(1, "rt1")
	later.StartDate, later.EndDate = start.AddDate(1, 0, 0), start.AddDate(1, 1, 0)
	_, err = svc.Create(ctx, later)
	assert.NoError(t, err)
}

func validRule() domain.DynamicPricingRule {
	return domain.DynamicPricingRule{
		PropertyID: "p1", Name: "Busy nights", Type: domain.RuleOccupancyBased, IsActive: true,
		ValidFrom: start, ValidTo: start.AddDate(1, 0, 0),
		Conditions:  []domain.Condition{{Type: domain.ConditionOccupancyRate, Operator: domain.OperatorGT, Value: dec("80")}},
		Adjustments: []domain.RuleAdjustment{{Type: domain.DirectionIncrease, Method: domain.AdjustmentPercentage, Value: dec("15")}},
	}
}

func TestDynamicRuleService_Validation(t *testing.T) {
	store := seededStore()
	svc := NewDynamicRuleService(store, store, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, validRule())
	require.NoError(t, err)

	tests := []struct {
		name  string
		edit  func(*domain.DynamicPricingRule)
		field string
	}{
		{"unknown type", func(r *domain.DynamicPricingRule) { r.Type = "WEATHER" }, "type"},
		{"no conditions", func(r *domain.DynamicPricingRule) { r.Conditions = nil }, "conditions"},
		{"no adjustments", func(r *domain.DynamicPricingRule) { r.Adjustments = nil }, "adjustments"},
		{"reversed validity", func(r *domain.DynamicPricingRule) { r.ValidTo = r.ValidFrom.AddDate(0, 0, -1) }, "validTo"},
		{"unknown condition", func(r *domain.DynamicPricingRule) { r.Conditions[0].Type = "MOON_PHASE" }, "conditions[0].type"},
		{"unknown operator", func(r *domain.DynamicPricingRule) { r.Conditions[0].Operator = "LIKE" }, "conditions[0].operator"},
		{"unknown method", func(r *domain.DynamicPricingRule) { r.Adjustments[0].Method = "SQUARE" }, "adjustments[0].method"},
		{"missing direction", func(r *domain.DynamicPricingRule) { r.Adjustments[0].Type = "" }, "adjustments[0].type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.edit(&rule)
			_, err := svc.Create(ctx, rule)
			require.True(t, domain.IsValidation(err), "got %v", err)
			assert.Equal(t, tt.field, domain.GetDomainError(err).Field)
		})
	}
}

func validPromotion(code string) domain.Promotion {
	return domain.Promotion{
		PropertyID: "p1", Code: code, Name: "Save", Type: domain.PromotionCode,
		DiscountType: domain.DiscountPercentage, DiscountValue: dec("20"),
		ValidFrom: start, ValidTo: start.AddDate(0, 3, 0), IsActive: true,
	}
}

func TestPromotionService_CodeUniqueness(t *testing.T) {
	store := seededStore()
	svc := NewPromotionService(store, store, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, validPromotion(" save20 "))
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", first.Code)

	_, err = svc.Create(ctx, validPromotion("SAVE20"))
	assert.True(t, domain.IsConflict(err), "got %v", err)

	// updating a promotion keeps its own code
	first.Name = "Save more"
	_, err = svc.Update(ctx, *first)
	assert.NoError(t, err)
}

func TestPromotionService_UpdateKeepsUsage(t *testing.T) {
	store := seededStore()
	svc := NewPromotionService(store, store, nil)
	ctx := context.Background()

	promo, err := svc.Create(ctx, validPromotion("WELCOME"))
	require.NoError(t, err)
	require.NoError(t, store.RecordRedemption(ctx, promo.ID, "g1", "b1"))

	promo.Usage.CurrentUsage = 0
	updated, err := svc.Update(ctx, *promo)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Usage.CurrentUsage)
}

func TestPromotionService_DiscountBounds(t *testing.T) {
	store := seededStore()
	svc := NewPromotionService(store, store, nil)
	ctx := context.Background()

	p := validPromotion("BIG")
	p.DiscountValue = dec("120")
	_, err := svc.Create(ctx, p)
	assert.True(t, domain.IsValidation(err))

	p = validPromotion("ZERO")
	p.DiscountValue = decimal.Zero
	_, err = svc.Create(ctx, p)
	assert.True(t, domain.IsValidation(err))

	p = validPromotion("")
	_, err = svc.Create(ctx, p)
	assert.True(t, domain.IsValidation(err), "promo code type needs a code")

	p = validPromotion("")
	p.Type = domain.PromotionAutomatic
	_, err = svc.Create(ctx, p)
	assert.NoError(t, err)
}

func TestTaxService_CreateAndValidate(t *testing.T) {
	store := seededStore()
	svc := NewTaxService(store, store, nil)
	ctx := context.Background()

	tax, err := svc.Create(ctx, domain.TaxConfiguration{
		PropertyID: "p1", Name: "City tax", Type: domain.TaxTypeTax,
		Rate: dec("10"), IsPercentage: true, IsActive: true, ValidFrom: start,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChargePerStay, tax.ChargeBasis)

	_, err = svc.Create(ctx, domain.TaxConfiguration{PropertyID: "p1", Name: "Bad", Type: domain.TaxTypeTax, Rate: dec("150"), IsPercentage: true})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Create(ctx, domain.TaxConfiguration{PropertyID: "p1", Name: "Bad", Type: "LEVY"})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Create(ctx, domain.TaxConfiguration{PropertyID: "zz", Name: "Orphan", Type: domain.TaxTypeFee})
	assert.True(t, domain.IsNotFound(err))

	list, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
