package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property status values
const (
	PropertyActive   = "ACTIVE"
	PropertyInactive = "INACTIVE"
)

// Property is the subset of a hotel record the rate engine needs
type Property struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Currency string `json:"currency"`
}

// IsActive reports whether the property accepts bookings
func (p Property) IsActive() bool { return p.Status == PropertyActive }

// RoomType is a sellable room category of a property
type RoomType struct {
	ID           string          `json:"id"`
	PropertyID   string          `json:"property_id"`
	Name         string          `json:"name"`
	IsActive     bool            `json:"is_active"`
	MaxOccupancy int             `json:"max_occupancy"`
	BaseRate     decimal.Decimal `json:"base_rate"`
}

// RateRecord is a stored nightly rate for one room type
type RateRecord struct {
	PropertyID string          `json:"property_id"`
	RoomTypeID string          `json:"room_type_id"`
	Date       time.Time       `json:"date"`
	Rate       decimal.Decimal `json:"rate"`
	Currency   string          `json:"currency"`
	RateType   RateType        `json:"rate_type"`
}

// RoomTypeRate is the per-room-type adjustment of a seasonal rate
type RoomTypeRate struct {
	RoomTypeID      string           `json:"room_type_id"`
	AdjustmentType  AdjustmentMethod `json:"adjustment_type"`
	AdjustmentValue decimal.Decimal  `json:"adjustment_value"`
	MinimumRate     *decimal.Decimal `json:"minimum_rate,omitempty"`
	MaximumRate     *decimal.Decimal `json:"maximum_rate,omitempty"`
}

// SeasonalRate adjusts rates over an inclusive date range
type SeasonalRate struct {
	ID            string         `json:"id"`
	PropertyID    string         `json:"property_id"`
	Name          string         `json:"name"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	Priority      int            `json:"priority"`
	RoomTypeRates []RoomTypeRate `json:"room_type_rates"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RateFor returns the adjustment for roomTypeID, if any
func (s SeasonalRate) RateFor(roomTypeID string) (RoomTypeRate, bool) {
	for _, r := range s.RoomTypeRates {
		if r.RoomTypeID == roomTypeID {
			return r, true
		}
	}
	return RoomTypeRate{}, false
}

// Covers reports whether date falls inside the seasonal range
func (s SeasonalRate) Covers(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(s.StartDate)) && !d.After(Day(s.EndDate))
}

// Condition is a single predicate of a rule or promotion
type Condition struct {
	Type     ConditionType     `json:"type"`
	Operator Operator          `json:"operator"`
	Value    decimal.Decimal   `json:"value"`
	Values   []decimal.Decimal `json:"values,omitempty"`
}

// RuleAdjustment is one rate change of a dynamic rule
type RuleAdjustment struct {
	Type          AdjustmentDirection `json:"type"`
	Method        AdjustmentMethod    `json:"method"`
	Value         decimal.Decimal     `json:"value"`
	MaxAdjustment *decimal.Decimal    `json:"max_adjustment,omitempty"`
	MinRate       *decimal.Decimal    `json:"min_rate,omitempty"`
	MaxRate       *decimal.Decimal    `json:"max_rate,omitempty"`
}

// DynamicPricingRule adjusts a nightly rate when all its conditions hold
type DynamicPricingRule struct {
	ID                  string           `json:"id"`
	PropertyID          string           `json:"property_id"`
	Name                string           `json:"name"`
	Type                RuleType         `json:"type"`
	Priority            int              `json:"priority"`
	Conditions          []Condition      `json:"conditions"`
	Adjustments         []RuleAdjustment `json:"adjustments"`
	ValidFrom           time.Time        `json:"valid_from"`
	ValidTo             time.Time        `json:"valid_to"`
	ApplicableRoomTypes []string         `json:"applicable_room_types,omitempty"`
	IsActive            bool             `json:"is_active"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// PromotionUsage holds the redemption counters of a promotion
type PromotionUsage struct {
	MaxTotalUsage    int `json:"max_total_usage"`
	MaxUsagePerGuest int `json:"max_usage_per_guest"`
	CurrentUsage     int `json:"current_usage"`
}

// Exhausted reports whether the total quota is used up. Zero means unlimited.
func (u PromotionUsage) Exhausted() bool {
	return u.MaxTotalUsage > 0 && u.CurrentUsage >= u.MaxTotalUsage
}

// Promotion is a discount applied by code or automatically
type Promotion struct {
	ID                    string           `json:"id"`
	PropertyID            string           `json:"property_id"`
	Code                  string           `json:"code,omitempty"`
	Name                  string           `json:"name"`
	Type                  PromotionType    `json:"type"`
	DiscountType          DiscountType     `json:"discount_type"`
	DiscountValue         decimal.Decimal  `json:"discount_value"`
	MaxDiscount           *decimal.Decimal `json:"max_discount,omitempty"`
	ValidFrom             time.Time        `json:"valid_from"`
	ValidTo               time.Time        `json:"valid_to"`
	Conditions            []Condition      `json:"conditions,omitempty"`
	ApplicableRoomTypes   []string         `json:"applicable_room_types,omitempty"`
	BookingSources        []string         `json:"booking_sources,omitempty"`
	RequiresLoyaltyMember bool             `json:"requires_loyalty_member"`
	CorporateCode         string           `json:"corporate_code,omitempty"`
	Usage                 PromotionUsage   `json:"usage"`
	IsActive              bool             `json:"is_active"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// TaxConfiguration is a tax or fee charged on a stay
type TaxConfiguration struct {
	ID           string          `json:"id"`
	PropertyID   string          `json:"property_id"`
	Name         string          `json:"name"`
	Type         TaxType         `json:"type"`
	Rate         decimal.Decimal `json:"rate"`
	IsPercentage bool            `json:"is_percentage"`
	IsInclusive  bool            `json:"is_inclusive"`
	ChargeBasis  ChargeBasis     `json:"charge_basis"`
	IsActive     bool            `json:"is_active"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidTo      *time.Time      `json:"valid_to,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AppliesOn reports whether the configuration is in force on date
func (t TaxConfiguration) AppliesOn(date time.Time) bool {
	if !t.IsActive {
		return false
	}
	d := Day(date)
	if d.Before(Day(t.ValidFrom)) {
		return false
	}
	return t.ValidTo == nil || !d.After(Day(*t.ValidTo))
}

// OccupancyData is the inventory snapshot of a property for one night
type OccupancyData struct {
	PropertyID    string          `json:"property_id"`
	Date          time.Time       `json:"date"`
	OccupancyRate decimal.Decimal `json:"occupancy_rate"`
	DemandScore   decimal.Decimal `json:"demand_score"`
	BookingPace   decimal.Decimal `json:"booking_pace"`
}
