package domain

import (
	"fmt"
	"slices"
	"strings"
)

// parseEnum decodes raw into one of the allowed values. Unknown values are
// rejected so that every switch over an enum stays exhaustive.
func parseEnum[T ~string](kind string, raw []byte, allowed []T) (T, error) {
	value := T(strings.ToUpper(strings.TrimSpace(string(raw))))
	if slices.Contains(allowed, value) {
		return value, nil
	}
	var zero T
	return zero, NewValidationError(kind, fmt.Sprintf("unknown %s %q", kind, string(raw)))
}

// AdjustmentMethod is how an adjustment value transforms a rate
type AdjustmentMethod string

const (
	AdjustmentPercentage  AdjustmentMethod = "PERCENTAGE"
	AdjustmentFixedAmount AdjustmentMethod = "FIXED_AMOUNT"
	AdjustmentMultiplier  AdjustmentMethod = "MULTIPLIER"
	AdjustmentSetRate     AdjustmentMethod = "SET_RATE"
)

var adjustmentMethods = []AdjustmentMethod{AdjustmentPercentage, AdjustmentFixedAmount, AdjustmentMultiplier, AdjustmentSetRate}

func (m AdjustmentMethod) Valid() bool { return slices.Contains(adjustmentMethods, m) }

func (m *AdjustmentMethod) UnmarshalText(b []byte) error {
	v, err := parseEnum("adjustmentMethod", b, adjustmentMethods)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// AdjustmentDirection tells a dynamic adjustment to raise or lower the rate
type AdjustmentDirection string

const (
	DirectionIncrease AdjustmentDirection = "INCREASE"
	DirectionDecrease AdjustmentDirection = "DECREASE"
)

var adjustmentDirections = []AdjustmentDirection{DirectionIncrease, DirectionDecrease}

func (d AdjustmentDirection) Valid() bool { return slices.Contains(adjustmentDirections, d) }

func (d *AdjustmentDirection) UnmarshalText(b []byte) error {
	v, err := parseEnum("adjustmentType", b, adjustmentDirections)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ConditionType selects the booking-context value a condition inspects
type ConditionType string

const (
	ConditionOccupancyRate      ConditionType = "OCCUPANCY_RATE"
	ConditionDemandScore        ConditionType = "DEMAND_SCORE"
	ConditionBookingPace        ConditionType = "BOOKING_PACE"
	ConditionAdvanceBookingDays ConditionType = "ADVANCE_BOOKING_DAYS"
	ConditionLengthOfStay       ConditionType = "LENGTH_OF_STAY"
	ConditionDayOfWeek          ConditionType = "DAY_OF_WEEK"
	ConditionBookingAmount      ConditionType = "BOOKING_AMOUNT"
	ConditionGuestCount         ConditionType = "GUEST_COUNT"
	ConditionRoomQuantity       ConditionType = "ROOM_QUANTITY"
)

var conditionTypes = []ConditionType{
	ConditionOccupancyRate, ConditionDemandScore, ConditionBookingPace,
	ConditionAdvanceBookingDays, ConditionLengthOfStay, ConditionDayOfWeek,
	ConditionBookingAmount, ConditionGuestCount, ConditionRoomQuantity,
}

func (c ConditionType) Valid() bool { return slices.Contains(conditionTypes, c) }

func (c *ConditionType) UnmarshalText(b []byte) error {
	v, err := parseEnum("conditionType", b, conditionTypes)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Operator compares a context value against a condition
type Operator string

const (
	OperatorGT      Operator = "GT"
	OperatorLT      Operator = "LT"
	OperatorGTE     Operator = "GTE"
	OperatorLTE     Operator = "LTE"
	OperatorEQ      Operator = "EQ"
	OperatorIN      Operator = "IN"
	OperatorBetween Operator = "BETWEEN"
)

var operators = []Operator{OperatorGT, OperatorLT, OperatorGTE, OperatorLTE, OperatorEQ, OperatorIN, OperatorBetween}

func (o Operator) Valid() bool { return slices.Contains(operators, o) }

func (o *Operator) UnmarshalText(b []byte) error {
	v, err := parseEnum("operator", b, operators)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// RuleType classifies a dynamic pricing rule
type RuleType string

const (
	RuleOccupancyBased RuleType = "OCCUPANCY_BASED"
	RuleDemandBased    RuleType = "DEMAND_BASED"
	RuleAdvanceBooking RuleType = "ADVANCE_BOOKING"
	RuleLengthOfStay   RuleType = "LENGTH_OF_STAY"
	RuleDayOfWeek      RuleType = "DAY_OF_WEEK"
	RuleLastMinute     RuleType = "LAST_MINUTE"
	RuleEventBased     RuleType = "EVENT_BASED"
)

var ruleTypes = []RuleType{
	RuleOccupancyBased, RuleDemandBased, RuleAdvanceBooking, RuleLengthOfStay,
	RuleDayOfWeek, RuleLastMinute, RuleEventBased,
}

func (r RuleType) Valid() bool { return slices.Contains(ruleTypes, r) }

func (r *RuleType) UnmarshalText(b []byte) error {
	v, err := parseEnum("ruleType", b, ruleTypes)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// PromotionType classifies a promotion
type PromotionType string

const (
	PromotionCode       PromotionType = "PROMO_CODE"
	PromotionAutomatic  PromotionType = "AUTOMATIC"
	PromotionLoyalty    PromotionType = "LOYALTY"
	PromotionCorporate  PromotionType = "CORPORATE"
	PromotionEarlyBird  PromotionType = "EARLY_BIRD"
	PromotionLastMinute PromotionType = "LAST_MINUTE"
)

var promotionTypes = []PromotionType{
	PromotionCode, PromotionAutomatic, PromotionLoyalty,
	PromotionCorporate, PromotionEarlyBird, PromotionLastMinute,
}

func (p PromotionType) Valid() bool { return slices.Contains(promotionTypes, p) }

func (p *PromotionType) UnmarshalText(b []byte) error {
	v, err := parseEnum("promotionType", b, promotionTypes)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// DiscountType is the unit of a promotion discount
type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

var discountTypes = []DiscountType{DiscountPercentage, DiscountFixedAmount}

func (d DiscountType) Valid() bool { return slices.Contains(discountTypes, d) }

func (d *DiscountType) UnmarshalText(b []byte) error {
	v, err := parseEnum("discountType", b, discountTypes)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// TaxType separates government taxes from property fees
type TaxType string

const (
	TaxTypeTax TaxType = "TAX"
	TaxTypeFee TaxType = "FEE"
)

var taxTypes = []TaxType{TaxTypeTax, TaxTypeFee}

func (t TaxType) Valid() bool { return slices.Contains(taxTypes, t) }

func (t *TaxType) UnmarshalText(b []byte) error {
	v, err := parseEnum("taxType", b, taxTypes)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ChargeBasis decides how a flat tax or fee scales with the stay
type ChargeBasis string

const (
	ChargePerStay      ChargeBasis = "PER_STAY"
	ChargePerNight     ChargeBasis = "PER_NIGHT"
	ChargePerRoomNight ChargeBasis = "PER_ROOM_NIGHT"
)

var chargeBases = []ChargeBasis{ChargePerStay, ChargePerNight, ChargePerRoomNight}

func (c ChargeBasis) Valid() bool { return slices.Contains(chargeBases, c) }

func (c *ChargeBasis) UnmarshalText(b []byte) error {
	v, err := parseEnum("chargeBasis", b, chargeBases)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// RateType of a stored nightly rate
type RateType string

const (
	RateTypeBase      RateType = "BASE"
	RateTypePackage   RateType = "PACKAGE"
	RateTypeCorporate RateType = "CORPORATE"
)

var rateTypes = []RateType{RateTypeBase, RateTypePackage, RateTypeCorporate}

func (r RateType) Valid() bool { return slices.Contains(rateTypes, r) }

func (r *RateType) UnmarshalText(b []byte) error {
	v, err := parseEnum("rateType", b, rateTypes)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// BookingStatus is a state of the booking lifecycle
type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingModified   BookingStatus = "MODIFIED"
	BookingCheckedIn  BookingStatus = "CHECKED_IN"
	BookingCheckedOut BookingStatus = "CHECKED_OUT"
	BookingCancelled  BookingStatus = "CANCELLED"
	BookingNoShow     BookingStatus = "NO_SHOW"
	BookingExpired    BookingStatus = "EXPIRED"
)

var bookingStatuses = []BookingStatus{
	BookingPending, BookingConfirmed, BookingModified, BookingCheckedIn,
	BookingCheckedOut, BookingCancelled, BookingNoShow, BookingExpired,
}

func (s BookingStatus) Valid() bool { return slices.Contains(bookingStatuses, s) }

// IsTerminal reports whether no further transition can leave s
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingCheckedOut, BookingCancelled, BookingNoShow, BookingExpired:
		return true
	default:
		return false
	}
}

func (s *BookingStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum("status", b, bookingStatuses)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PaymentStatus tracks money movement for a booking
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentAuthorized        PaymentStatus = "AUTHORIZED"
	PaymentCaptured          PaymentStatus = "CAPTURED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentVoided            PaymentStatus = "VOIDED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var paymentStatuses = []PaymentStatus{
	PaymentPending, PaymentAuthorized, PaymentCaptured, PaymentFailed,
	PaymentVoided, PaymentRefunded, PaymentPartiallyRefunded,
}

func (s PaymentStatus) Valid() bool { return slices.Contains(paymentStatuses, s) }

func (s *PaymentStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum("paymentStatus", b, paymentStatuses)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PenaltyType is the unit in which a cancellation fee is expressed
type PenaltyType string

const (
	PenaltyPercentage  PenaltyType = "PERCENTAGE"
	PenaltyFixedAmount PenaltyType = "FIXED_AMOUNT"
	PenaltyFirstNight  PenaltyType = "FIRST_NIGHT"
)

var penaltyTypes = []PenaltyType{PenaltyPercentage, PenaltyFixedAmount, PenaltyFirstNight}

func (p PenaltyType) Valid() bool { return slices.Contains(penaltyTypes, p) }

func (p *PenaltyType) UnmarshalText(b []byte) error {
	v, err := parseEnum("penaltyType", b, penaltyTypes)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// DepositType is how a deposit is derived from the booking total
type DepositType string

const (
	DepositPercentage  DepositType = "PERCENTAGE"
	DepositFixedAmount DepositType = "FIXED_AMOUNT"
	DepositFirstNight  DepositType = "FIRST_NIGHT"
	DepositFull        DepositType = "FULL"
)

var depositTypes = []DepositType{DepositPercentage, DepositFixedAmount, DepositFirstNight, DepositFull}

func (d DepositType) Valid() bool { return slices.Contains(depositTypes, d) }

func (d *DepositType) UnmarshalText(b []byte) error {
	v, err := parseEnum("depositType", b, depositTypes)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// RefundStatus tracks a queued refund
type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundSucceeded RefundStatus = "SUCCEEDED"
	RefundFailed    RefundStatus = "FAILED"
)
