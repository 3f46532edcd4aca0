package pricing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

// Rejection reasons reported for requested promotion codes
const (
	ReasonNotFound        = "promotion code not found"
	ReasonInactive        = "promotion is not active"
	ReasonOutsideValidity = "promotion is not valid at this time"
	ReasonUsageExhausted  = "promotion usage limit reached"
	ReasonGuestExhausted  = "promotion already used the maximum number of times by this guest"
	ReasonRoomType        = "promotion does not apply to this room type"
	ReasonBookingSource   = "promotion does not apply to this booking source"
	ReasonLoyalty         = "promotion requires a loyalty member"
	ReasonCorporateCode   = "promotion requires a matching corporate code"
	ReasonConditions      = "booking does not meet the promotion conditions"
	ReasonNoDiscountLeft  = "booking amount is already fully discounted"
)

// PromotionInput is the booking context a promotion is checked against
type PromotionInput struct {
	Request    domain.PriceRequest
	BaseAmount decimal.Decimal
	Currency   string
	Nights     int
}

// PromotionOutcome is the result of applying promotions to a base amount
type PromotionOutcome struct {
	Discount  decimal.Decimal
	Applied   []domain.AppliedPromotion
	Rejected  []domain.RejectedPromotion
	Discounts []domain.LineItem
}

// PromotionValidator checks and applies promotions
type PromotionValidator struct {
	promotions repository.PromotionRepository
	now        func() time.Time
}

// NewPromotionValidator creates a promotion validator. now defaults to time.Now.
func NewPromotionValidator(promotions repository.PromotionRepository, now func() time.Time) *PromotionValidator {
	if now == nil {
		now = time.Now
	}
	return &PromotionValidator{promotions: promotions, now: now}
}

// NormalizeCodes upper-cases, trims and de-duplicates codes keeping their order
func NormalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Apply validates the requested codes in order, then every eligible AUTOMATIC
// promotion by ascending ID. The cumulative discount never exceeds the base
// amount. Rejected codes are reported; with RequirePromotions the first
// rejection is returned as a validation error instead.
func (v *PromotionValidator) Apply(ctx context.Context, in PromotionInput) (*PromotionOutcome, error) {
	out := &PromotionOutcome{Discount: decimal.Zero}
	req := in.Request
	applied := make(map[string]bool)

	reject := func(code, reason string) error {
		if req.RequirePromotions {
			return domain.NewValidationError("promotionCodes", fmt.Sprintf("promotion %s cannot be applied: %s", code, reason))
		}
		out.Rejected = append(out.Rejected, domain.RejectedPromotion{Code: code, Reason: reason})
		return nil
	}

	for _, code := range NormalizeCodes(req.PromotionCodes) {
		promo, err := v.promotions.GetPromotionByCode(ctx, req.PropertyID, code)
		if errors.Is(err, repository.ErrNotFound) {
			if err := reject(code, ReasonNotFound); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load promotion %s: %w", code, err)
		}
		if applied[promo.ID] {
			continue
		}

		reason, err := v.ineligibility(ctx, *promo, in)
		if err != nil {
			return nil, err
		}
		if reason == "" && !out.apply(*promo, in) {
			reason = ReasonNoDiscountLeft
		}
		if reason != "" {
			if err := reject(code, reason); err != nil {
				return nil, err
			}
			continue
		}
		applied[promo.ID] = true
	}

	all, err := v.promotions.ListPromotions(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, promo := range all {
		if promo.Type != domain.PromotionAutomatic || applied[promo.ID] {
			continue
		}
		reason, err := v.ineligibility(ctx, promo, in)
		if err != nil {
			return nil, err
		}
		if reason == "" && out.apply(promo, in) {
			applied[promo.ID] = true
		}
	}

	return out, nil
}

// ineligibility returns the first reason promo cannot apply, or "" if it can
func (v *PromotionValidator) ineligibility(ctx context.Context, promo domain.Promotion, in PromotionInput) (string, error) {
	req := in.Request
	now := v.now()

	if !promo.IsActive {
		return ReasonInactive, nil
	}
	if now.Before(promo.ValidFrom) || now.After(promo.ValidTo) {
		return ReasonOutsideValidity, nil
	}
	// a held promotion already counts against its own limits
	held := slices.Contains(req.HeldPromotionIDs, promo.ID)
	if !held && promo.Usage.Exhausted() {
		return ReasonUsageExhausted, nil
	}
	if !held && promo.Usage.MaxUsagePerGuest > 0 && req.GuestID != "" {
		used, err := v.promotions.CountGuestRedemptions(ctx, promo.ID, req.GuestID)
		if err != nil {
			return "", fmt.Errorf("failed to count redemptions: %w", err)
		}
		if used >= promo.Usage.MaxUsagePerGuest {
			return ReasonGuestExhausted, nil
		}
	}
	if len(promo.ApplicableRoomTypes) > 0 && !slices.Contains(promo.ApplicableRoomTypes, req.RoomTypeID) {
		return ReasonRoomType, nil
	}
	if len(promo.BookingSources) > 0 && !slices.ContainsFunc(promo.BookingSources, func(s string) bool {
		return strings.EqualFold(s, req.BookingSource)
	}) {
		return ReasonBookingSource, nil
	}
	if promo.RequiresLoyaltyMember && req.LoyaltyMemberID == "" {
		return ReasonLoyalty, nil
	}
	if promo.CorporateCode != "" && !strings.EqualFold(promo.CorporateCode, req.CorporateCode) {
		return ReasonCorporateCode, nil
	}

	ec := EvaluationContext{
		Date:          req.CheckIn,
		Now:           now,
		LengthOfStay:  in.Nights,
		BookingAmount: decimal.NewNullDecimal(in.BaseAmount),
		GuestCount:    req.GuestCount,
		RoomQuantity:  req.RoomQuantity,
	}
	if !EvaluateConditions(promo.Conditions, ec) {
		return ReasonConditions, nil
	}
	return "", nil
}

// apply adds the promotion discount, bounded by what is left of the base
// amount. It reports false when nothing is left to discount.
func (o *PromotionOutcome) apply(promo domain.Promotion, in PromotionInput) bool {
	remaining := in.BaseAmount.Sub(o.Discount)
	if !remaining.IsPositive() {
		return false
	}

	var discount decimal.Decimal
	switch promo.DiscountType {
	case domain.DiscountPercentage:
		discount = domain.Percent(in.BaseAmount, promo.DiscountValue)
	case domain.DiscountFixedAmount:
		discount = promo.DiscountValue.Mul(decimal.NewFromInt(int64(max(in.Request.RoomQuantity, 1))))
	}
	if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
		discount = *promo.MaxDiscount
	}
	discount = domain.RoundAmount(domain.Clamp(discount, decimal.Zero, remaining), in.Currency)
	if !discount.IsPositive() {
		return false
	}

	o.Discount = o.Discount.Add(discount)
	o.Applied = append(o.Applied, domain.AppliedPromotion{
		PromotionID: promo.ID,
		Code:        promo.Code,
		Name:        promo.Name,
		Discount:    discount,
	})
	code := promo.Code
	if code == "" {
		code = promo.ID
	}
	o.Discounts = append(o.Discounts, domain.LineItem{
		Code:        code,
		Description: promo.Name,
		Quantity:    1,
		UnitAmount:  discount,
		Amount:      discount,
	})
	return true
}
