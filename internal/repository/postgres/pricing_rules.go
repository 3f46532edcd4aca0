package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

// Seasonal rates

const seasonalColumns = `id, property_id, name, start_date, end_date, priority, room_type_rates, is_active, created_at, updated_at`

func scanSeasonalRate(row pgx.Row) (domain.SeasonalRate, error) {
	var r domain.SeasonalRate
	var rates []byte
	if err := row.Scan(&r.ID, &r.PropertyID, &r.Name, &r.StartDate, &r.EndDate, &r.Priority,
		&rates, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	utc(&r.StartDate)
	utc(&r.EndDate)
	utc(&r.CreatedAt)
	utc(&r.UpdatedAt)
	return r, unmarshalJSON(rates, &r.RoomTypeRates)
}

func (s *Store) CreateSeasonalRate(ctx context.Context, rate domain.SeasonalRate) error {
	rates, err := marshalJSON(rate.RoomTypeRates)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO seasonal_rates (`+seasonalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rate.ID, rate.PropertyID, rate.Name, domain.Day(rate.StartDate), domain.Day(rate.EndDate),
		rate.Priority, rates, rate.IsActive, rate.CreatedAt, rate.UpdatedAt)
	return wrap("create seasonal rate", err)
}

func (s *Store) UpdateSeasonalRate(ctx context.Context, rate domain.SeasonalRate) error {
	rates, err := marshalJSON(rate.RoomTypeRates)
	if err != nil {
		return err
	}
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE seasonal_rates
		SET name = $2, start_date = $3, end_date = $4, priority = $5, room_type_rates = $6,
		    is_active = $7, updated_at = $8
		WHERE id = $1`,
		rate.ID, rate.Name, domain.Day(rate.StartDate), domain.Day(rate.EndDate),
		rate.Priority, rates, rate.IsActive, rate.UpdatedAt)
	if err != nil {
		return wrap("update seasonal rate", err)
	}
	return affected(tag)
}

func (s *Store) DeleteSeasonalRate(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM seasonal_rates WHERE id = $1`, id)
	if err != nil {
		return wrap("delete seasonal rate", err)
	}
	return affected(tag)
}

func (s *Store) GetSeasonalRate(ctx context.Context, id string) (*domain.SeasonalRate, error) {
	r, err := scanSeasonalRate(s.conn(ctx).QueryRow(ctx,
		`SELECT `+seasonalColumns+` FROM seasonal_rates WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get seasonal rate", err)
	}
	return &r, nil
}

func (s *Store) ListSeasonalRates(ctx context.Context, propertyID string) ([]domain.SeasonalRate, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+seasonalColumns+` FROM seasonal_rates WHERE property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, wrap("list seasonal rates", err)
	}
	return collect(rows, scanSeasonalRate, "list seasonal rates")
}

// Dynamic pricing rules

const dynamicColumns = `id, property_id, name, rule_type, priority, conditions, adjustments, valid_from, valid_to,
	applicable_room_types, is_active, created_at, updated_at`

func scanDynamicRule(row pgx.Row) (domain.DynamicPricingRule, error) {
	var r domain.DynamicPricingRule
	var ruleType string
	var conditions, adjustments []byte
	if err := row.Scan(&r.ID, &r.PropertyID, &r.Name, &ruleType, &r.Priority, &conditions, &adjustments,
		&r.ValidFrom, &r.ValidTo, &r.ApplicableRoomTypes, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.Type = domain.RuleType(ruleType)
	utc(&r.ValidFrom)
	utc(&r.ValidTo)
	utc(&r.CreatedAt)
	utc(&r.UpdatedAt)
	if err := unmarshalJSON(conditions, &r.Conditions); err != nil {
		return r, err
	}
	return r, unmarshalJSON(adjustments, &r.Adjustments)
}

func (s *Store) CreateDynamicRule(ctx context.Context, rule domain.DynamicPricingRule) error {
	conditions, err := marshalJSON(rule.Conditions)
	if err != nil {
		return err
	}
	adjustments, err := marshalJSON(rule.Adjustments)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO dynamic_pricing_rules (`+dynamicColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rule.ID, rule.PropertyID, rule.Name, string(rule.Type), rule.Priority, conditions, adjustments,
		rule.ValidFrom, rule.ValidTo, textArray(rule.ApplicableRoomTypes), rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	return wrap("create dynamic rule", err)
}

func (s *Store) UpdateDynamicRule(ctx context.Context, rule domain.DynamicPricingRule) error {
	conditions, err := marshalJSON(rule.Conditions)
	if err != nil {
		return err
	}
	adjustments, err := marshalJSON(rule.Adjustments)
	if err != nil {
		return err
	}
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE dynamic_pricing_rules
		SET name = $2, rule_type = $3, priority = $4, conditions = $5, adjustments = $6,
		    valid_from = $7, valid_to = $8, applicable_room_types = $9, is_active = $10, updated_at = $11
		WHERE id = $1`,
		rule.ID, rule.Name, string(rule.Type), rule.Priority, conditions, adjustments,
		rule.ValidFrom, rule.ValidTo, textArray(rule.ApplicableRoomTypes), rule.IsActive, rule.UpdatedAt)
	if err != nil {
		return wrap("update dynamic rule", err)
	}
	return affected(tag)
}

func (s *Store) DeleteDynamicRule(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM dynamic_pricing_rules WHERE id = $1`, id)
	if err != nil {
		return wrap("delete dynamic rule", err)
	}
	return affected(tag)
}

func (s *Store) GetDynamicRule(ctx context.Context, id string) (*domain.DynamicPricingRule, error) {
	r, err := scanDynamicRule(s.conn(ctx).QueryRow(ctx,
		`SELECT `+dynamicColumns+` FROM dynamic_pricing_rules WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get dynamic rule", err)
	}
	return &r, nil
}

func (s *Store) ListDynamicRules(ctx context.Context, propertyID string) ([]domain.DynamicPricingRule, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+dynamicColumns+` FROM dynamic_pricing_rules WHERE property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, wrap("list dynamic rules", err)
	}
	return collect(rows, scanDynamicRule, "list dynamic rules")
}

// Promotions

const promotionColumns = `id, property_id, code, name, promotion_type, discount_type, discount_value, max_discount,
	valid_from, valid_to, conditions, applicable_room_types, booking_sources, requires_loyalty_member,
	corporate_code, max_total_usage, max_usage_per_guest, current_usage, is_active, created_at, updated_at`

func scanPromotion(row pgx.Row) (domain.Promotion, error) {
	var p domain.Promotion
	var promotionType, discountType string
	var maxDiscount decimal.NullDecimal
	var conditions []byte
	if err := row.Scan(&p.ID, &p.PropertyID, &p.Code, &p.Name, &promotionType, &discountType,
		&p.DiscountValue, &maxDiscount, &p.ValidFrom, &p.ValidTo, &conditions, &p.ApplicableRoomTypes,
		&p.BookingSources, &p.RequiresLoyaltyMember, &p.CorporateCode, &p.Usage.MaxTotalUsage,
		&p.Usage.MaxUsagePerGuest, &p.Usage.CurrentUsage, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	p.Type = domain.PromotionType(promotionType)
	p.DiscountType = domain.DiscountType(discountType)
	if maxDiscount.Valid {
		p.MaxDiscount = &maxDiscount.Decimal
	}
	utc(&p.ValidFrom)
	utc(&p.ValidTo)
	utc(&p.CreatedAt)
	utc(&p.UpdatedAt)
	return p, unmarshalJSON(conditions, &p.Conditions)
}

func promotionArgs(p domain.Promotion) ([]any, error) {
	conditions, err := marshalJSON(p.Conditions)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.PropertyID, p.Code, p.Name, string(p.Type), string(p.DiscountType), p.DiscountValue, p.MaxDiscount,
		p.ValidFrom, p.ValidTo, conditions, textArray(p.ApplicableRoomTypes), textArray(p.BookingSources),
		p.RequiresLoyaltyMember, p.CorporateCode, p.Usage.MaxTotalUsage, p.Usage.MaxUsagePerGuest,
		p.Usage.CurrentUsage, p.IsActive, p.CreatedAt, p.UpdatedAt,
	}, nil
}

func (s *Store) CreatePromotion(ctx context.Context, promotion domain.Promotion) error {
	args, err := promotionArgs(promotion)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO promotions (`+promotionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		args...)
	return wrap("create promotion", err)
}

// UpdatePromotion replaces the definition. The usage counter is owned by
// RecordRedemption and is left alone.
func (s *Store) UpdatePromotion(ctx context.Context, promotion domain.Promotion) error {
	conditions, err := marshalJSON(promotion.Conditions)
	if err != nil {
		return err
	}
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE promotions
		SET code = $2, name = $3, promotion_type = $4, discount_type = $5, discount_value = $6,
		    max_discount = $7, valid_from = $8, valid_to = $9, conditions = $10,
		    applicable_room_types = $11, booking_sources = $12, requires_loyalty_member = $13,
		    corporate_code = $14, max_total_usage = $15, max_usage_per_guest = $16,
		    is_active = $17, updated_at = $18
		WHERE id = $1`,
		promotion.ID, promotion.Code, promotion.Name, string(promotion.Type), string(promotion.DiscountType),
		promotion.DiscountValue, promotion.MaxDiscount, promotion.ValidFrom, promotion.ValidTo, conditions,
		textArray(promotion.ApplicableRoomTypes), textArray(promotion.BookingSources),
		promotion.RequiresLoyaltyMember, promotion.CorporateCode, promotion.Usage.MaxTotalUsage,
		promotion.Usage.MaxUsagePerGuest, promotion.IsActive, promotion.UpdatedAt)
	if err != nil {
		return wrap("update promotion", err)
	}
	return affected(tag)
}

func (s *Store) DeletePromotion(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return wrap("delete promotion", err)
	}
	return affected(tag)
}

func (s *Store) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	p, err := scanPromotion(s.conn(ctx).QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get promotion", err)
	}
	return &p, nil
}

// GetPromotionByCode matches codes case-insensitively
func (s *Store) GetPromotionByCode(ctx context.Context, propertyID, code string) (*domain.Promotion, error) {
	p, err := scanPromotion(s.conn(ctx).QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM promotions
		 WHERE property_id = $1 AND code <> '' AND lower(code) = lower($2)`, propertyID, code))
	if err != nil {
		return nil, wrap("get promotion by code", err)
	}
	return &p, nil
}

func (s *Store) ListPromotions(ctx context.Context, propertyID string) ([]domain.Promotion, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, wrap("list promotions", err)
	}
	return collect(rows, scanPromotion, "list promotions")
}

// RecordRedemption claims one use of the quota with a guarded increment, so
// concurrent bookings can never push the counter past the limit
func (s *Store) RecordRedemption(ctx context.Context, promotionID, guestID, bookingID string) error {
	return s.WithinTransaction(ctx, func(ctx context.Context) error {
		conn := s.conn(ctx)
		tag, err := conn.Exec(ctx, `
			UPDATE promotions SET current_usage = current_usage + 1
			WHERE id = $1 AND (max_total_usage = 0 OR current_usage < max_total_usage)`, promotionID)
		if err != nil {
			return wrap("record redemption", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := conn.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1)`, promotionID).Scan(&exists); err != nil {
				return wrap("record redemption", err)
			}
			if !exists {
				return repository.ErrNotFound
			}
			return repository.ErrStatusConflict
		}
		_, err = conn.Exec(ctx, `
			INSERT INTO promotion_redemptions (promotion_id, guest_id, booking_id, redeemed_at)
			VALUES ($1, $2, $3, $4)`, promotionID, guestID, bookingID, s.now())
		return wrap("record redemption", err)
	})
}

func (s *Store) CountGuestRedemptions(ctx context.Context, promotionID, guestID string) (int, error) {
	var count int
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT count(*) FROM promotion_redemptions WHERE promotion_id = $1 AND guest_id = $2`,
		promotionID, guestID).Scan(&count)
	if err != nil {
		return 0, wrap("count guest redemptions", err)
	}
	return count, nil
}

// Taxes and fees

const taxColumns = `id, property_id, name, tax_type, rate, is_percentage, is_inclusive, charge_basis, is_active,
	valid_from, valid_to, created_at, updated_at`

func scanTaxConfiguration(row pgx.Row) (domain.TaxConfiguration, error) {
	var t domain.TaxConfiguration
	var taxType, basis string
	if err := row.Scan(&t.ID, &t.PropertyID, &t.Name, &taxType, &t.Rate, &t.IsPercentage, &t.IsInclusive,
		&basis, &t.IsActive, &t.ValidFrom, &t.ValidTo, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	t.Type = domain.TaxType(taxType)
	t.ChargeBasis = domain.ChargeBasis(basis)
	utc(&t.ValidFrom)
	t.ValidTo = utcPtr(t.ValidTo)
	utc(&t.CreatedAt)
	utc(&t.UpdatedAt)
	return t, nil
}

func validTo(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.Day(*t)
	return &d
}

func (s *Store) CreateTaxConfiguration(ctx context.Context, tax domain.TaxConfiguration) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO tax_configurations (`+taxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		tax.ID, tax.PropertyID, tax.Name, string(tax.Type), tax.Rate, tax.IsPercentage, tax.IsInclusive,
		string(tax.ChargeBasis), tax.IsActive, domain.Day(tax.ValidFrom), validTo(tax.ValidTo),
		tax.CreatedAt, tax.UpdatedAt)
	return wrap("create tax configuration", err)
}

func (s *Store) UpdateTaxConfiguration(ctx context.Context, tax domain.TaxConfiguration) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE tax_configurations
		SET name = $2, tax_type = $3, rate = $4, is_percentage = $5, is_inclusive = $6,
		    charge_basis = $7, is_active = $8, valid_from = $9, valid_to = $10, updated_at = $11
		WHERE id = $1`,
		tax.ID, tax.Name, string(tax.Type), tax.Rate, tax.IsPercentage, tax.IsInclusive,
		string(tax.ChargeBasis), tax.IsActive, domain.Day(tax.ValidFrom), validTo(tax.ValidTo), tax.UpdatedAt)
	if err != nil {
		return wrap("update tax configuration", err)
	}
	return affected(tag)
}

func (s *Store) DeleteTaxConfiguration(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM tax_configurations WHERE id = $1`, id)
	if err != nil {
		return wrap("delete tax configuration", err)
	}
	return affected(tag)
}

func (s *Store) GetTaxConfiguration(ctx context.Context, id string) (*domain.TaxConfiguration, error) {
	t, err := scanTaxConfiguration(s.conn(ctx).QueryRow(ctx,
		`SELECT `+taxColumns+` FROM tax_configurations WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get tax configuration", err)
	}
	return &t, nil
}

func (s *Store) ListTaxConfigurations(ctx context.Context, propertyID string) ([]domain.TaxConfiguration, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+taxColumns+` FROM tax_configurations WHERE property_id = $1 ORDER BY id`, propertyID)
	if err != nil {
		return nil, wrap("list tax configurations", err)
	}
	return collect(rows, scanTaxConfiguration, "list tax configurations")
}

// collect scans every row and closes rows
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error), op string) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}
