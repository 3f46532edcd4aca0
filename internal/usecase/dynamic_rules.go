package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/repository"
)

// DynamicRuleService manages dynamic pricing rules
type DynamicRuleService struct {
	rules      repository.DynamicRuleRepository
	properties repository.PropertyRepository
	cache      CacheInvalidator
	now        func() time.Time
}

// NewDynamicRuleService creates a dynamic rule service
func NewDynamicRuleService(rules repository.DynamicRuleRepository, properties repository.PropertyRepository, cache CacheInvalidator) *DynamicRuleService {
	return &DynamicRuleService{
		rules:      rules,
		properties: properties,
		cache:      invalidatorOrNoop(cache),
		now:        time.Now,
	}
}

// Create validates and stores a new rule
func (s *DynamicRuleService) Create(ctx context.Context, rule domain.DynamicPricingRule) (*domain.DynamicPricingRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}

	now := s.now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	if err := s.rules.CreateDynamicRule(ctx, rule); err != nil {
		return nil, mapStoreError(err, "dynamic pricing rule", rule.ID)
	}
	s.cache.InvalidateProperty(ctx, rule.PropertyID)

	log.Info(ctx, "Dynamic pricing rule created",
		zap.String("rule_id", rule.ID),
		zap.String("type", string(rule.Type)),
		zap.Int("conditions", len(rule.Conditions)))
	return &rule, nil
}

// Update validates and replaces an existing rule
func (s *DynamicRuleService) Update(ctx context.Context, rule domain.DynamicPricingRule) (*domain.DynamicPricingRule, error) {
	existing, err := s.rules.GetDynamicRule(ctx, rule.ID)
	if err != nil {
		return nil, mapStoreError(err, "dynamic pricing rule", rule.ID)
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = s.now()
	if err := s.rules.UpdateDynamicRule(ctx, rule); err != nil {
		return nil, mapStoreError(err, "dynamic pricing rule", rule.ID)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	if existing.PropertyID != rule.PropertyID {
		s.cache.InvalidateProperty(ctx, rule.PropertyID)
	}
	return &rule, nil
}

// Delete removes a rule
func (s *DynamicRuleService) Delete(ctx context.Context, id string) error {
	existing, err := s.rules.GetDynamicRule(ctx, id)
	if err != nil {
		return mapStoreError(err, "dynamic pricing rule", id)
	}
	if err := s.rules.DeleteDynamicRule(ctx, id); err != nil {
		return mapStoreError(err, "dynamic pricing rule", id)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	return nil
}

// Get returns a rule by ID
func (s *DynamicRuleService) Get(ctx context.Context, id string) (*domain.DynamicPricingRule, error) {
	rule, err := s.rules.GetDynamicRule(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "dynamic pricing rule", id)
	}
	return rule, nil
}

// List returns every rule of a property
func (s *DynamicRuleService) List(ctx context.Context, propertyID string) ([]domain.DynamicPricingRule, error) {
	rules, err := s.rules.ListDynamicRules(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dynamic rules: %w", err)
	}
	return rules, nil
}

func (s *DynamicRuleService) validate(ctx context.Context, rule domain.DynamicPricingRule) error {
	if !rule.Type.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("unknown rule type %q", rule.Type))
	}
	if len(rule.Conditions) == 0 {
		return domain.NewValidationError("conditions", "at least one condition is required")
	}
	if len(rule.Adjustments) == 0 {
		return domain.NewValidationError("adjustments", "at least one adjustment is required")
	}
	if !rule.ValidFrom.Before(rule.ValidTo) {
		return domain.NewValidationError("validTo", "validTo must be after validFrom")
	}
	if err := validateConditions("conditions", rule.Conditions); err != nil {
		return err
	}

	for i, adj := range rule.Adjustments {
		field := fmt.Sprintf("adjustments[%d]", i)
		if !adj.Method.Valid() {
			return domain.NewValidationError(field+".method", fmt.Sprintf("unknown adjustment method %q", adj.Method))
		}
		switch adj.Method {
		case domain.AdjustmentPercentage, domain.AdjustmentFixedAmount:
			if !adj.Type.Valid() {
				return domain.NewValidationError(field+".type", fmt.Sprintf("unknown adjustment type %q", adj.Type))
			}
			if adj.Value.IsNegative() {
				return domain.NewValidationError(field+".value", "value cannot be negative, use the DECREASE type")
			}
		case domain.AdjustmentMultiplier:
			if !adj.Value.IsPositive() {
				return domain.NewValidationError(field+".value", "multiplier must be greater than 0")
			}
		case domain.AdjustmentSetRate:
			if adj.Value.IsNegative() {
				return domain.NewValidationError(field+".value", "rate cannot be negative")
			}
		}
		if adj.MaxAdjustment != nil && adj.MaxAdjustment.IsNegative() {
			return domain.NewValidationError(field+".maxAdjustment", "max adjustment cannot be negative")
		}
		if adj.MinRate != nil && adj.MaxRate != nil && !adj.MaxRate.GreaterThan(*adj.MinRate) {
			return domain.NewValidationError(field+".maxRate", "max rate must be greater than min rate")
		}
	}

	if err := requireProperty(ctx, s.properties, rule.PropertyID); err != nil {
		return err
	}
	return requireRoomTypes(ctx, s.properties, rule.PropertyID, rule.ApplicableRoomTypes)
}
