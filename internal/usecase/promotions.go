package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/repository"
)

var maxPercentage = minPercentage.Neg()

// PromotionService manages promotions
type PromotionService struct {
	promotions repository.PromotionRepository
	properties repository.PropertyRepository
	cache      CacheInvalidator
	now        func() time.Time
}

// NewPromotionService creates a promotion service
func NewPromotionService(promotions repository.PromotionRepository, properties repository.PropertyRepository, cache CacheInvalidator) *PromotionService {
	return &PromotionService{
		promotions: promotions,
		properties: properties,
		cache:      invalidatorOrNoop(cache),
		now:        time.Now,
	}
}

// Create validates and stores a new promotion. Usage always starts at zero.
func (s *PromotionService) Create(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	if promo.ID == "" {
		promo.ID = uuid.NewString()
	}
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	promo.Usage.CurrentUsage = 0
	if err := s.validate(ctx, promo); err != nil {
		return nil, err
	}

	now := s.now()
	promo.CreatedAt, promo.UpdatedAt = now, now
	if err := s.promotions.CreatePromotion(ctx, promo); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && promo.Code != "" {
			return nil, domain.NewConflictError("promotion code already exists", "code: "+promo.Code)
		}
		return nil, mapStoreError(err, "promotion", promo.ID)
	}
	s.cache.InvalidateProperty(ctx, promo.PropertyID)

	log.Info(ctx, "Promotion created",
		zap.String("promotion_id", promo.ID),
		zap.String("code", promo.Code),
		zap.String("type", string(promo.Type)))
	return &promo, nil
}

// Update validates and replaces a promotion, keeping its usage counter
func (s *PromotionService) Update(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	existing, err := s.promotions.GetPromotion(ctx, promo.ID)
	if err != nil {
		return nil, mapStoreError(err, "promotion", promo.ID)
	}
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	promo.Usage.CurrentUsage = existing.Usage.CurrentUsage
	if err := s.validate(ctx, promo); err != nil {
		return nil, err
	}

	promo.CreatedAt = existing.CreatedAt
	promo.UpdatedAt = s.now()
	if err := s.promotions.UpdatePromotion(ctx, promo); err != nil {
		return nil, mapStoreError(err, "promotion", promo.ID)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	if existing.PropertyID != promo.PropertyID {
		s.cache.InvalidateProperty(ctx, promo.PropertyID)
	}
	return &promo, nil
}

// Delete removes a promotion
func (s *PromotionService) Delete(ctx context.Context, id string) error {
	existing, err := s.promotions.GetPromotion(ctx, id)
	if err != nil {
		return mapStoreError(err, "promotion", id)
	}
	if err := s.promotions.DeletePromotion(ctx, id); err != nil {
		return mapStoreError(err, "promotion", id)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	return nil
}

// Get returns a promotion by ID
func (s *PromotionService) Get(ctx context.Context, id string) (*domain.Promotion, error) {
	promo, err := s.promotions.GetPromotion(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "promotion", id)
	}
	return promo, nil
}

// List returns every promotion of a property
func (s *PromotionService) List(ctx context.Context, propertyID string) ([]domain.Promotion, error) {
	promos, err := s.promotions.ListPromotions(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	return promos, nil
}

func (s *PromotionService) validate(ctx context.Context, promo domain.Promotion) error {
	if !promo.Type.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("unknown promotion type %q", promo.Type))
	}
	if promo.Type == domain.PromotionCode && promo.Code == "" {
		return domain.NewValidationError("code", "promo code promotions need a code")
	}
	if !promo.DiscountType.Valid() {
		return domain.NewValidationError("discountType", fmt.Sprintf("unknown discount type %q", promo.DiscountType))
	}
	if !promo.DiscountValue.IsPositive() {
		return domain.NewValidationError("discountValue", "discount value must be greater than 0")
	}
	if promo.DiscountType == domain.DiscountPercentage && promo.DiscountValue.GreaterThan(maxPercentage) {
		return domain.NewValidationError("discountValue", "percentage discount cannot exceed 100")
	}
	if promo.MaxDiscount != nil && !promo.MaxDiscount.IsPositive() {
		return domain.NewValidationError("maxDiscount", "max discount must be greater than 0")
	}
	if !promo.ValidFrom.Before(promo.ValidTo) {
		return domain.NewValidationError("validTo", "validTo must be after validFrom")
	}
	if promo.Usage.MaxTotalUsage < 0 || promo.Usage.MaxUsagePerGuest < 0 {
		return domain.NewValidationError("usage", "usage limits cannot be negative")
	}
	if err := validateConditions("conditions", promo.Conditions); err != nil {
		return err
	}

	if err := requireProperty(ctx, s.properties, promo.PropertyID); err != nil {
		return err
	}
	if err := requireRoomTypes(ctx, s.properties, promo.PropertyID, promo.ApplicableRoomTypes); err != nil {
		return err
	}

	if promo.Code != "" {
		other, err := s.promotions.GetPromotionByCode(ctx, promo.PropertyID, promo.Code)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return fmt.Errorf("failed to check promotion code: %w", err)
		case other.ID != promo.ID:
			return domain.NewConflictError("promotion code already exists", "code: "+promo.Code)
		}
	}
	return nil
}
