package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

// TaxService manages tax and fee configurations
type TaxService struct {
	taxes      repository.TaxRepository
	properties repository.PropertyRepository
	cache      CacheInvalidator
	now        func() time.Time
}

// NewTaxService creates a tax service
func NewTaxService(taxes repository.TaxRepository, properties repository.PropertyRepository, cache CacheInvalidator) *TaxService {
	return &TaxService{
		taxes:      taxes,
		properties: properties,
		cache:      invalidatorOrNoop(cache),
		now:        time.Now,
	}
}

// Create validates and stores a new configuration
func (s *TaxService) Create(ctx context.Context, tax domain.TaxConfiguration) (*domain.TaxConfiguration, error) {
	if tax.ID == "" {
		tax.ID = uuid.NewString()
	}
	if tax.ChargeBasis == "" {
		tax.ChargeBasis = domain.ChargePerStay
	}
	if err := s.validate(ctx, tax); err != nil {
		return nil, err
	}

	now := s.now()
	tax.CreatedAt, tax.UpdatedAt = now, now
	if err := s.taxes.CreateTaxConfiguration(ctx, tax); err != nil {
		return nil, mapStoreError(err, "tax configuration", tax.ID)
	}
	s.cache.InvalidateProperty(ctx, tax.PropertyID)
	return &tax, nil
}

// Update validates and replaces a configuration
func (s *TaxService) Update(ctx context.Context, tax domain.TaxConfiguration) (*domain.TaxConfiguration, error) {
	existing, err := s.taxes.GetTaxConfiguration(ctx, tax.ID)
	if err != nil {
		return nil, mapStoreError(err, "tax configuration", tax.ID)
	}
	if tax.ChargeBasis == "" {
		tax.ChargeBasis = domain.ChargePerStay
	}
	if err := s.validate(ctx, tax); err != nil {
		return nil, err
	}

	tax.CreatedAt = existing.CreatedAt
	tax.UpdatedAt = s.now()
	if err := s.taxes.UpdateTaxConfiguration(ctx, tax); err != nil {
		return nil, mapStoreError(err, "tax configuration", tax.ID)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	if existing.PropertyID != tax.PropertyID {
		s.cache.InvalidateProperty(ctx, tax.PropertyID)
	}
	return &tax, nil
}

// Delete removes a configuration
func (s *TaxService) Delete(ctx context.Context, id string) error {
	existing, err := s.taxes.GetTaxConfiguration(ctx, id)
	if err != nil {
		return mapStoreError(err, "tax configuration", id)
	}
	if err := s.taxes.DeleteTaxConfiguration(ctx, id); err != nil {
		return mapStoreError(err, "tax configuration", id)
	}
	s.cache.InvalidateProperty(ctx, existing.PropertyID)
	return nil
}

// Get returns a configuration by ID
func (s *TaxService) Get(ctx context.Context, id string) (*domain.TaxConfiguration, error) {
	tax, err := s.taxes.GetTaxConfiguration(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "tax configuration", id)
	}
	return tax, nil
}

// List returns every configuration of a property
func (s *TaxService) List(ctx context.Context, propertyID string) ([]domain.TaxConfiguration, error) {
	taxes, err := s.taxes.ListTaxConfigurations(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax configurations: %w", err)
	}
	return taxes, nil
}

func (s *TaxService) validate(ctx context.Context, tax domain.TaxConfiguration) error {
	if strings.TrimSpace(tax.Name) == "" {
		return domain.NewValidationError("name", "name is required")
	}
	if !tax.Type.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("unknown tax type %q", tax.Type))
	}
	if !tax.ChargeBasis.Valid() {
		return domain.NewValidationError("chargeBasis", fmt.Sprintf("unknown charge basis %q", tax.ChargeBasis))
	}
	if tax.Rate.IsNegative() {
		return domain.NewValidationError("rate", "rate cannot be negative")
	}
	if tax.IsPercentage && tax.Rate.GreaterThan(maxPercentage) {
		return domain.NewValidationError("rate", "percentage rate cannot exceed 100")
	}
	if tax.ValidTo != nil && !tax.ValidTo.After(tax.ValidFrom) {
		return domain.NewValidationError("validTo", "validTo must be after validFrom")
	}
	return requireProperty(ctx, s.properties, tax.PropertyID)
}
