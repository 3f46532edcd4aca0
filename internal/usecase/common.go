package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

// CacheInvalidator drops cached quotes after configuration changes
type CacheInvalidator interface {
	InvalidateProperty(ctx context.Context, propertyID string)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateProperty(context.Context, string) {}

func invalidatorOrNoop(c CacheInvalidator) CacheInvalidator {
	if c == nil {
		return noopInvalidator{}
	}
	return c
}

func requireProperty(ctx context.Context, properties repository.PropertyRepository, propertyID string) error {
	if propertyID == "" {
		return domain.NewValidationError("propertyId", "property ID is required")
	}
	if _, err := properties.GetProperty(ctx, propertyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewNotFoundError("property", propertyID)
		}
		return fmt.Errorf("failed to load property: %w", err)
	}
	return nil
}

func requireRoomTypes(ctx context.Context, properties repository.PropertyRepository, propertyID string, roomTypeIDs []string) error {
	for _, id := range roomTypeIDs {
		rt, err := properties.GetRoomType(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewNotFoundError("room type", id)
			}
			return fmt.Errorf("failed to load room type: %w", err)
		}
		if rt.PropertyID != propertyID {
			return domain.NewNotFoundError("room type", id)
		}
	}
	return nil
}

// mapStoreError turns repository sentinels into domain errors
func mapStoreError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return domain.NewNotFoundError(resource, id)
	case errors.Is(err, repository.ErrDuplicate):
		return domain.NewConflictError(fmt.Sprintf("%s already exists", resource), "ID: "+id)
	default:
		return fmt.Errorf("%s store: %w", resource, err)
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !domain.Day(aStart).After(domain.Day(bEnd)) && !domain.Day(bStart).After(domain.Day(aEnd))
}

// validateConditions checks the closed enums and operand shape of conditions
func validateConditions(field string, conditions []domain.Condition) error {
	for i, c := range conditions {
		f := fmt.Sprintf("%s[%d]", field, i)
		if !c.Type.Valid() {
			return domain.NewValidationError(f+".type", fmt.Sprintf("unknown condition type %q", c.Type))
		}
		if !c.Operator.Valid() {
			return domain.NewValidationError(f+".operator", fmt.Sprintf("unknown operator %q", c.Operator))
		}
		if c.Operator == domain.OperatorBetween && len(c.Values) != 2 {
			return domain.NewValidationError(f+".values", "BETWEEN needs exactly two values")
		}
	}
	return nil
}
