package booking

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

// RoomRequest asks for rooms of one type
type RoomRequest struct {
	RoomTypeID    string `json:"roomTypeId" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gte=0,lte=20"`
	GuestsPerRoom int    `json:"guestsPerRoom" validate:"gte=1"`
}

func (r RoomRequest) quantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

// CreateBookingRequest is the input of CreateBooking
type CreateBookingRequest struct {
	PropertyID      string        `json:"propertyId" validate:"required"`
	GuestID         string        `json:"guestId" validate:"required"`
	CheckIn         time.Time     `json:"checkInDate"`
	CheckOut        time.Time     `json:"checkOutDate"`
	Rooms           []RoomRequest `json:"rooms" validate:"required,min=1,max=10,dive"`
	PromotionCodes  []string      `json:"promotionCodes" validate:"omitempty,max=5,dive,required,max=50,promo_code"`
	CorporateCode   string        `json:"corporateCode" validate:"omitempty,max=50"`
	LoyaltyMemberID string        `json:"loyaltyMemberId" validate:"omitempty,max=100"`
	BookingSource   string        `json:"bookingSource" validate:"omitempty,max=50"`
	SpecialRequests string        `json:"specialRequests" validate:"max=2000"`
	PaymentMethodID string        `json:"paymentMethodId" validate:"omitempty,max=255"`
}

// ValidationIssue is one problem found in a booking request
type ValidationIssue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult lists every problem of a booking request
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationIssue `json:"errors"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("promo_code", func(fl validator.FieldLevel) bool {
		for _, c := range strings.TrimSpace(fl.Field().String()) {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_') {
				return false
			}
		}
		return true
	})
	return v
}

// fieldPath drops the struct name from a validator namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "promo_code":
		return fmt.Sprintf("%s may only contain letters, digits, '-' and '_'", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// requestCheck is the outcome of checking a booking request against the
// property collaborator
type requestCheck struct {
	problems  []*domain.DomainError
	property  *domain.Property
	roomTypes map[string]*domain.RoomType
}

func (c *requestCheck) add(err *domain.DomainError) {
	c.problems = append(c.problems, err)
}

// first returns the first problem in check order
func (c *requestCheck) first() error {
	if len(c.problems) == 0 {
		return nil
	}
	return c.problems[0]
}

// checkRequest runs every booking request rule and collects the problems.
// Only infrastructure failures are returned as errors.
func (m *Manager) checkRequest(ctx context.Context, req CreateBookingRequest) (*requestCheck, error) {
	check := &requestCheck{roomTypes: make(map[string]*domain.RoomType)}

	// Dates come first so an inverted range is reported regardless of other fields
	switch {
	case req.CheckIn.IsZero():
		check.add(domain.NewValidationError("checkInDate", "checkInDate is required"))
	case req.CheckOut.IsZero():
		check.add(domain.NewValidationError("checkOutDate", "checkOutDate is required"))
	case !domain.Day(req.CheckOut).After(domain.Day(req.CheckIn)):
		check.add(domain.NewValidationError("checkOutDate", "Check-out date must be after check-in date"))
	case domain.Day(req.CheckIn).Before(domain.Day(m.now())):
		check.add(domain.NewValidationError("checkInDate", "Check-in date cannot be in the past"))
	}

	if err := m.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("failed to validate booking request: %w", err)
		}
		for _, fe := range verrs {
			check.add(domain.NewValidationError(fieldPath(fe), validationMessage(fe)))
		}
	}

	if req.PropertyID == "" {
		return check, nil
	}
	property, err := m.properties.GetProperty(ctx, req.PropertyID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		check.add(domain.NewNotFoundError("Property", req.PropertyID))
		return check, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	check.property = property
	if !property.IsActive() {
		check.add(domain.NewValidationError("propertyId", fmt.Sprintf("Property %s is not accepting bookings", property.ID)))
	}

	for i, room := range req.Rooms {
		if room.RoomTypeID == "" {
			continue
		}
		field := fmt.Sprintf("rooms[%d]", i)
		roomType, err := m.properties.GetRoomType(ctx, room.RoomTypeID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			check.add(domain.NewNotFoundError("Room type", room.RoomTypeID))
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to load room type: %w", err)
		}
		if roomType.PropertyID != property.ID {
			nf := domain.NewNotFoundError("Room type", room.RoomTypeID)
			nf.Details = fmt.Sprintf("ID: %s (not a room type of property %s)", room.RoomTypeID, property.ID)
			check.add(nf)
			continue
		}
		if !roomType.IsActive {
			check.add(domain.NewValidationError(field+".roomTypeId", fmt.Sprintf("Room type %s is not available", roomType.ID)))
		}
		if roomType.MaxOccupancy > 0 && room.GuestsPerRoom > roomType.MaxOccupancy {
			check.add(domain.NewValidationError(field+".guestsPerRoom",
				fmt.Sprintf("%d guests exceed the maximum occupancy of %d for room type %s", room.GuestsPerRoom, roomType.MaxOccupancy, roomType.ID)))
		}
		check.roomTypes[roomType.ID] = roomType
	}
	return check, nil
}

// ValidateBookingRequest checks a request without creating anything and
// reports every problem rather than the first one
func (m *Manager) ValidateBookingRequest(ctx context.Context, req CreateBookingRequest) (*ValidationResult, error) {
	check, err := m.checkRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &ValidationResult{IsValid: len(check.problems) == 0, Errors: []ValidationIssue{}}
	for _, p := range check.problems {
		field := p.Field
		if field == "" && p.Code == domain.ErrCodeNotFound {
			field = "rooms"
			if strings.HasPrefix(p.Message, "Property") {
				field = "propertyId"
			}
		}
		msg := p.Message
		if p.Details != "" {
			msg = fmt.Sprintf("%s (%s)", p.Message, p.Details)
		}
		result.Errors = append(result.Errors, ValidationIssue{Field: field, Code: p.Code, Message: msg})
	}
	return result, nil
}
