package hotelapi

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jia-app/hotelservice/internal/booking"
	"github.com/jia-app/hotelservice/internal/domain"
)

// Bookings is the booking lifecycle behind the service
type Bookings interface {
	ValidateBookingRequest(ctx context.Context, req booking.CreateBookingRequest) (*booking.ValidationResult, error)
	CreateBooking(ctx context.Context, req booking.CreateBookingRequest) (*booking.CreateBookingResult, error)
	ProcessBookingConfirmation(ctx context.Context, bookingID string) (*booking.ConfirmationResult, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus, changedBy string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, req booking.CancelRequest) (*booking.CancellationResult, error)
	ValidateBookingModification(ctx context.Context, bookingID string, req booking.ModificationRequest) (*booking.ModificationQuote, error)
	ModifyBooking(ctx context.Context, bookingID string, req booking.ModificationRequest) (*booking.ModificationResult, error)
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	GetBookingByConfirmationNumber(ctx context.Context, number string) (*domain.Booking, error)
	ListHistory(ctx context.Context, bookingID string) ([]domain.BookingHistory, error)
}

// Catalog manages one kind of property configuration
type Catalog[T any] interface {
	Create(ctx context.Context, item T) (*T, error)
	Update(ctx context.Context, item T) (*T, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, propertyID string) ([]T, error)
}

// Backends are the components a Server delegates to. Calls to a missing
// backend fail with Unimplemented.
type Backends struct {
	Pricer        booking.Pricer
	Bookings      Bookings
	SeasonalRates Catalog[domain.SeasonalRate]
	DynamicRules  Catalog[domain.DynamicPricingRule]
	Promotions    Catalog[domain.Promotion]
	Taxes         Catalog[domain.TaxConfiguration]
}

// Server implements HotelServiceServer
type Server struct {
	backends Backends
}

var _ HotelServiceServer = (*Server)(nil)

// NewServer creates a server over backends
func NewServer(backends Backends) *Server {
	return &Server{backends: backends}
}

func unimplemented(what string) error {
	return status.Errorf(codes.Unimplemented, "%s is not available", what)
}

func (s *Server) CalculatePrice(ctx context.Context, req *domain.PriceRequest) (*domain.PriceCalculationResult, error) {
	if s.backends.Pricer == nil {
		return nil, unimplemented("pricing")
	}
	return s.backends.Pricer.CalculatePrice(ctx, *req)
}

func (s *Server) bookings() (Bookings, error) {
	if s.backends.Bookings == nil {
		return nil, unimplemented("booking")
	}
	return s.backends.Bookings, nil
}

func (s *Server) ValidateBookingRequest(ctx context.Context, req *booking.CreateBookingRequest) (*booking.ValidationResult, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.ValidateBookingRequest(ctx, *req)
}

func (s *Server) CreateBooking(ctx context.Context, req *booking.CreateBookingRequest) (*booking.CreateBookingResult, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.CreateBooking(ctx, *req)
}

func (s *Server) ProcessBookingConfirmation(ctx context.Context, req *BookingRef) (*booking.ConfirmationResult, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.ProcessBookingConfirmation(ctx, req.BookingID)
}

func (s *Server) UpdateBookingStatus(ctx context.Context, req *StatusUpdate) (*domain.Booking, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.UpdateBookingStatus(ctx, req.BookingID, req.Status, req.ChangedBy)
}

func (s *Server) CancelBooking(ctx context.Context, req *CancelBookingRequest) (*booking.CancellationResult, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.CancelBooking(ctx, req.BookingID, req.CancelRequest)
}

func (s *Server) ValidateBookingModification(ctx context.Context, req *ModifyBookingRequest) (*booking.ModificationQuote, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.ValidateBookingModification(ctx, req.BookingID, req.ModificationRequest)
}

func (s *Server) ModifyBooking(ctx context.Context, req *ModifyBookingRequest) (*booking.ModificationResult, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.ModifyBooking(ctx, req.BookingID, req.ModificationRequest)
}

func (s *Server) GetBooking(ctx context.Context, req *BookingRef) (*domain.Booking, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.GetBooking(ctx, req.BookingID)
}

func (s *Server) GetBookingByConfirmationNumber(ctx context.Context, req *ConfirmationRef) (*domain.Booking, error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	return b.GetBookingByConfirmationNumber(ctx, req.ConfirmationNumber)
}

func (s *Server) ListBookingHistory(ctx context.Context, req *BookingRef) (*List[domain.BookingHistory], error) {
	b, err := s.bookings()
	if err != nil {
		return nil, err
	}
	history, err := b.ListHistory(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	return &List[domain.BookingHistory]{Items: history}, nil
}

// Configuration calls share one shape per operation

func create[T any](ctx context.Context, c Catalog[T], what string, item *T) (*T, error) {
	if c == nil {
		return nil, unimplemented(what)
	}
	return c.Create(ctx, *item)
}

func update[T any](ctx context.Context, c Catalog[T], what string, item *T) (*T, error) {
	if c == nil {
		return nil, unimplemented(what)
	}
	return c.Update(ctx, *item)
}

func remove[T any](ctx context.Context, c Catalog[T], what string, ref *IDRef) (*Empty, error) {
	if c == nil {
		return nil, unimplemented(what)
	}
	if err := c.Delete(ctx, ref.ID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func list[T any](ctx context.Context, c Catalog[T], what string, ref *PropertyRef) (*List[T], error) {
	if c == nil {
		return nil, unimplemented(what)
	}
	items, err := c.List(ctx, ref.PropertyID)
	if err != nil {
		return nil, err
	}
	return &List[T]{Items: items}, nil
}

func (s *Server) CreateSeasonalRate(ctx context.Context, req *domain.SeasonalRate) (*domain.SeasonalRate, error) {
	return create(ctx, s.backends.SeasonalRates, "seasonal rates", req)
}

func (s *Server) UpdateSeasonalRate(ctx context.Context, req *domain.SeasonalRate) (*domain.SeasonalRate, error) {
	return update(ctx, s.backends.SeasonalRates, "seasonal rates", req)
}

func (s *Server) DeleteSeasonalRate(ctx context.Context, req *IDRef) (*Empty, error) {
	return remove(ctx, s.backends.SeasonalRates, "seasonal rates", req)
}

func (s *Server) ListSeasonalRates(ctx context.Context, req *PropertyRef) (*List[domain.SeasonalRate], error) {
	return list(ctx, s.backends.SeasonalRates, "seasonal rates", req)
}

func (s *Server) CreateDynamicRule(ctx context.Context, req *domain.DynamicPricingRule) (*domain.DynamicPricingRule, error) {
	return create(ctx, s.backends.DynamicRules, "dynamic rules", req)
}

func (s *Server) UpdateDynamicRule(ctx context.Context, req *domain.DynamicPricingRule) (*domain.DynamicPricingRule, error) {
	return update(ctx, s.backends.DynamicRules, "dynamic rules", req)
}

func (s *Server) DeleteDynamicRule(ctx context.Context, req *IDRef) (*Empty, error) {
	return remove(ctx, s.backends.DynamicRules, "dynamic rules", req)
}

func (s *Server) ListDynamicRules(ctx context.Context, req *PropertyRef) (*List[domain.DynamicPricingRule], error) {
	return list(ctx, s.backends.DynamicRules, "dynamic rules", req)
}

func (s *Server) CreatePromotion(ctx context.Context, req *domain.Promotion) (*domain.Promotion, error) {
	return create(ctx, s.backends.Promotions, "promotions", req)
}

func (s *Server) UpdatePromotion(ctx context.Context, req *domain.Promotion) (*domain.Promotion, error) {
	return update(ctx, s.backends.Promotions, "promotions", req)
}

func (s *Server) DeletePromotion(ctx context.Context, req *IDRef) (*Empty, error) {
	return remove(ctx, s.backends.Promotions, "promotions", req)
}

func (s *Server) ListPromotions(ctx context.Context, req *PropertyRef) (*List[domain.Promotion], error) {
	return list(ctx, s.backends.Promotions, "promotions", req)
}

func (s *Server) CreateTaxConfiguration(ctx context.Context, req *domain.TaxConfiguration) (*domain.TaxConfiguration, error) {
	return create(ctx, s.backends.Taxes, "tax configurations", req)
}

func (s *Server) UpdateTaxConfiguration(ctx context.Context, req *domain.TaxConfiguration) (*domain.TaxConfiguration, error) {
	return update(ctx, s.backends.Taxes, "tax configurations", req)
}

func (s *Server) DeleteTaxConfiguration(ctx context.Context, req *IDRef) (*Empty, error) {
	return remove(ctx, s.backends.Taxes, "tax configurations", req)
}

func (s *Server) ListTaxConfigurations(ctx context.Context, req *PropertyRef) (*List[domain.TaxConfiguration], error) {
	return list(ctx, s.backends.Taxes, "tax configurations", req)
}
