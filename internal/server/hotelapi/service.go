package hotelapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/jia-app/hotelservice/internal/booking"
	"github.com/jia-app/hotelservice/internal/domain"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "hotel.v1.HotelService"

// FullMethod returns the gRPC path of a method of the hotel service
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// BookingRef names a booking by ID
type BookingRef struct {
	BookingID string `json:"bookingId"`
}

// ConfirmationRef names a booking by its confirmation number
type ConfirmationRef struct {
	ConfirmationNumber string `json:"confirmationNumber"`
}

// StatusUpdate requests a status change
type StatusUpdate struct {
	BookingID string               `json:"bookingId"`
	Status    domain.BookingStatus `json:"status"`
	ChangedBy string               `json:"changedBy"`
}

// CancelBookingRequest cancels a booking
type CancelBookingRequest struct {
	BookingID string `json:"bookingId"`
	booking.CancelRequest
}

// ModifyBookingRequest quotes or applies a change to a booking
type ModifyBookingRequest struct {
	BookingID string `json:"bookingId"`
	booking.ModificationRequest
}

// PropertyRef scopes a list call to a property
type PropertyRef struct {
	PropertyID string `json:"propertyId"`
}

// IDRef names a configuration entry
type IDRef struct {
	ID string `json:"id"`
}

// Empty is returned by calls that have no result
type Empty struct{}

// List wraps the items of a list call
type List[T any] struct {
	Items []T `json:"items"`
}

// HotelServiceServer is the server API of the hotel service
type HotelServiceServer interface {
	CalculatePrice(context.Context, *domain.PriceRequest) (*domain.PriceCalculationResult, error)

	ValidateBookingRequest(context.Context, *booking.CreateBookingRequest) (*booking.ValidationResult, error)
	CreateBooking(context.Context, *booking.CreateBookingRequest) (*booking.CreateBookingResult, error)
	ProcessBookingConfirmation(context.Context, *BookingRef) (*booking.ConfirmationResult, error)
	UpdateBookingStatus(context.Context, *StatusUpdate) (*domain.Booking, error)
	CancelBooking(context.Context, *CancelBookingRequest) (*booking.CancellationResult, error)
	ValidateBookingModification(context.Context, *ModifyBookingRequest) (*booking.ModificationQuote, error)
	ModifyBooking(context.Context, *ModifyBookingRequest) (*booking.ModificationResult, error)
	GetBooking(context.Context, *BookingRef) (*domain.Booking, error)
	GetBookingByConfirmationNumber(context.Context, *ConfirmationRef) (*domain.Booking, error)
	ListBookingHistory(context.Context, *BookingRef) (*List[domain.BookingHistory], error)

	CreateSeasonalRate(context.Context, *domain.SeasonalRate) (*domain.SeasonalRate, error)
	UpdateSeasonalRate(context.Context, *domain.SeasonalRate) (*domain.SeasonalRate, error)
	DeleteSeasonalRate(context.Context, *IDRef) (*Empty, error)
	ListSeasonalRates(context.Context, *PropertyRef) (*List[domain.SeasonalRate], error)

	CreateDynamicRule(context.Context, *domain.DynamicPricingRule) (*domain.DynamicPricingRule, error)
	UpdateDynamicRule(context.Context, *domain.DynamicPricingRule) (*domain.DynamicPricingRule, error)
	DeleteDynamicRule(context.Context, *IDRef) (*Empty, error)
	ListDynamicRules(context.Context, *PropertyRef) (*List[domain.DynamicPricingRule], error)

	CreatePromotion(context.Context, *domain.Promotion) (*domain.Promotion, error)
	UpdatePromotion(context.Context, *domain.Promotion) (*domain.Promotion, error)
	DeletePromotion(context.Context, *IDRef) (*Empty, error)
	ListPromotions(context.Context, *PropertyRef) (*List[domain.Promotion], error)

	CreateTaxConfiguration(context.Context, *domain.TaxConfiguration) (*domain.TaxConfiguration, error)
	UpdateTaxConfiguration(context.Context, *domain.TaxConfiguration) (*domain.TaxConfiguration, error)
	DeleteTaxConfiguration(context.Context, *IDRef) (*Empty, error)
	ListTaxConfigurations(context.Context, *PropertyRef) (*List[domain.TaxConfiguration], error)
}

// ServiceDesc registers a HotelServiceServer with a grpc.Server
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HotelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CalculatePrice", HotelServiceServer.CalculatePrice),

		unary("ValidateBookingRequest", HotelServiceServer.ValidateBookingRequest),
		unary("CreateBooking", HotelServiceServer.CreateBooking),
		unary("ProcessBookingConfirmation", HotelServiceServer.ProcessBookingConfirmation),
		unary("UpdateBookingStatus", HotelServiceServer.UpdateBookingStatus),
		unary("CancelBooking", HotelServiceServer.CancelBooking),
		unary("ValidateBookingModification", HotelServiceServer.ValidateBookingModification),
		unary("ModifyBooking", HotelServiceServer.ModifyBooking),
		unary("GetBooking", HotelServiceServer.GetBooking),
		unary("GetBookingByConfirmationNumber", HotelServiceServer.GetBookingByConfirmationNumber),
		unary("ListBookingHistory", HotelServiceServer.ListBookingHistory),

		unary("CreateSeasonalRate", HotelServiceServer.CreateSeasonalRate),
		unary("UpdateSeasonalRate", HotelServiceServer.UpdateSeasonalRate),
		unary("DeleteSeasonalRate", HotelServiceServer.DeleteSeasonalRate),
		unary("ListSeasonalRates", HotelServiceServer.ListSeasonalRates),

		unary("CreateDynamicRule", HotelServiceServer.CreateDynamicRule),
		unary("UpdateDynamicRule", HotelServiceServer.UpdateDynamicRule),
		unary("DeleteDynamicRule", HotelServiceServer.DeleteDynamicRule),
		unary("ListDynamicRules", HotelServiceServer.ListDynamicRules),

		unary("CreatePromotion", HotelServiceServer.CreatePromotion),
		unary("UpdatePromotion", HotelServiceServer.UpdatePromotion),
		unary("DeletePromotion", HotelServiceServer.DeletePromotion),
		unary("ListPromotions", HotelServiceServer.ListPromotions),

		unary("CreateTaxConfiguration", HotelServiceServer.CreateTaxConfiguration),
		unary("UpdateTaxConfiguration", HotelServiceServer.UpdateTaxConfiguration),
		unary("DeleteTaxConfiguration", HotelServiceServer.DeleteTaxConfiguration),
		unary("ListTaxConfigurations", HotelServiceServer.ListTaxConfigurations),
	},
	Streams: []grpc.StreamDesc{},
}

// unary builds the method handler the way generated code does: decode the
// request, then run call behind the server's interceptor chain
func unary[Req, Resp any](name string, call func(HotelServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HotelServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(HotelServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
