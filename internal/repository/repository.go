package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jia-app/hotelservice/internal/domain"
)

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("record already exists")
	// ErrStatusConflict is returned by conditional booking writes when the
	// stored status no longer matches the expected one
	ErrStatusConflict = errors.New("booking status changed concurrently")
)

// PropertyRepository reads the property and room type collaborator data
type PropertyRepository interface {
	GetProperty(ctx context.Context, id string) (*domain.Property, error)
	GetRoomType(ctx context.Context, id string) (*domain.RoomType, error)
}

// RateRepository stores nightly rate records
type RateRepository interface {
	// ListRates returns rates of rateType for dates in [from, to)
	ListRates(ctx context.Context, propertyID, roomTypeID string, rateType domain.RateType, from, to time.Time) ([]domain.RateRecord, error)

	// UpsertRates inserts or replaces rates keyed by property, room type, date and rate type
	UpsertRates(ctx context.Context, rates []domain.RateRecord) error
}

// SeasonalRateRepository stores seasonal rates
type SeasonalRateRepository interface {
	CreateSeasonalRate(ctx context.Context, rate domain.SeasonalRate) error
	UpdateSeasonalRate(ctx context.Context, rate domain.SeasonalRate) error
	DeleteSeasonalRate(ctx context.Context, id string) error
	GetSeasonalRate(ctx context.Context, id string) (*domain.SeasonalRate, error)
	ListSeasonalRates(ctx context.Context, propertyID string) ([]domain.SeasonalRate, error)
}

// DynamicRuleRepository stores dynamic pricing rules
type DynamicRuleRepository interface {
	CreateDynamicRule(ctx context.Context, rule domain.DynamicPricingRule) error
	UpdateDynamicRule(ctx context.Context, rule domain.DynamicPricingRule) error
	DeleteDynamicRule(ctx context.Context, id string) error
	GetDynamicRule(ctx context.Context, id string) (*domain.DynamicPricingRule, error)
	ListDynamicRules(ctx context.Context, propertyID string) ([]domain.DynamicPricingRule, error)
}

// PromotionRepository stores promotions and their redemptions
type PromotionRepository interface {
	CreatePromotion(ctx context.Context, promotion domain.Promotion) error
	UpdatePromotion(ctx context.Context, promotion domain.Promotion) error
	DeletePromotion(ctx context.Context, id string) error
	GetPromotion(ctx context.Context, id string) (*domain.Promotion, error)
	GetPromotionByCode(ctx context.Context, propertyID, code string) (*domain.Promotion, error)
	ListPromotions(ctx context.Context, propertyID string) ([]domain.Promotion, error)

	// RecordRedemption increments the usage counter and remembers the guest.
	// It fails with ErrStatusConflict when the total quota is already used.
	RecordRedemption(ctx context.Context, promotionID, guestID, bookingID string) error
	CountGuestRedemptions(ctx context.Context, promotionID, guestID string) (int, error)
}

// TaxRepository stores tax and fee configurations
type TaxRepository interface {
	CreateTaxConfiguration(ctx context.Context, tax domain.TaxConfiguration) error
	UpdateTaxConfiguration(ctx context.Context, tax domain.TaxConfiguration) error
	DeleteTaxConfiguration(ctx context.Context, id string) error
	GetTaxConfiguration(ctx context.Context, id string) (*domain.TaxConfiguration, error)
	ListTaxConfigurations(ctx context.Context, propertyID string) ([]domain.TaxConfiguration, error)
}

// OccupancyRepository reads inventory snapshots. A missing snapshot is
// returned as nil without error.
type OccupancyRepository interface {
	GetOccupancy(ctx context.Context, propertyID string, date time.Time) (*domain.OccupancyData, error)
}

// BookingRepository stores bookings and their history
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking domain.Booking) error
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	GetBookingByConfirmationNumber(ctx context.Context, number string) (*domain.Booking, error)

	// UpdateBooking replaces the booking only if its stored status and
	// version still equal the expected ones, returning ErrStatusConflict
	// otherwise. Rooms are replaced as part of the same write.
	UpdateBooking(ctx context.Context, booking domain.Booking, expectedStatus domain.BookingStatus, expectedVersion int) error

	// UpdatePaymentStatus changes payment fields without touching the
	// lifecycle status. It bumps the version like any other write.
	UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, transactionID string) error

	ListBookingsByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error)

	AppendHistory(ctx context.Context, entry domain.BookingHistory) error
	ListHistory(ctx context.Context, bookingID string) ([]domain.BookingHistory, error)
}

// CancellationPolicyRepository looks up the policy of a property
type CancellationPolicyRepository interface {
	GetCancellationPolicy(ctx context.Context, propertyID string) (*domain.CancellationPolicy, error)
}

// RefundRepository is the outbox of refunds waiting for the payment gateway
type RefundRepository interface {
	EnqueueRefund(ctx context.Context, refund domain.PendingRefund) error
	GetRefund(ctx context.Context, id string) (*domain.PendingRefund, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]domain.PendingRefund, error)
	MarkRefundSucceeded(ctx context.Context, id string) error
	// MarkRefundAttemptFailed records a failed attempt. After maxAttempts the
	// refund is marked FAILED and no longer listed as pending.
	MarkRefundAttemptFailed(ctx context.Context, id, lastError string, maxAttempts int) error
}

// TxManager runs fn inside a transaction carried by the returned context
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store aggregates every repository of the service
type Store interface {
	TxManager
	Properties() PropertyRepository
	Rates() RateRepository
	SeasonalRates() SeasonalRateRepository
	DynamicRules() DynamicRuleRepository
	Promotions() PromotionRepository
	Taxes() TaxRepository
	Occupancy() OccupancyRepository
	Bookings() BookingRepository
	CancellationPolicies() CancellationPolicyRepository
	Refunds() RefundRepository
	Ping(ctx context.Context) error
	Close() error
}
