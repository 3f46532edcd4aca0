package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/billing"
	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/notification"
	"github.com/jia-app/hotelservice/internal/repository"
	"github.com/jia-app/hotelservice/internal/tracing"
)

// SystemActor is recorded as the author of automatic transitions
const SystemActor = "system"

// Pricer quotes a stay
type Pricer interface {
	CalculatePrice(ctx context.Context, req domain.PriceRequest) (*domain.PriceCalculationResult, error)
}

// RefundProcessor sends a queued refund to the payment gateway
type RefundProcessor interface {
	ProcessRefund(ctx context.Context, refund domain.PendingRefund) error
}

// Config holds lifecycle policy defaults
type Config struct {
	Deposit          domain.DepositPolicy
	DefaultPolicy    domain.CancellationPolicy // used when a property has none
	CheckInHour      int                       // hour of day (UTC) a stay starts
	CaptureOnConfirm bool
	NotifyTimeout    time.Duration
}

// Dependencies are the collaborators of the manager
type Dependencies struct {
	Store    repository.Store
	Pricer   Pricer
	Gateway  billing.Gateway
	Notifier notification.Service
	Refunds  RefundProcessor // optional; refunds then wait for the outbox worker
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager drives bookings through their lifecycle. Every status change is a
// conditional write on the status read before it, so concurrent callers
// cannot both win.
type Manager struct {
	tx         repository.TxManager
	bookings   repository.BookingRepository
	properties repository.PropertyRepository
	promotions repository.PromotionRepository
	policies   repository.CancellationPolicyRepository
	refundRepo repository.RefundRepository
	pricer     Pricer
	gateway    billing.Gateway
	notifier   notification.Service
	refunds    RefundProcessor
	calculator *RefundCalculator
	validate   *validator.Validate
	cfg        Config
	now        func() time.Time
	logger     *zap.Logger

	// in-flight notifications
	pending sync.WaitGroup
}

// NewManager creates a lifecycle manager
func NewManager(deps Dependencies, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewNoopNotifier(logger)
	}
	m := &Manager{
		tx:         deps.Store,
		bookings:   deps.Store.Bookings(),
		properties: deps.Store.Properties(),
		promotions: deps.Store.Promotions(),
		policies:   deps.Store.CancellationPolicies(),
		refundRepo: deps.Store.Refunds(),
		pricer:     deps.Pricer,
		gateway:    deps.Gateway,
		notifier:   deps.Notifier,
		refunds:    deps.Refunds,
		validate:   newValidator(),
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.calculator = NewRefundCalculator(func() time.Time { return m.now() }, cfg.CheckInHour)
	return m
}

// RefundCalculator exposes the calculator used for cancellations
func (m *Manager) RefundCalculator() *RefundCalculator {
	return m.calculator
}

// Wait blocks until every dispatched notification has finished
func (m *Manager) Wait() {
	m.pending.Wait()
}

// CreateBookingResult is returned by CreateBooking
type CreateBookingResult struct {
	Booking            *domain.Booking `json:"booking"`
	ConfirmationNumber string          `json:"confirmationNumber"`
}

// CreateBooking validates and prices a request, then stores a PENDING
// booking with its rooms, first history entry and promotion redemptions in
// one transaction
func (m *Manager) CreateBooking(ctx context.Context, req CreateBookingRequest) (result *CreateBookingResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking.CreateBooking",
		attribute.String("property_id", req.PropertyID),
		attribute.Int("rooms", len(req.Rooms)))
	defer func() { tracing.EndSpan(span, err) }()

	check, err := m.checkRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := check.first(); err != nil {
		return nil, err
	}

	now := m.now()
	pricing, err := m.quote(ctx, req, now, nil)
	if err != nil {
		return nil, err
	}

	b := domain.Booking{
		ID:                 uuid.NewString(),
		ConfirmationNumber: NewConfirmationNumber(now),
		PropertyID:         req.PropertyID,
		GuestID:            req.GuestID,
		CheckIn:            domain.Day(req.CheckIn),
		CheckOut:           domain.Day(req.CheckOut),
		Nights:             domain.NightsBetween(req.CheckIn, req.CheckOut),
		Pricing:            pricing,
		Status:             domain.BookingPending,
		PaymentStatus:      domain.PaymentPending,
		PaymentMethodID:    req.PaymentMethodID,
		RefundAmount:       decimal.Zero,
		CancellationFee:    decimal.Zero,
		BookingSource:      req.BookingSource,
		CorporateCode:      req.CorporateCode,
		LoyaltyMemberID:    req.LoyaltyMemberID,
		SpecialRequests:    req.SpecialRequests,
		BookedAt:           now,
		UpdatedAt:          now,
		Version:            1,
	}
	b.Rooms = bookedRooms(b.ID, req.Rooms, pricing)
	b.DepositAmount = CalculateDeposit(b, m.cfg.Deposit)

	err = m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := m.bookings.CreateBooking(ctx, b); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.NewConflictError("Booking already exists", b.ConfirmationNumber)
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}
		entry := m.historyEntry(b.ID, "", domain.BookingPending, req.GuestID, "booking created", nil)
		if err := m.bookings.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to append booking history: %w", err)
		}
		return m.redeem(ctx, b, nil)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingCreated(b.PropertyID, b.Pricing.Currency, b.Pricing.TotalAmount.InexactFloat64())
	log.Info(ctx, "Booking created",
		zap.String("booking_id", b.ID),
		zap.String("confirmation_number", b.ConfirmationNumber),
		zap.String("property_id", b.PropertyID),
		zap.String("total_amount", b.Pricing.TotalAmount.String()),
		zap.String("currency", b.Pricing.Currency),
		zap.String("deposit_amount", b.DepositAmount.String()))

	return &CreateBookingResult{Booking: &b, ConfirmationNumber: b.ConfirmationNumber}, nil
}

// redeem records a redemption for every promotion applied to b that is not
// already held. It must run inside the booking transaction.
func (m *Manager) redeem(ctx context.Context, b domain.Booking, held []string) error {
	for _, promo := range b.Pricing.AppliedPromotions {
		if slices.Contains(held, promo.PromotionID) {
			continue
		}
		err := m.promotions.RecordRedemption(ctx, promo.PromotionID, b.GuestID, b.ID)
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return domain.NewConflictError("Promotion usage limit reached", promotionLabel(promo))
		case err != nil:
			return fmt.Errorf("failed to record promotion redemption: %w", err)
		}
	}
	return nil
}

// quote prices every room line and folds them into one snapshot. held lists
// the promotions the booking being re-priced already redeemed.
func (m *Manager) quote(ctx context.Context, req CreateBookingRequest, now time.Time, held []string) (domain.PricingSnapshot, error) {
	snap := domain.PricingSnapshot{
		BaseAmount:     decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		FeeAmount:      decimal.Zero,
		TotalAmount:    decimal.Zero,
		QuotedAt:       now,
	}
	promoIndex := make(map[string]int)

	for i, room := range req.Rooms {
		res, err := m.pricer.CalculatePrice(ctx, domain.PriceRequest{
			PropertyID:      req.PropertyID,
			RoomTypeID:      room.RoomTypeID,
			CheckIn:         req.CheckIn,
			CheckOut:        req.CheckOut,
			GuestCount:      room.GuestsPerRoom * room.quantity(),
			RoomQuantity:    room.quantity(),
			PromotionCodes:  req.PromotionCodes,
			CorporateCode:   req.CorporateCode,
			LoyaltyMemberID: req.LoyaltyMemberID,
			BookingSource:    req.BookingSource,
			GuestID:          req.GuestID,
			HeldPromotionIDs: held,
		})
		if err != nil {
			return snap, err
		}

		if i == 0 {
			snap.Currency = res.Currency
			snap.ValidUntil = res.ValidUntil
		} else if res.Currency != snap.Currency {
			return snap, domain.NewValidationError("rooms",
				fmt.Sprintf("Room types are priced in different currencies (%s and %s)", snap.Currency, res.Currency))
		}
		if res.ValidUntil.Before(snap.ValidUntil) {
			snap.ValidUntil = res.ValidUntil
		}

		snap.BaseAmount = snap.BaseAmount.Add(res.BaseAmount)
		snap.DiscountAmount = snap.DiscountAmount.Add(res.DiscountAmount)
		snap.TaxAmount = snap.TaxAmount.Add(res.TaxAmount)
		snap.FeeAmount = snap.FeeAmount.Add(res.FeeAmount)
		snap.TotalAmount = snap.TotalAmount.Add(res.TotalAmount)
		snap.Lines = append(snap.Lines, *res)

		for _, applied := range res.AppliedPromotions {
			if idx, ok := promoIndex[applied.PromotionID]; ok {
				snap.AppliedPromotions[idx].Discount = snap.AppliedPromotions[idx].Discount.Add(applied.Discount)
				continue
			}
			promoIndex[applied.PromotionID] = len(snap.AppliedPromotions)
			snap.AppliedPromotions = append(snap.AppliedPromotions, applied)
		}
	}
	return snap, nil
}

func bookedRooms(bookingID string, rooms []RoomRequest, pricing domain.PricingSnapshot) []domain.BookedRoom {
	out := make([]domain.BookedRoom, 0, len(rooms))
	for i, room := range rooms {
		br := domain.BookedRoom{
			ID:            uuid.NewString(),
			BookingID:     bookingID,
			RoomTypeID:    room.RoomTypeID,
			Quantity:      room.quantity(),
			GuestsPerRoom: room.GuestsPerRoom,
			TotalAmount:   decimal.Zero,
		}
		if i < len(pricing.Lines) {
			br.TotalAmount = pricing.Lines[i].TotalAmount
		}
		out = append(out, br)
	}
	return out
}

func promotionLabel(p domain.AppliedPromotion) string {
	if p.Code != "" {
		return p.Code
	}
	return p.PromotionID
}

// ConfirmationResult is returned by ProcessBookingConfirmation
type ConfirmationResult struct {
	Booking            *domain.Booking        `json:"booking"`
	ConfirmationNumber string                 `json:"confirmationNumber"`
	Payment            *billing.PaymentResult `json:"paymentResult"`
}

// ProcessBookingConfirmation authorizes the booking total and moves a
// PENDING booking to CONFIRMED. A failed authorization leaves the booking
// PENDING. A confirmation lost to a concurrent writer releases its
// authorization unless the winner holds the same one.
func (m *Manager) ProcessBookingConfirmation(ctx context.Context, bookingID string) (result *ConfirmationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking.ProcessBookingConfirmation", attribute.String("booking_id", bookingID))
	defer func() { tracing.EndSpan(span, err) }()

	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingPending {
		return nil, domain.NewConflictError("Booking cannot be confirmed",
			fmt.Sprintf("booking %s is %s", b.ID, b.Status))
	}

	payment, err := m.authorize(ctx, b)
	if err != nil {
		if perr := m.bookings.UpdatePaymentStatus(ctx, b.ID, domain.PaymentFailed, ""); perr != nil {
			log.Error(ctx, "Failed to record payment failure", zap.String("booking_id", b.ID), zap.Error(perr))
		}
		metrics.RecordError("payment_authorization", "booking")
		log.Warn(ctx, "Booking payment failed",
			zap.String("booking_id", b.ID),
			zap.Error(err))
		return nil, domain.NewPaymentFailedError(err.Error(), err)
	}

	now := m.now()
	var confirmed domain.Booking
	err = m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := m.bookings.GetBooking(ctx, b.ID)
		if err != nil {
			return bookingStoreError(err, b.ID)
		}
		confirmed = current.Clone()
		confirmed.Status = domain.BookingConfirmed
		confirmed.PaymentStatus = payment.Status
		confirmed.PaymentTransactionID = payment.TransactionID
		confirmed.ConfirmedAt = &now
		confirmed.UpdatedAt = now
		confirmed.Version++

		if err := m.bookings.UpdateBooking(ctx, confirmed, domain.BookingPending, current.Version); err != nil {
			return transitionError(err, b.ID, domain.BookingPending, domain.BookingConfirmed)
		}
		entry := m.historyEntry(b.ID, domain.BookingPending, domain.BookingConfirmed, SystemActor, "payment authorized", map[string]any{
			"transaction_id": payment.TransactionID,
			"payment_status": string(payment.Status),
		})
		if err := m.bookings.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to append booking history: %w", err)
		}
		return nil
	})
	if err != nil {
		m.releaseLostAuthorization(ctx, b.ID, payment.TransactionID)
		return nil, err
	}

	metrics.RecordTransition(string(domain.BookingPending), string(domain.BookingConfirmed))
	log.Info(ctx, "Booking confirmed",
		zap.String("booking_id", confirmed.ID),
		zap.String("confirmation_number", confirmed.ConfirmationNumber),
		zap.String("transaction_id", payment.TransactionID),
		zap.String("payment_status", string(payment.Status)))

	m.notify(ctx, notification.TypeConfirmation, confirmed, "")

	return &ConfirmationResult{
		Booking:            &confirmed,
		ConfirmationNumber: confirmed.ConfirmationNumber,
		Payment:            payment,
	}, nil
}

// authorize holds the booking total, capturing it at once when configured.
// Anything short of an authorization or capture is a failure.
func (m *Manager) authorize(ctx context.Context, b *domain.Booking) (*billing.PaymentResult, error) {
	payment, err := m.gateway.Authorize(ctx, billing.AuthorizeRequest{
		BookingID:       b.ID,
		Amount:          b.Pricing.TotalAmount,
		Currency:        b.Pricing.Currency,
		PaymentMethodID: b.PaymentMethodID,
		Description:     "Booking " + b.ConfirmationNumber,
		IdempotencyKey:  billing.IdempotencyKey(b.ID, billing.OpAuthorize),
	})
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentAuthorized && payment.Status != domain.PaymentCaptured {
		m.voidAuthorization(ctx, b.ID, payment.TransactionID)
		return nil, fmt.Errorf("%w: payment is %s", billing.ErrPaymentDeclined, payment.Status)
	}
	if !m.cfg.CaptureOnConfirm || payment.Status == domain.PaymentCaptured {
		return payment, nil
	}

	captured, err := m.gateway.Capture(ctx, payment.TransactionID, b.Pricing.TotalAmount, b.Pricing.Currency,
		billing.IdempotencyKey(b.ID, billing.OpCapture))
	if err != nil {
		m.voidAuthorization(ctx, b.ID, payment.TransactionID)
		return nil, err
	}
	return captured, nil
}

// releaseLostAuthorization voids an authorization whose confirmation did not
// commit. The idempotent authorize call hands concurrent confirmations the
// same transaction, so the void is skipped when the stored booking holds it.
func (m *Manager) releaseLostAuthorization(ctx context.Context, bookingID, transactionID string) {
	current, err := m.bookings.GetBooking(ctx, bookingID)
	if err == nil && current.PaymentTransactionID == transactionID &&
		(current.PaymentStatus == domain.PaymentAuthorized || current.PaymentStatus == domain.PaymentCaptured) {
		return
	}
	m.voidAuthorization(ctx, bookingID, transactionID)
}

// voidAuthorization releases a hold. Failures are logged only.
func (m *Manager) voidAuthorization(ctx context.Context, bookingID, transactionID string) bool {
	if transactionID == "" {
		return false
	}
	key := billing.IdempotencyKey(bookingID, billing.OpVoid) + ":" + transactionID
	if _, err := m.gateway.Void(ctx, transactionID, key); err != nil {
		metrics.RecordError("payment_void", "booking")
		log.Error(ctx, "Failed to void payment authorization",
			zap.String("booking_id", bookingID),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return false
	}
	return true
}

// UpdateBookingStatus moves a booking to status after checking the
// transition table. Cancellation and first confirmation go through their
// own operations so that money moves with them.
func (m *Manager) UpdateBookingStatus(ctx context.Context, bookingID string, status domain.BookingStatus, changedBy string) (result *domain.Booking, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking.UpdateBookingStatus",
		attribute.String("booking_id", bookingID),
		attribute.String("status", string(status)))
	defer func() { tracing.EndSpan(span, err) }()

	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown booking status %q", status))
	}
	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(b.Status, status); err != nil {
		return nil, err
	}

	switch {
	case status == domain.BookingCancelled:
		res, err := m.CancelBooking(ctx, bookingID, CancelRequest{Reason: "status update", CancelledBy: changedBy})
		if err != nil {
			return nil, err
		}
		return res.Booking, nil
	case status == domain.BookingConfirmed && b.Status == domain.BookingPending:
		res, err := m.ProcessBookingConfirmation(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return res.Booking, nil
	}
	return m.transition(ctx, b, status, changedBy, "", nil)
}

// transition performs a table-checked status change. Checking in captures an
// authorized payment inside the same transaction.
func (m *Manager) transition(ctx context.Context, b *domain.Booking, to domain.BookingStatus, changedBy, reason string, metadata map[string]any) (*domain.Booking, error) {
	if err := ValidateTransition(b.Status, to); err != nil {
		return nil, err
	}
	if changedBy == "" {
		changedBy = SystemActor
	}

	updated := b.Clone()
	now := m.now()

	switch to {
	case domain.BookingConfirmed:
		if updated.ConfirmedAt == nil {
			updated.ConfirmedAt = &now
		}
	case domain.BookingCheckedIn:
		updated.CheckedInAt = &now
	case domain.BookingCheckedOut:
		updated.CheckedOutAt = &now
	}
	updated.Status = to
	updated.UpdatedAt = now
	updated.Version++

	err := m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := m.bookings.UpdateBooking(ctx, updated, b.Status, b.Version); err != nil {
			return transitionError(err, b.ID, b.Status, to)
		}
		if err := m.bookings.AppendHistory(ctx, m.historyEntry(b.ID, b.Status, to, changedBy, reason, metadata)); err != nil {
			return fmt.Errorf("failed to append booking history: %w", err)
		}
		if to == domain.BookingCheckedIn && b.PaymentStatus == domain.PaymentAuthorized {
			return m.captureAtCheckIn(ctx, &updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(b.Status), string(to))
	log.Info(ctx, "Booking status changed",
		zap.String("booking_id", b.ID),
		zap.String("from", string(b.Status)),
		zap.String("to", string(to)),
		zap.String("changed_by", changedBy))

	if to != domain.BookingCheckedIn && to != domain.BookingCheckedOut {
		m.notify(ctx, notification.TypeUpdate, updated, reason)
	}
	return &updated, nil
}

// captureAtCheckIn takes the authorized total once the check-in write has
// won. A failed capture rolls the check-in back.
func (m *Manager) captureAtCheckIn(ctx context.Context, b *domain.Booking) error {
	captured, err := m.gateway.Capture(ctx, b.PaymentTransactionID, b.Pricing.TotalAmount, b.Pricing.Currency,
		billing.IdempotencyKey(b.ID, billing.OpCapture))
	if err != nil {
		return domain.NewPaymentFailedError("failed to capture payment at check-in", err)
	}
	if err := m.bookings.UpdatePaymentStatus(ctx, b.ID, captured.Status, ""); err != nil {
		return fmt.Errorf("failed to record captured payment: %w", err)
	}
	b.PaymentStatus = captured.Status
	b.Version++
	return nil
}

// GetBooking loads a booking by ID
func (m *Manager) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return m.getBooking(ctx, bookingID)
}

// GetBookingByConfirmationNumber loads a booking by its guest-facing reference
func (m *Manager) GetBookingByConfirmationNumber(ctx context.Context, number string) (*domain.Booking, error) {
	if !IsConfirmationNumber(number) {
		return nil, domain.NewValidationError("confirmationNumber", "Confirmation number is malformed")
	}
	b, err := m.bookings.GetBookingByConfirmationNumber(ctx, number)
	if err != nil {
		return nil, bookingStoreError(err, number)
	}
	return b, nil
}

// ListHistory returns the status history of a booking, oldest first
func (m *Manager) ListHistory(ctx context.Context, bookingID string) ([]domain.BookingHistory, error) {
	if _, err := m.getBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	history, err := m.bookings.ListHistory(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking history: %w", err)
	}
	return history, nil
}

func (m *Manager) getBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, domain.NewValidationError("bookingId", "bookingId is required")
	}
	b, err := m.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, bookingStoreError(err, bookingID)
	}
	return b, nil
}

func (m *Manager) historyEntry(bookingID string, from, to domain.BookingStatus, changedBy, reason string, metadata map[string]any) domain.BookingHistory {
	return domain.BookingHistory{
		ID:         uuid.NewString(),
		BookingID:  bookingID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  changedBy,
		Reason:     reason,
		Metadata:   metadata,
		ChangedAt:  m.now(),
	}
}

// notify dispatches a guest notification in the background. Its failure
// never affects the booking.
func (m *Manager) notify(ctx context.Context, t notification.Type, b domain.Booking, message string) {
	data := notification.NewBookingData(b, message)
	ctx = context.WithoutCancel(ctx)

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, m.cfg.NotifyTimeout)
		defer cancel()

		if _, err := m.send(ctx, t, data); err != nil {
			metrics.RecordError("notification", "booking")
			log.Warn(ctx, "Guest notification failed",
				zap.String("type", string(t)),
				zap.String("booking_id", data.BookingID),
				zap.Error(err))
		}
	}()
}

func (m *Manager) send(ctx context.Context, t notification.Type, data notification.BookingData) (*notification.Result, error) {
	switch t {
	case notification.TypeConfirmation:
		return m.notifier.SendBookingConfirmation(ctx, data)
	case notification.TypeReminder:
		return m.notifier.SendBookingReminder(ctx, data)
	default:
		return m.notifier.SendBookingUpdate(ctx, data)
	}
}

func bookingStoreError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewNotFoundError("Booking", id)
	}
	return fmt.Errorf("failed to load booking %s: %w", id, err)
}

func transitionError(err error, id string, from, to domain.BookingStatus) error {
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return domain.NewConflictError("Booking status changed concurrently",
			fmt.Sprintf("booking %s is no longer %s and cannot become %s", id, from, to))
	case errors.Is(err, repository.ErrNotFound):
		return domain.NewNotFoundError("Booking", id)
	default:
		return fmt.Errorf("failed to update booking %s: %w", id, err)
	}
}
