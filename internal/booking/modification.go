package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/notification"
	"github.com/jia-app/hotelservice/internal/tracing"
)

// ModificationRequest changes the dates or rooms of a booking. Nil or empty
// fields keep their current value.
type ModificationRequest struct {
	CheckIn   *time.Time    `json:"checkInDate,omitempty"`
	CheckOut  *time.Time    `json:"checkOutDate,omitempty"`
	Rooms     []RoomRequest `json:"rooms,omitempty"`
	ChangedBy string        `json:"changedBy,omitempty"`
}

// ModificationQuote prices a proposed change against the current booking
type ModificationQuote struct {
	BookingID           string                 `json:"bookingId"`
	CheckIn             time.Time              `json:"checkInDate"`
	CheckOut            time.Time              `json:"checkOutDate"`
	Nights              int                    `json:"nights"`
	Rooms               []RoomRequest          `json:"rooms"`
	Current             domain.PricingSnapshot `json:"currentPricing"`
	Proposed            domain.PricingSnapshot `json:"proposedPricing"`
	PriceDifference     decimal.Decimal        `json:"priceDifference"`
	ModificationFee     decimal.Decimal        `json:"modificationFee"`
	AmountDue           decimal.Decimal        `json:"amountDue"`
	DatesChanged        bool                   `json:"datesChanged"`
	RoomsChanged        bool                   `json:"roomsChanged"`
	WithinPenaltyWindow bool                   `json:"withinPenaltyWindow"`
}

// ModificationResult is returned by ModifyBooking
type ModificationResult struct {
	Booking *domain.Booking    `json:"booking"`
	Quote   *ModificationQuote `json:"quote"`
}

// modifiedStatus is the status a booking takes after a change
func modifiedStatus(status domain.BookingStatus) (domain.BookingStatus, bool) {
	switch status {
	case domain.BookingPending:
		return domain.BookingPending, true
	case domain.BookingConfirmed, domain.BookingModified:
		return domain.BookingModified, true
	default:
		return "", false
	}
}

// ValidateBookingModification re-prices a proposed change without applying it
func (m *Manager) ValidateBookingModification(ctx context.Context, bookingID string, req ModificationRequest) (*ModificationQuote, error) {
	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return m.quoteModification(ctx, b, req)
}

func (m *Manager) quoteModification(ctx context.Context, b *domain.Booking, req ModificationRequest) (*ModificationQuote, error) {
	if _, ok := modifiedStatus(b.Status); !ok {
		return nil, domain.NewConflictError("Booking cannot be modified",
			fmt.Sprintf("booking %s is %s", b.ID, b.Status))
	}

	proposed := CreateBookingRequest{
		PropertyID:      b.PropertyID,
		GuestID:         b.GuestID,
		CheckIn:         b.CheckIn,
		CheckOut:        b.CheckOut,
		Rooms:           currentRooms(b),
		PromotionCodes:  promotionCodes(b.Pricing.AppliedPromotions),
		CorporateCode:   b.CorporateCode,
		LoyaltyMemberID: b.LoyaltyMemberID,
		BookingSource:   b.BookingSource,
		SpecialRequests: b.SpecialRequests,
		PaymentMethodID: b.PaymentMethodID,
	}
	quote := &ModificationQuote{BookingID: b.ID, Current: b.Pricing}
	if req.CheckIn != nil && !domain.Day(*req.CheckIn).Equal(domain.Day(b.CheckIn)) {
		proposed.CheckIn = *req.CheckIn
		quote.DatesChanged = true
	}
	if req.CheckOut != nil && !domain.Day(*req.CheckOut).Equal(domain.Day(b.CheckOut)) {
		proposed.CheckOut = *req.CheckOut
		quote.DatesChanged = true
	}
	if len(req.Rooms) > 0 {
		proposed.Rooms = req.Rooms
		quote.RoomsChanged = true
	}
	if !quote.DatesChanged && !quote.RoomsChanged {
		return nil, domain.NewValidationError("modification", "No changes requested")
	}

	check, err := m.checkRequest(ctx, proposed)
	if err != nil {
		return nil, err
	}
	if err := check.first(); err != nil {
		return nil, err
	}
	pricing, err := m.quote(ctx, proposed, m.now(), b.PromotionIDs())
	if err != nil {
		return nil, err
	}
	if pricing.Currency != b.Pricing.Currency {
		return nil, domain.NewValidationError("rooms",
			fmt.Sprintf("Modified booking must stay in %s", b.Pricing.Currency))
	}

	policy, err := m.cancellationPolicy(ctx, b.PropertyID)
	if err != nil {
		return nil, err
	}

	quote.CheckIn = domain.Day(proposed.CheckIn)
	quote.CheckOut = domain.Day(proposed.CheckOut)
	quote.Nights = domain.NightsBetween(proposed.CheckIn, proposed.CheckOut)
	quote.Rooms = proposed.Rooms
	quote.Proposed = pricing
	quote.PriceDifference = pricing.TotalAmount.Sub(b.Pricing.TotalAmount)
	quote.ModificationFee = decimal.Zero
	if m.calculator.HoursUntilCheckIn(*b) < float64(policy.HoursBeforeCheckIn) {
		quote.WithinPenaltyWindow = true
		quote.ModificationFee = domain.RoundAmount(policy.ModificationFee, pricing.Currency)
	}
	quote.AmountDue = quote.PriceDifference.Add(quote.ModificationFee)
	return quote, nil
}

// ModifyBooking applies a change to the dates or rooms of a booking and
// stores the new price. Settling AmountDue with the guest is left to the
// caller.
func (m *Manager) ModifyBooking(ctx context.Context, bookingID string, req ModificationRequest) (result *ModificationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "booking.ModifyBooking", attribute.String("booking_id", bookingID))
	defer func() { tracing.EndSpan(span, err) }()

	b, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	quote, err := m.quoteModification(ctx, b, req)
	if err != nil {
		return nil, err
	}
	target, _ := modifiedStatus(b.Status)

	changedBy := req.ChangedBy
	if changedBy == "" {
		changedBy = b.GuestID
	}

	now := m.now()
	updated := b.Clone()
	updated.CheckIn = quote.CheckIn
	updated.CheckOut = quote.CheckOut
	updated.Nights = quote.Nights
	updated.Pricing = quote.Proposed
	updated.Rooms = bookedRooms(b.ID, quote.Rooms, quote.Proposed)
	updated.DepositAmount = CalculateDeposit(updated, m.cfg.Deposit)
	updated.ReminderSentAt = nil
	updated.Status = target
	updated.UpdatedAt = now
	updated.Version++

	err = m.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := m.bookings.UpdateBooking(ctx, updated, b.Status, b.Version); err != nil {
			return transitionError(err, b.ID, b.Status, target)
		}
		entry := m.historyEntry(b.ID, b.Status, target, changedBy, "booking modified", map[string]any{
			"previous_total":   b.Pricing.TotalAmount.String(),
			"new_total":        quote.Proposed.TotalAmount.String(),
			"price_difference": quote.PriceDifference.String(),
			"modification_fee": quote.ModificationFee.String(),
			"dates_changed":    quote.DatesChanged,
			"rooms_changed":    quote.RoomsChanged,
		})
		if err := m.bookings.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to append booking history: %w", err)
		}
		return m.redeem(ctx, updated, b.PromotionIDs())
	})
	if err != nil {
		return nil, err
	}

	if target != b.Status {
		metrics.RecordTransition(string(b.Status), string(target))
	}
	log.Info(ctx, "Booking modified",
		zap.String("booking_id", b.ID),
		zap.String("status", string(target)),
		zap.String("price_difference", quote.PriceDifference.String()),
		zap.String("modification_fee", quote.ModificationFee.String()))

	m.notify(ctx, notification.TypeUpdate, updated, "Your booking has been modified")
	return &ModificationResult{Booking: &updated, Quote: quote}, nil
}

func currentRooms(b *domain.Booking) []RoomRequest {
	rooms := make([]RoomRequest, 0, len(b.Rooms))
	for _, r := range b.Rooms {
		rooms = append(rooms, RoomRequest{RoomTypeID: r.RoomTypeID, Quantity: r.Quantity, GuestsPerRoom: r.GuestsPerRoom})
	}
	return rooms
}

func promotionCodes(applied []domain.AppliedPromotion) []string {
	var codes []string
	for _, p := range applied {
		if p.Code != "" {
			codes = append(codes, p.Code)
		}
	}
	return codes
}
