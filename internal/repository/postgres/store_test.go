package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), repository.ErrNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("scan: %w", pgx.ErrNoRows)), repository.ErrNotFound)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23505"}), repository.ErrDuplicate)

	other := &pgconn.PgError{Code: "23503"}
	assert.Same(t, other, mapError(other))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, wrap("get booking", nil))
	assert.Equal(t, repository.ErrNotFound, wrap("get booking", pgx.ErrNoRows))

	err := wrap("get booking", errors.New("connection reset"))
	assert.EqualError(t, err, "failed to get booking: connection reset")
}

func TestBookingStatements(t *testing.T) {
	n := len(bookingColumnList)
	assert.Equal(t, "$1, $2, $3", placeholders(1, 3))
	assert.Equal(t, "a = $2, b = $3", assignments([]string{"a", "b"}, 2))

	assert.True(t, strings.HasSuffix(insertBookingSQL, fmt.Sprintf("$%d)", n)))
	assert.Contains(t, updateBookingSQL, "confirmation_number = $2")
	assert.Contains(t, updateBookingSQL, fmt.Sprintf("version = $%d", n))
	assert.True(t, strings.HasSuffix(updateBookingSQL,
		fmt.Sprintf("WHERE id = $1 AND status = $%d AND version = $%d", n+1, n+2)))

	args, err := bookingArgs(domain.Booking{ID: "b1"})
	require.NoError(t, err)
	assert.Len(t, args, n)
}

func TestTextArray(t *testing.T) {
	assert.NotNil(t, textArray(nil))
	assert.Equal(t, []string{"rt1"}, textArray([]string{"rt1"}))
}

// newTestStore connects to the database named by HOTELSERVICE_TEST_POSTGRES_DSN
// and applies the schema. Tests are skipped when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("HOTELSERVICE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HOTELSERVICE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	store := NewStoreWithPool(pool)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.ApplySchema(ctx))
	return store
}

func seedProperty(t *testing.T, s *Store) (string, string) {
	t.Helper()
	ctx := context.Background()
	propertyID := "p-" + uuid.NewString()
	roomTypeID := "rt-" + uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO properties (id, name, status, currency) VALUES ($1, 'Harbour View', 'ACTIVE', 'USD')`, propertyID)
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO room_types (id, property_id, name, is_active, max_occupancy, base_rate)
		 VALUES ($1, $2, 'Double', TRUE, 2, 100)`, roomTypeID, propertyID)
	require.NoError(t, err)
	return propertyID, roomTypeID
}

func TestStore_PropertiesAndRates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	propertyID, roomTypeID := seedProperty(t, s)

	rt, err := s.GetRoomType(ctx, roomTypeID)
	require.NoError(t, err)
	assert.True(t, rt.BaseRate.Equal(decimal.NewFromInt(100)))

	_, err = s.GetProperty(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	day := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	rates := []domain.RateRecord{
		{PropertyID: propertyID, RoomTypeID: roomTypeID, Date: day, Rate: decimal.NewFromInt(110), Currency: "USD", RateType: domain.RateTypeBase},
		{PropertyID: propertyID, RoomTypeID: roomTypeID, Date: day.AddDate(0, 0, 1), Rate: decimal.NewFromInt(120), Currency: "USD", RateType: domain.RateTypeBase},
	}
	require.NoError(t, s.UpsertRates(ctx, rates))
	rates[0].Rate = decimal.NewFromInt(115)
	require.NoError(t, s.UpsertRates(ctx, rates[:1]))

	got, err := s.ListRates(ctx, propertyID, roomTypeID, domain.RateTypeBase, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Rate.Equal(decimal.NewFromInt(115)))

	occupancy, err := s.GetOccupancy(ctx, propertyID, day)
	require.NoError(t, err)
	assert.Nil(t, occupancy)
}

func TestStore_PromotionRedemptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	propertyID, _ := seedProperty(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	promo := domain.Promotion{
		ID: uuid.NewString(), PropertyID: propertyID, Code: "SPRING", Name: "Spring",
		Type: domain.PromotionCode, DiscountType: domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10), ValidFrom: now, ValidTo: now.AddDate(0, 1, 0),
		Usage: domain.PromotionUsage{MaxTotalUsage: 1}, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreatePromotion(ctx, promo))

	dup := promo
	dup.ID = uuid.NewString()
	dup.Code = "spring"
	assert.ErrorIs(t, s.CreatePromotion(ctx, dup), repository.ErrDuplicate)

	found, err := s.GetPromotionByCode(ctx, propertyID, "Spring")
	require.NoError(t, err)
	assert.Equal(t, promo.ID, found.ID)
	assert.Nil(t, found.MaxDiscount)

	require.NoError(t, s.RecordRedemption(ctx, promo.ID, "g1", "b1"))
	assert.ErrorIs(t, s.RecordRedemption(ctx, promo.ID, "g1", "b2"), repository.ErrStatusConflict)
	assert.ErrorIs(t, s.RecordRedemption(ctx, "missing", "g1", "b3"), repository.ErrNotFound)

	count, err := s.CountGuestRedemptions(ctx, promo.ID, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testBooking(propertyID, roomTypeID string, now time.Time) domain.Booking {
	id := uuid.NewString()
	return domain.Booking{
		ID:                 id,
		ConfirmationNumber: "BK" + strings.ToUpper(strings.ReplaceAll(id, "-", ""))[:14],
		PropertyID:         propertyID,
		GuestID:            "g1",
		CorporateCode:      "ACME",
		LoyaltyMemberID:    "L-1",
		CheckIn:            time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:           time.Date(2027, 3, 3, 0, 0, 0, 0, time.UTC),
		Nights:             2,
		Rooms: []domain.BookedRoom{
			{ID: uuid.NewString(), BookingID: id, RoomTypeID: roomTypeID, Quantity: 1, GuestsPerRoom: 2, TotalAmount: decimal.NewFromInt(200)},
		},
		Pricing:       domain.PricingSnapshot{Currency: "USD", TotalAmount: decimal.NewFromInt(200)},
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentPending,
		DepositAmount: decimal.NewFromInt(60),
		BookedAt:      now,
		UpdatedAt:     now,
		Version:       1,
	}
}

func TestStore_BookingLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	propertyID, roomTypeID := seedProperty(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	b := testBooking(propertyID, roomTypeID, now)
	require.NoError(t, s.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.CreateBooking(ctx, b); err != nil {
			return err
		}
		return s.AppendHistory(ctx, domain.BookingHistory{
			ID: uuid.NewString(), BookingID: b.ID, ToStatus: domain.BookingPending,
			ChangedBy: "g1", Reason: "booking created", ChangedAt: now,
		})
	}))
	assert.ErrorIs(t, s.CreateBooking(ctx, b), repository.ErrDuplicate)

	got, err := s.GetBookingByConfirmationNumber(ctx, b.ConfirmationNumber)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "ACME", got.CorporateCode)
	assert.Equal(t, "L-1", got.LoyaltyMemberID)
	require.Len(t, got.Rooms, 1)
	assert.True(t, got.Pricing.TotalAmount.Equal(decimal.NewFromInt(200)))

	confirmed := got.Clone()
	confirmed.Status = domain.BookingConfirmed
	confirmed.ConfirmedAt = &now
	confirmed.Version++
	require.NoError(t, s.UpdateBooking(ctx, confirmed, domain.BookingPending, got.Version))
	assert.ErrorIs(t, s.UpdateBooking(ctx, confirmed, domain.BookingPending, got.Version), repository.ErrStatusConflict)
	assert.ErrorIs(t, s.UpdateBooking(ctx, confirmed, domain.BookingConfirmed, got.Version), repository.ErrStatusConflict,
		"a stale version loses even when the status matches")

	missing := confirmed
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, s.UpdateBooking(ctx, missing, domain.BookingConfirmed, confirmed.Version), repository.ErrNotFound)

	require.NoError(t, s.UpdatePaymentStatus(ctx, b.ID, domain.PaymentAuthorized, "pi_1"))
	require.NoError(t, s.UpdatePaymentStatus(ctx, b.ID, domain.PaymentCaptured, ""))
	got, err = s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, domain.PaymentCaptured, got.PaymentStatus)
	assert.Equal(t, "pi_1", got.PaymentTransactionID)
	assert.Equal(t, 4, got.Version)
	require.NotNil(t, got.ConfirmedAt)

	listed, err := s.ListBookingsByStatus(ctx, domain.BookingConfirmed, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, listed)

	history, err := s.ListHistory(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.BookingPending, history[0].ToStatus)
	assert.Nil(t, history[0].Metadata)
}

func TestStore_RefundOutbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	propertyID, roomTypeID := seedProperty(t, s)
	now := time.Now().UTC().Truncate(time.Microsecond)

	b := testBooking(propertyID, roomTypeID, now)
	require.NoError(t, s.CreateBooking(ctx, b))

	refund := domain.PendingRefund{
		ID: uuid.NewString(), BookingID: b.ID, PaymentID: "pi_1", Amount: decimal.NewFromInt(200),
		Currency: "USD", Reason: "guest cancelled", IdempotencyKey: "booking:" + b.ID + ":refund",
		Status: domain.RefundPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.EnqueueRefund(ctx, refund))

	again := refund
	again.ID = uuid.NewString()
	assert.ErrorIs(t, s.EnqueueRefund(ctx, again), repository.ErrDuplicate)

	require.NoError(t, s.MarkRefundAttemptFailed(ctx, refund.ID, "gateway timeout", 2))
	got, err := s.GetRefund(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "gateway timeout", got.LastError)

	require.NoError(t, s.MarkRefundAttemptFailed(ctx, refund.ID, "gateway timeout", 2))
	got, err = s.GetRefund(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundFailed, got.Status)

	pending, err := s.ListPendingRefunds(ctx, 0)
	require.NoError(t, err)
	for _, r := range pending {
		assert.NotEqual(t, refund.ID, r.ID)
	}

	assert.ErrorIs(t, s.MarkRefundSucceeded(ctx, "missing"), repository.ErrNotFound)
}
