package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

var bookingColumnList = []string{
	"id", "confirmation_number", "property_id", "guest_id", "check_in", "check_out", "nights", "pricing",
	"status", "payment_status", "payment_transaction_id", "payment_method_id", "deposit_amount",
	"refund_amount", "cancellation_fee", "cancellation_reason", "booking_source", "corporate_code",
	"loyalty_member_id", "special_requests", "booked_at", "confirmed_at", "checked_in_at", "checked_out_at", "cancelled_at", "reminder_sent_at",
	"updated_at", "version",
}

var (
	bookingColumns   = strings.Join(bookingColumnList, ", ")
	insertBookingSQL = "INSERT INTO bookings (" + bookingColumns + ") VALUES (" + placeholders(1, len(bookingColumnList)) + ")"
	// the id is $1 and the expected status and version follow the columns
	updateBookingSQL = "UPDATE bookings SET " + assignments(bookingColumnList[1:], 2) +
		" WHERE id = $1 AND status = $" + strconv.Itoa(len(bookingColumnList)+1) +
		" AND version = $" + strconv.Itoa(len(bookingColumnList)+2)
)

func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, ", ")
}

func assignments(columns []string, from int) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c + " = $" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, ", ")
}

// bookingArgs returns the values of bookingColumnList in order
func bookingArgs(b domain.Booking) ([]any, error) {
	pricing, err := marshalJSON(b.Pricing)
	if err != nil {
		return nil, err
	}
	return []any{
		b.ID, b.ConfirmationNumber, b.PropertyID, b.GuestID, domain.Day(b.CheckIn), domain.Day(b.CheckOut),
		b.Nights, pricing, string(b.Status), string(b.PaymentStatus), b.PaymentTransactionID,
		b.PaymentMethodID, b.DepositAmount, b.RefundAmount, b.CancellationFee, b.CancellationReason,
		b.BookingSource, b.CorporateCode, b.LoyaltyMemberID, b.SpecialRequests, b.BookedAt, b.ConfirmedAt, b.CheckedInAt, b.CheckedOutAt,
		b.CancelledAt, b.ReminderSentAt, b.UpdatedAt, b.Version,
	}, nil
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var pricing []byte
	var status, paymentStatus string
	if err := row.Scan(&b.ID, &b.ConfirmationNumber, &b.PropertyID, &b.GuestID, &b.CheckIn, &b.CheckOut,
		&b.Nights, &pricing, &status, &paymentStatus, &b.PaymentTransactionID, &b.PaymentMethodID,
		&b.DepositAmount, &b.RefundAmount, &b.CancellationFee, &b.CancellationReason, &b.BookingSource,
		&b.CorporateCode, &b.LoyaltyMemberID, &b.SpecialRequests, &b.BookedAt, &b.ConfirmedAt, &b.CheckedInAt, &b.CheckedOutAt, &b.CancelledAt,
		&b.ReminderSentAt, &b.UpdatedAt, &b.Version); err != nil {
		return b, err
	}
	b.Status = domain.BookingStatus(status)
	b.PaymentStatus = domain.PaymentStatus(paymentStatus)
	b.CheckIn = domain.Day(b.CheckIn)
	b.CheckOut = domain.Day(b.CheckOut)
	utc(&b.BookedAt)
	utc(&b.UpdatedAt)
	b.ConfirmedAt = utcPtr(b.ConfirmedAt)
	b.CheckedInAt = utcPtr(b.CheckedInAt)
	b.CheckedOutAt = utcPtr(b.CheckedOutAt)
	b.CancelledAt = utcPtr(b.CancelledAt)
	b.ReminderSentAt = utcPtr(b.ReminderSentAt)
	return b, unmarshalJSON(pricing, &b.Pricing)
}

func (s *Store) CreateBooking(ctx context.Context, booking domain.Booking) error {
	args, err := bookingArgs(booking)
	if err != nil {
		return err
	}
	return s.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.conn(ctx).Exec(ctx, insertBookingSQL, args...); err != nil {
			return wrap("create booking", err)
		}
		return s.insertRooms(ctx, booking)
	})
}

func (s *Store) insertRooms(ctx context.Context, booking domain.Booking) error {
	for i, r := range booking.Rooms {
		_, err := s.conn(ctx).Exec(ctx, `
			INSERT INTO booked_rooms (id, booking_id, position, room_type_id, quantity, guests_per_room, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, booking.ID, i, r.RoomTypeID, r.Quantity, r.GuestsPerRoom, r.TotalAmount)
		if err != nil {
			return wrap("insert booked room", err)
		}
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return s.getBooking(ctx, "get booking", `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (s *Store) GetBookingByConfirmationNumber(ctx context.Context, number string) (*domain.Booking, error) {
	return s.getBooking(ctx, "get booking by confirmation number",
		`SELECT `+bookingColumns+` FROM bookings WHERE confirmation_number = $1`, number)
}

func (s *Store) getBooking(ctx context.Context, op, query string, arg string) (*domain.Booking, error) {
	b, err := scanBooking(s.conn(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, wrap(op, err)
	}
	bookings := []domain.Booking{b}
	if err := s.loadRooms(ctx, bookings); err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

// loadRooms fills the room lines of every booking with one query
func (s *Store) loadRooms(ctx context.Context, bookings []domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	index := make(map[string]int, len(bookings))
	ids := make([]string, len(bookings))
	for i, b := range bookings {
		index[b.ID] = i
		ids[i] = b.ID
	}

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT id, booking_id, room_type_id, quantity, guests_per_room, total_amount
		FROM booked_rooms WHERE booking_id = ANY($1)
		ORDER BY booking_id, position`, ids)
	if err != nil {
		return wrap("load booked rooms", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r domain.BookedRoom
		if err := rows.Scan(&r.ID, &r.BookingID, &r.RoomTypeID, &r.Quantity, &r.GuestsPerRoom, &r.TotalAmount); err != nil {
			return wrap("scan booked room", err)
		}
		i := index[r.BookingID]
		bookings[i].Rooms = append(bookings[i].Rooms, r)
	}
	return wrap("load booked rooms", rows.Err())
}

// UpdateBooking writes the booking only while its stored status and version
// equal the expected ones. Room lines are replaced in the same transaction.
func (s *Store) UpdateBooking(ctx context.Context, booking domain.Booking, expectedStatus domain.BookingStatus, expectedVersion int) error {
	args, err := bookingArgs(booking)
	if err != nil {
		return err
	}
	args = append(args, string(expectedStatus), expectedVersion)

	return s.WithinTransaction(ctx, func(ctx context.Context) error {
		conn := s.conn(ctx)
		tag, err := conn.Exec(ctx, updateBookingSQL, args...)
		if err != nil {
			return wrap("update booking", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := conn.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, booking.ID).Scan(&exists); err != nil {
				return wrap("update booking", err)
			}
			if !exists {
				return repository.ErrNotFound
			}
			return repository.ErrStatusConflict
		}

		if _, err := conn.Exec(ctx, `DELETE FROM booked_rooms WHERE booking_id = $1`, booking.ID); err != nil {
			return wrap("replace booked rooms", err)
		}
		return s.insertRooms(ctx, booking)
	})
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, transactionID string) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE bookings
		SET payment_status = $2,
		    payment_transaction_id = CASE WHEN $3 = '' THEN payment_transaction_id ELSE $3 END,
		    updated_at = $4,
		    version = version + 1
		WHERE id = $1`, id, string(status), transactionID, s.now())
	if err != nil {
		return wrap("update payment status", err)
	}
	return affected(tag)
}

// ListBookingsByStatus returns the oldest bookings first. A zero limit
// returns all of them.
func (s *Store) ListBookingsByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = $1
		 ORDER BY booked_at, id LIMIT NULLIF($2, 0)`, string(status), limit)
	if err != nil {
		return nil, wrap("list bookings", err)
	}
	bookings, err := collect(rows, scanBooking, "list bookings")
	if err != nil {
		return nil, err
	}
	if err := s.loadRooms(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Store) AppendHistory(ctx context.Context, entry domain.BookingHistory) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		if metadata, err = marshalJSON(entry.Metadata); err != nil {
			return err
		}
	}
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO booking_history (id, booking_id, from_status, to_status, changed_by, reason, metadata, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.BookingID, string(entry.FromStatus), string(entry.ToStatus), entry.ChangedBy,
		entry.Reason, metadata, entry.ChangedAt)
	return wrap("append booking history", err)
}

func (s *Store) ListHistory(ctx context.Context, bookingID string) ([]domain.BookingHistory, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT id, booking_id, from_status, to_status, changed_by, reason, metadata, changed_at
		FROM booking_history WHERE booking_id = $1
		ORDER BY changed_at, id`, bookingID)
	if err != nil {
		return nil, wrap("list booking history", err)
	}
	return collect(rows, func(row pgx.Row) (domain.BookingHistory, error) {
		var h domain.BookingHistory
		var from, to string
		var metadata []byte
		if err := row.Scan(&h.ID, &h.BookingID, &from, &to, &h.ChangedBy, &h.Reason, &metadata, &h.ChangedAt); err != nil {
			return h, err
		}
		h.FromStatus = domain.BookingStatus(from)
		h.ToStatus = domain.BookingStatus(to)
		utc(&h.ChangedAt)
		return h, unmarshalJSON(metadata, &h.Metadata)
	}, "list booking history")
}

// Cancellation policies

func (s *Store) GetCancellationPolicy(ctx context.Context, propertyID string) (*domain.CancellationPolicy, error) {
	var p domain.CancellationPolicy
	var penalty string
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT id, property_id, name, refund_percentage, hours_before_check_in, penalty_type,
		       penalty_value, modification_fee
		FROM cancellation_policies WHERE property_id = $1`, propertyID,
	).Scan(&p.ID, &p.PropertyID, &p.Name, &p.RefundPercentage, &p.HoursBeforeCheckIn, &penalty,
		&p.PenaltyValue, &p.ModificationFee)
	if err != nil {
		return nil, wrap("get cancellation policy", err)
	}
	p.PenaltyType = domain.PenaltyType(penalty)
	return &p, nil
}

// Refund outbox

const refundColumns = `id, booking_id, payment_id, amount, currency, reason, idempotency_key, attempts, status,
	last_error, created_at, updated_at`

func scanRefund(row pgx.Row) (domain.PendingRefund, error) {
	var r domain.PendingRefund
	var status string
	if err := row.Scan(&r.ID, &r.BookingID, &r.PaymentID, &r.Amount, &r.Currency, &r.Reason,
		&r.IdempotencyKey, &r.Attempts, &status, &r.LastError, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.Status = domain.RefundStatus(status)
	utc(&r.CreatedAt)
	utc(&r.UpdatedAt)
	return r, nil
}

// EnqueueRefund fails with ErrDuplicate when the idempotency key was
// already queued
func (s *Store) EnqueueRefund(ctx context.Context, refund domain.PendingRefund) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO pending_refunds (`+refundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		refund.ID, refund.BookingID, refund.PaymentID, refund.Amount, refund.Currency, refund.Reason,
		refund.IdempotencyKey, refund.Attempts, string(refund.Status), refund.LastError,
		refund.CreatedAt, refund.UpdatedAt)
	return wrap("enqueue refund", err)
}

func (s *Store) GetRefund(ctx context.Context, id string) (*domain.PendingRefund, error) {
	r, err := scanRefund(s.conn(ctx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM pending_refunds WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get refund", err)
	}
	return &r, nil
}

func (s *Store) ListPendingRefunds(ctx context.Context, limit int) ([]domain.PendingRefund, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+refundColumns+` FROM pending_refunds WHERE status = $1
		 ORDER BY created_at, id LIMIT NULLIF($2, 0)`, string(domain.RefundPending), limit)
	if err != nil {
		return nil, wrap("list pending refunds", err)
	}
	return collect(rows, scanRefund, "list pending refunds")
}

func (s *Store) MarkRefundSucceeded(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE pending_refunds
		SET status = $2, attempts = attempts + 1, last_error = '', updated_at = $3
		WHERE id = $1`, id, string(domain.RefundSucceeded), s.now())
	if err != nil {
		return wrap("mark refund succeeded", err)
	}
	return affected(tag)
}

func (s *Store) MarkRefundAttemptFailed(ctx context.Context, id, lastError string, maxAttempts int) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE pending_refunds
		SET attempts = attempts + 1, last_error = $2, updated_at = $3,
		    status = CASE WHEN attempts + 1 >= $4 THEN $5 ELSE status END
		WHERE id = $1`, id, lastError, s.now(), maxAttempts, string(domain.RefundFailed))
	if err != nil {
		return wrap("mark refund attempt failed", err)
	}
	return affected(tag)
}
