package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestDomainErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("create booking: %w", NewValidationError("checkOut", "must be after checkIn"))

	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(NewNotFoundError("Booking", "b-1")))
	assert.True(t, IsConflict(NewConflictError("illegal transition", "CANCELLED -> CONFIRMED")))
	assert.False(t, IsConflict(errors.New("plain")))
}

func TestToGRPCStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", NewValidationError("guestCount", "must be at least 1"), codes.InvalidArgument},
		{"not found", NewNotFoundError("Property", "p-1"), codes.NotFound},
		{"conflict", NewConflictError("booking is not pending", ""), codes.FailedPrecondition},
		{"payment", NewPaymentFailedError("card declined", nil), codes.Aborted},
		{"infrastructure", errors.New("dial tcp: connection refused"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ToGRPCStatus(tt.err)
			assert.Equal(t, tt.code, st.Code())
		})
	}

	st := ToGRPCStatus(errors.New("secret dsn in message"))
	assert.NotContains(t, st.Message(), "dsn")
}

func TestEnumRejectsUnknownValues(t *testing.T) {
	var c Condition
	err := json.Unmarshal([]byte(`{"type":"MOON_PHASE","operator":"GT","value":1}`), &c)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	err = json.Unmarshal([]byte(`{"type":"occupancy_rate","operator":"gte","value":"80"}`), &c)
	require.NoError(t, err)
	assert.Equal(t, ConditionOccupancyRate, c.Type)
	assert.Equal(t, OperatorGTE, c.Operator)
	assert.True(t, c.Value.Equal(decimal.NewFromInt(80)))
}

func TestBookingStatusTerminal(t *testing.T) {
	for _, s := range []BookingStatus{BookingCheckedOut, BookingCancelled, BookingNoShow, BookingExpired} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []BookingStatus{BookingPending, BookingConfirmed, BookingModified, BookingCheckedIn} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestRoundAmountUsesCurrencyMinorUnit(t *testing.T) {
	amount := decimal.RequireFromString("1234.5678")
	assert.Equal(t, "1234.57", RoundAmount(amount, "USD").String())
	assert.Equal(t, "1235", RoundAmount(amount, "JPY").String())
	assert.Equal(t, "1234.568", RoundAmount(amount, "KWD").String())
}
