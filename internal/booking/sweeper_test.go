package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/notification"
)

func newTestSweeper(t *testing.T, f *fixture) *Sweeper {
	t.Helper()
	s, err := NewSweeper(f.manager, SweeperConfig{
		Interval:     time.Minute,
		PendingTTL:   30 * time.Minute,
		NoShowGrace:  24 * time.Hour,
		ReminderLead: 48 * time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSweep_ExpiresAbandonedBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	abandoned := f.create(t)
	s := newTestSweeper(t, f)

	report := s.Sweep(ctx)
	assert.Equal(t, 0, report.Expired)

	f.clock.Set(fixedNow.Add(31 * time.Minute))
	fresh := f.create(t)
	report = s.Sweep(ctx)
	assert.Equal(t, 1, report.Expired)

	assert.Equal(t, domain.BookingExpired, f.stored(t, abandoned.ID).Status)
	assert.Equal(t, domain.BookingPending, f.stored(t, fresh.ID).Status)

	history, err := f.manager.ListHistory(ctx, abandoned.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, SystemActor, history[1].ChangedBy)
}

func TestSweep_RemindersAndNoShows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	s := newTestSweeper(t, f)

	// a week out nothing is due
	f.clock.Set(time.Date(2027, 2, 22, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, SweepReport{}, s.Sweep(ctx))

	// a day before check-in the guest is reminded once
	f.clock.Set(time.Date(2027, 2, 28, 15, 0, 0, 0, time.UTC))
	report := s.Sweep(ctx)
	assert.Equal(t, 1, report.Reminders)
	require.NotNil(t, f.stored(t, b.ID).ReminderSentAt)
	f.notifier.AssertCalled(t, "SendBookingReminder", mock.Anything, mock.MatchedBy(func(d notification.BookingData) bool {
		return d.BookingID == b.ID
	}))

	report = s.Sweep(ctx)
	assert.Equal(t, 0, report.Reminders)

	// within the grace period the guest may still arrive
	f.clock.Set(time.Date(2027, 3, 2, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, s.Sweep(ctx).NoShows)

	f.clock.Set(time.Date(2027, 3, 2, 16, 0, 0, 0, time.UTC))
	report = s.Sweep(ctx)
	assert.Equal(t, 1, report.NoShows)
	assert.Equal(t, domain.BookingNoShow, f.stored(t, b.ID).Status)
}

func TestSweep_StaleReminderDoesNotUndoModification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.confirmed(t)
	s := newTestSweeper(t, f)

	longer := checkIn.AddDate(0, 0, 3)
	_, err := f.manager.ModifyBooking(ctx, b.ID, ModificationRequest{CheckOut: &longer})
	require.NoError(t, err)
	stale := f.stored(t, b.ID)

	// the guest changes the stay again while the reminder is being sent
	longest := checkIn.AddDate(0, 0, 4)
	_, err = f.manager.ModifyBooking(ctx, b.ID, ModificationRequest{CheckOut: &longest})
	require.NoError(t, err)

	assert.True(t, s.remind(ctx, *stale, time.Date(2027, 2, 28, 15, 0, 0, 0, time.UTC)))

	stored := f.stored(t, b.ID)
	assert.Equal(t, 4, stored.Nights)
	assert.True(t, stored.Pricing.TotalAmount.Equal(dec("400")), stored.Pricing.TotalAmount.String())
	assert.Nil(t, stored.ReminderSentAt)
}

func TestSweeper_StartAndStop(t *testing.T) {
	f := newFixture(t)
	s := newTestSweeper(t, f)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}
