package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/notification"
	"github.com/jia-app/hotelservice/internal/repository"
)

// SweeperConfig controls the periodic booking housekeeping
type SweeperConfig struct {
	Interval     time.Duration
	PendingTTL   time.Duration // unpaid bookings older than this expire
	NoShowGrace  time.Duration // after check-in time
	ReminderLead time.Duration // before check-in time
	BatchSize    int           // actions of each kind per pass
}

// DefaultSweeperConfig returns the defaults used when a field is zero
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:     5 * time.Minute,
		PendingTTL:   30 * time.Minute,
		NoShowGrace:  24 * time.Hour,
		ReminderLead: 48 * time.Hour,
		BatchSize:    100,
	}
}

// SweepReport counts what one pass did
type SweepReport struct {
	Expired   int `json:"expired"`
	NoShows   int `json:"noShows"`
	Reminders int `json:"reminders"`
}

// Sweeper expires abandoned bookings, marks no-shows and sends check-in
// reminders on a schedule
type Sweeper struct {
	manager   *Manager
	cfg       SweeperConfig
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

// NewSweeper creates a sweeper. Start schedules it.
func NewSweeper(manager *Manager, cfg SweeperConfig, logger *zap.Logger) (*Sweeper, error) {
	def := DefaultSweeperConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = def.PendingTTL
	}
	if cfg.NoShowGrace < 0 {
		cfg.NoShowGrace = def.NoShowGrace
	}
	if cfg.ReminderLead <= 0 {
		cfg.ReminderLead = def.ReminderLead
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create booking scheduler: %w", err)
	}
	return &Sweeper{manager: manager, cfg: cfg, logger: logger, scheduler: s}, nil
}

// Start runs a pass every interval until Stop. Overlapping passes are
// skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			report := s.Sweep(ctx)
			if report.Expired+report.NoShows+report.Reminders > 0 {
				s.logger.Info("Booking sweep completed",
					zap.Int("expired", report.Expired),
					zap.Int("no_shows", report.NoShows),
					zap.Int("reminders", report.Reminders))
			}
		}),
		gocron.WithName("booking-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule booking sweeper: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("Booking sweeper started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop waits for a running pass and stops the schedule
func (s *Sweeper) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop booking sweeper: %w", err)
	}
	s.logger.Info("Booking sweeper stopped")
	return nil
}

// Sweep runs one pass. Failures on single bookings are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	now := s.manager.now()

	report.Expired = s.expirePending(ctx, now)
	report.NoShows = s.markNoShows(ctx, now)
	report.Reminders = s.sendReminders(ctx, now)

	metrics.RecordSweeperAction("expired", report.Expired)
	metrics.RecordSweeperAction("no_show", report.NoShows)
	metrics.RecordSweeperAction("reminder", report.Reminders)
	return report
}

func (s *Sweeper) expirePending(ctx context.Context, now time.Time) int {
	pending, err := s.manager.bookings.ListBookingsByStatus(ctx, domain.BookingPending, 0)
	if err != nil {
		log.Error(ctx, "Failed to list pending bookings", zap.Error(err))
		return 0
	}
	count := 0
	for i := range pending {
		if count >= s.cfg.BatchSize {
			break
		}
		b := &pending[i]
		if now.Sub(b.BookedAt) < s.cfg.PendingTTL {
			// sorted by BookedAt, the rest are younger
			break
		}
		if s.apply(ctx, b, domain.BookingExpired, "payment not completed in time") {
			count++
		}
	}
	return count
}

func (s *Sweeper) markNoShows(ctx context.Context, now time.Time) int {
	count := 0
	for _, status := range []domain.BookingStatus{domain.BookingConfirmed, domain.BookingModified} {
		bookings, err := s.manager.bookings.ListBookingsByStatus(ctx, status, 0)
		if err != nil {
			log.Error(ctx, "Failed to list bookings", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		for i := range bookings {
			if count >= s.cfg.BatchSize {
				return count
			}
			b := &bookings[i]
			if now.Before(s.manager.calculator.CheckInTime(*b).Add(s.cfg.NoShowGrace)) {
				continue
			}
			if s.apply(ctx, b, domain.BookingNoShow, "guest did not check in") {
				count++
			}
		}
	}
	return count
}

func (s *Sweeper) apply(ctx context.Context, b *domain.Booking, to domain.BookingStatus, reason string) bool {
	_, err := s.manager.transition(ctx, b, to, SystemActor, reason, nil)
	if err == nil {
		return true
	}
	if domain.IsConflict(err) {
		log.Debug(ctx, "Booking changed before sweep", zap.String("booking_id", b.ID))
		return false
	}
	log.Error(ctx, "Failed to sweep booking",
		zap.String("booking_id", b.ID),
		zap.String("to", string(to)),
		zap.Error(err))
	return false
}

// sendReminders notifies guests whose stay starts within the lead time.
// The reminder is sent before the booking is marked, so a crash in between
// may repeat it but never loses it.
func (s *Sweeper) sendReminders(ctx context.Context, now time.Time) int {
	count := 0
	for _, status := range []domain.BookingStatus{domain.BookingConfirmed, domain.BookingModified} {
		bookings, err := s.manager.bookings.ListBookingsByStatus(ctx, status, 0)
		if err != nil {
			log.Error(ctx, "Failed to list bookings", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		for i := range bookings {
			if count >= s.cfg.BatchSize {
				return count
			}
			b := bookings[i]
			if b.ReminderSentAt != nil {
				continue
			}
			until := s.manager.calculator.CheckInTime(b).Sub(now)
			if until <= 0 || until > s.cfg.ReminderLead {
				continue
			}
			if s.remind(ctx, b, now) {
				count++
			}
		}
	}
	return count
}

func (s *Sweeper) remind(ctx context.Context, b domain.Booking, now time.Time) bool {
	data := notification.NewBookingData(b, "Your stay begins soon")
	if _, err := s.manager.send(ctx, notification.TypeReminder, data); err != nil {
		metrics.RecordError("notification", "sweeper")
		log.Warn(ctx, "Failed to send booking reminder", zap.String("booking_id", b.ID), zap.Error(err))
		return false
	}

	expected := b.Version
	b.ReminderSentAt = &now
	b.UpdatedAt = now
	b.Version++
	// a booking that moved on meanwhile keeps its new state
	err := s.manager.bookings.UpdateBooking(ctx, b, b.Status, expected)
	if err != nil && !errors.Is(err, repository.ErrStatusConflict) {
		log.Error(ctx, "Failed to mark reminder sent", zap.String("booking_id", b.ID), zap.Error(err))
	}
	return true
}
