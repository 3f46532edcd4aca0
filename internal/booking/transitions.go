package booking

import (
	"fmt"
	"slices"

	"github.com/jia-app/hotelservice/internal/domain"
)

// transitions lists every legal status change. Terminal statuses have no row.
var transitions = map[domain.BookingStatus][]domain.BookingStatus{
	domain.BookingPending:   {domain.BookingConfirmed, domain.BookingCancelled, domain.BookingExpired},
	domain.BookingConfirmed: {domain.BookingCheckedIn, domain.BookingCancelled, domain.BookingModified, domain.BookingNoShow},
	domain.BookingModified:  {domain.BookingConfirmed, domain.BookingCheckedIn, domain.BookingCancelled, domain.BookingNoShow},
	domain.BookingCheckedIn: {domain.BookingCheckedOut},
}

// CanTransition reports whether a booking in from may move to to
func CanTransition(from, to domain.BookingStatus) bool {
	return slices.Contains(transitions[from], to)
}

// AllowedTransitions returns the statuses reachable from from
func AllowedTransitions(from domain.BookingStatus) []domain.BookingStatus {
	return slices.Clone(transitions[from])
}

// ValidateTransition returns a ConflictError for an illegal status change
func ValidateTransition(from, to domain.BookingStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return domain.NewConflictError(
		"Invalid booking status transition",
		fmt.Sprintf("cannot change status from %s to %s", from, to),
	)
}
