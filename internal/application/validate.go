package application

import (
	"time"

	"github.com/example/classroom-reservation/internal/timeslot"
)

// Booking window constants applied during reservation validation.
const (
	// DefaultMaxActiveReservations caps the future active reservations a
	// user may hold at once.
	DefaultMaxActiveReservations = 3
	// DefaultAdvanceWindow bounds how far ahead a reservation may start.
	DefaultAdvanceWindow = 7 * 24 * time.Hour
	// DefaultTopClassroomsLimit bounds the admin usage ranking.
	DefaultTopClassroomsLimit = 5
)

// validateReservationSlot checks the timing rules for a reservation request.
// Checks run in a fixed order and each failure lands on its own field so a
// request violating several rules reports all of them at once.
func validateReservationSlot(slot timeslot.Slot, now time.Time, advanceWindow time.Duration, vErr *ValidationError) {
	if slot.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if slot.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if slot.Start.IsZero() || slot.End.IsZero() {
		return
	}

	if !slot.IsOneHour() {
		vErr.add("duration", "reservation must be exactly one hour")
	}
	if !slot.IsHourAligned() {
		vErr.add("alignment", "reservation must start on the hour")
	}
	if !slot.Start.After(now) {
		vErr.add("start", "reservation must start in the future")
	}
	if slot.Start.After(now.Add(advanceWindow)) {
		vErr.add("start", "reservation cannot start more than seven days ahead")
	}
}

// validateWaitlistSlot checks the timing rules for a waitlist request. Any
// well formed future window is accepted; windows that are not one aligned
// hour simply never match a freed slot.
func validateWaitlistSlot(slot timeslot.Slot, now time.Time, vErr *ValidationError) {
	if slot.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if slot.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if slot.Start.IsZero() || slot.End.IsZero() {
		return
	}

	if !slot.Start.Before(slot.End) {
		vErr.add("time", "start must be before end")
	}
	if !slot.Start.After(now) {
		vErr.add("start", "waitlist window must start in the future")
	}
}
