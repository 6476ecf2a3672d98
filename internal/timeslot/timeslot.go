package timeslot

import "time"

// Slot represents a half-open time interval [Start, End). The end instant is
// excluded so that back-to-back slots never overlap.
type Slot struct {
	Start time.Time
	End   time.Time
}

// New constructs a slot from the provided instants.
func New(start, end time.Time) Slot {
	return Slot{Start: start, End: end}
}

// IsValid reports whether the slot has a positive duration.
func (s Slot) IsValid() bool {
	return s.Start.Before(s.End)
}

// Duration returns the length of the slot.
func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two half-open intervals intersect: s1 < e2 && s2 < e1.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// ContainedIn reports whether the slot lies fully inside the window,
// boundaries included.
func (s Slot) ContainedIn(window Slot) bool {
	return !s.Start.Before(window.Start) && !s.End.After(window.End)
}

// IsOneHour reports whether the slot spans exactly one hour.
func (s Slot) IsOneHour() bool {
	return s.Duration() == time.Hour
}

// IsHourAligned reports whether both endpoints fall exactly on an hour
// boundary (zero minutes, seconds, and sub-second precision).
func (s Slot) IsHourAligned() bool {
	return onTheHour(s.Start) && onTheHour(s.End)
}

func onTheHour(t time.Time) bool {
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// HasConflict reports whether the candidate overlaps any of the existing
// slots. Callers are expected to pass only slots that are still active.
func HasConflict(candidate Slot, existing []Slot) bool {
	for _, slot := range existing {
		if candidate.Overlaps(slot) {
			return true
		}
	}
	return false
}
