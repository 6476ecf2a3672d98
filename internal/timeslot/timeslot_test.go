package timeslot

import (
	"testing"
	"time"
)

func slotAt(t *testing.T, startHour, endHour int) Slot {
	t.Helper()
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	return Slot{Start: day.Add(time.Duration(startHour) * time.Hour), End: day.Add(time.Duration(endHour) * time.Hour)}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Slot
		b    Slot
		want bool
	}{
		{name: "identical slots overlap", a: Slot{Start: hour(10), End: hour(11)}, b: Slot{Start: hour(10), End: hour(11)}, want: true},
		{name: "partial overlap at tail", a: Slot{Start: hour(10), End: hour(12)}, b: Slot{Start: hour(11), End: hour(13)}, want: true},
		{name: "containment overlaps", a: Slot{Start: hour(9), End: hour(13)}, b: Slot{Start: hour(10), End: hour(11)}, want: true},
		{name: "back-to-back slots do not overlap", a: Slot{Start: hour(10), End: hour(11)}, b: Slot{Start: hour(11), End: hour(12)}, want: false},
		{name: "disjoint slots do not overlap", a: Slot{Start: hour(8), End: hour(9)}, b: Slot{Start: hour(11), End: hour(12)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainedIn(t *testing.T) {
	window := Slot{Start: hour(9), End: hour(12)}

	if !(Slot{Start: hour(9), End: hour(10)}).ContainedIn(window) {
		t.Error("slot sharing the window start should be contained")
	}
	if !(Slot{Start: hour(11), End: hour(12)}).ContainedIn(window) {
		t.Error("slot sharing the window end should be contained")
	}
	if !window.ContainedIn(window) {
		t.Error("window should contain itself")
	}
	if (Slot{Start: hour(8), End: hour(10)}).ContainedIn(window) {
		t.Error("slot starting before the window must not be contained")
	}
	if (Slot{Start: hour(11), End: hour(13)}).ContainedIn(window) {
		t.Error("slot ending after the window must not be contained")
	}
}

func TestIsOneHour(t *testing.T) {
	if !(Slot{Start: hour(10), End: hour(11)}).IsOneHour() {
		t.Error("expected exactly one hour")
	}
	if (Slot{Start: hour(10), End: hour(12)}).IsOneHour() {
		t.Error("two hours is not one hour")
	}
	if (Slot{Start: hour(10), End: hour(10).Add(30 * time.Minute)}).IsOneHour() {
		t.Error("thirty minutes is not one hour")
	}
}

func TestIsHourAligned(t *testing.T) {
	aligned := Slot{Start: hour(10), End: hour(11)}
	if !aligned.IsHourAligned() {
		t.Error("expected aligned slot")
	}

	offMinute := Slot{Start: hour(10).Add(30 * time.Minute), End: hour(11).Add(30 * time.Minute)}
	if offMinute.IsHourAligned() {
		t.Error("half-hour offsets are not aligned")
	}

	offSecond := Slot{Start: hour(10).Add(time.Second), End: hour(11).Add(time.Second)}
	if offSecond.IsHourAligned() {
		t.Error("second offsets are not aligned")
	}
}

func TestHasConflict(t *testing.T) {
	existing := []Slot{
		slotAt(t, 9, 10),
		slotAt(t, 12, 13),
	}

	if HasConflict(slotAt(t, 10, 11), existing) {
		t.Error("gap between bookings should be free")
	}
	if !HasConflict(slotAt(t, 9, 10), existing) {
		t.Error("identical slot should conflict")
	}
	if !HasConflict(slotAt(t, 11, 13), existing) {
		t.Error("overlap with second booking should conflict")
	}
	if HasConflict(slotAt(t, 10, 11), nil) {
		t.Error("no existing bookings means no conflict")
	}
}

func hour(h int) time.Time {
	return time.Date(2025, time.March, 3, h, 0, 0, 0, time.UTC)
}
