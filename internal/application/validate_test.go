package application

import (
	"testing"
	"time"

	"github.com/example/classroom-reservation/internal/timeslot"
)

func TestValidateReservationSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		slot       timeslot.Slot
		wantFields []string
	}{
		"valid next day slot": {
			slot: timeslot.Slot{
				Start: now.Add(24 * time.Hour).Truncate(time.Hour),
				End:   now.Add(25 * time.Hour).Truncate(time.Hour),
			},
		},
		"missing start": {
			slot:       timeslot.Slot{End: now.Add(2 * time.Hour)},
			wantFields: []string{"start"},
		},
		"ninety minutes": {
			slot: timeslot.Slot{
				Start: now.Add(3 * time.Hour),
				End:   now.Add(3 * time.Hour).Add(90 * time.Minute),
			},
			wantFields: []string{"duration"},
		},
		"half past the hour": {
			slot: timeslot.Slot{
				Start: now.Add(3 * time.Hour).Add(30 * time.Minute),
				End:   now.Add(4 * time.Hour).Add(30 * time.Minute),
			},
			wantFields: []string{"alignment"},
		},
		"starts in the past": {
			slot: timeslot.Slot{
				Start: now.Add(-2 * time.Hour),
				End:   now.Add(-1 * time.Hour),
			},
			wantFields: []string{"start"},
		},
		"starts exactly now": {
			slot: timeslot.Slot{
				Start: now,
				End:   now.Add(time.Hour),
			},
			wantFields: []string{"start"},
		},
		"beyond advance window": {
			slot: timeslot.Slot{
				Start: now.Add(8 * 24 * time.Hour),
				End:   now.Add(8*24*time.Hour + time.Hour),
			},
			wantFields: []string{"start"},
		},
		"exactly seven days ahead is allowed": {
			slot: timeslot.Slot{
				Start: now.Add(7 * 24 * time.Hour),
				End:   now.Add(7*24*time.Hour + time.Hour),
			},
		},
		"multiple violations reported together": {
			slot: timeslot.Slot{
				Start: now.Add(-30 * time.Minute),
				End:   now.Add(45 * time.Minute),
			},
			wantFields: []string{"duration", "alignment", "start"},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			vErr := &ValidationError{}
			validateReservationSlot(tc.slot, now, DefaultAdvanceWindow, vErr)

			if len(tc.wantFields) == 0 {
				if vErr.HasErrors() {
					t.Fatalf("expected no errors, got %v", vErr.FieldErrors)
				}
				return
			}
			if !vErr.HasErrors() {
				t.Fatalf("expected errors on %v, got none", tc.wantFields)
			}
			for _, field := range tc.wantFields {
				if _, ok := vErr.FieldErrors[field]; !ok {
					t.Fatalf("expected error on field %q, got %v", field, vErr.FieldErrors)
				}
			}
		})
	}
}

func TestValidateWaitlistSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

	t.Run("odd windows are accepted", func(t *testing.T) {
		t.Parallel()

		vErr := &ValidationError{}
		validateWaitlistSlot(timeslot.Slot{
			Start: now.Add(2 * time.Hour).Add(15 * time.Minute),
			End:   now.Add(2 * time.Hour).Add(45 * time.Minute),
		}, now, vErr)

		if vErr.HasErrors() {
			t.Fatalf("expected odd window to be accepted, got %v", vErr.FieldErrors)
		}
	})

	t.Run("inverted window is rejected", func(t *testing.T) {
		t.Parallel()

		vErr := &ValidationError{}
		validateWaitlistSlot(timeslot.Slot{
			Start: now.Add(3 * time.Hour),
			End:   now.Add(2 * time.Hour),
		}, now, vErr)

		if _, ok := vErr.FieldErrors["time"]; !ok {
			t.Fatalf("expected error on time, got %v", vErr.FieldErrors)
		}
	})

	t.Run("past window is rejected", func(t *testing.T) {
		t.Parallel()

		vErr := &ValidationError{}
		validateWaitlistSlot(timeslot.Slot{
			Start: now.Add(-time.Hour),
			End:   now.Add(time.Hour),
		}, now, vErr)

		if _, ok := vErr.FieldErrors["start"]; !ok {
			t.Fatalf("expected error on start, got %v", vErr.FieldErrors)
		}
	})
}
