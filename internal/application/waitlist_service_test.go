package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/classroom-reservation/internal/notifier"
	"github.com/example/classroom-reservation/internal/persistence"
	"github.com/example/classroom-reservation/internal/persistence/memory"
	"github.com/example/classroom-reservation/internal/timeslot"
)

func TestWaitlistService_CreateEntry(t *testing.T) {
	t.Parallel()

	t.Run("joining a taken slot performs no conflict check", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		if _, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		}); err != nil {
			t.Fatalf("booking failed: %v", err)
		}

		entry, err := env.waitlists.CreateEntry(context.Background(), CreateWaitlistParams{
			Principal: Principal{UserID: "user-2"},
			Input:     WaitlistInput{ClassroomID: "room-1", Start: start, End: end},
		})
		if err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
		if entry.QueuePosition != 1 {
			t.Fatalf("expected queue position 1, got %d", entry.QueuePosition)
		}
	})

	t.Run("queue positions grow per slot", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		for i, userID := range []string{"user-1", "user-2"} {
			entry, err := env.waitlists.CreateEntry(context.Background(), CreateWaitlistParams{
				Principal: Principal{UserID: userID},
				Input:     WaitlistInput{ClassroomID: "room-1", Start: start, End: end},
			})
			if err != nil {
				t.Fatalf("CreateEntry %d failed: %v", i, err)
			}
			if entry.QueuePosition != i+1 {
				t.Fatalf("expected queue position %d, got %d", i+1, entry.QueuePosition)
			}
		}
	})

	t.Run("rejects an unknown classroom", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")

		start, end := slotAt(3)
		_, err := env.waitlists.CreateEntry(context.Background(), CreateWaitlistParams{
			Principal: Principal{UserID: "user-1"},
			Input:     WaitlistInput{ClassroomID: "room-missing", Start: start, End: end},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestWaitlistService_CancelEntry(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	env.addUser(t, "user-1", "s1001")
	env.addUser(t, "user-2", "s1002")
	env.addClassroom(t, "room-1", "Room 101")

	start, end := slotAt(3)
	entry, err := env.waitlists.CreateEntry(context.Background(), CreateWaitlistParams{
		Principal: Principal{UserID: "user-1"},
		Input:     WaitlistInput{ClassroomID: "room-1", Start: start, End: end},
	})
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	if err := env.waitlists.CancelEntry(context.Background(), Principal{UserID: "user-2"}, entry.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := env.waitlists.CancelEntry(context.Background(), Principal{UserID: "user-1"}, entry.ID); err != nil {
		t.Fatalf("owner cancel failed: %v", err)
	}
	if err := env.waitlists.CancelEntry(context.Background(), Principal{UserID: "user-1"}, entry.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second cancel, got %v", err)
	}
}

func TestWaitlistService_FillFreedSlot(t *testing.T) {
	t.Parallel()

	joinWaitlist := func(t *testing.T, env *serviceEnv, userID string, start, end time.Time) persistence.WaitlistEntry {
		t.Helper()
		entry, err := env.waitlists.CreateEntry(context.Background(), CreateWaitlistParams{
			Principal: Principal{UserID: userID},
			Input:     WaitlistInput{ClassroomID: "room-1", Start: start, End: end},
		})
		if err != nil {
			t.Fatalf("waitlist join failed: %v", err)
		}
		return entry
	}

	t.Run("first in queue wins, later entries skip on conflict", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		first := joinWaitlist(t, env, "user-1", start, end)
		joinWaitlist(t, env, "user-2", start, end)

		result, err := env.waitlists.FillFreedSlot(context.Background(), "room-1", timeslot.Slot{Start: start, End: end})
		if err != nil {
			t.Fatalf("FillFreedSlot failed: %v", err)
		}
		if len(result.AssignedEntryIDs) != 1 || result.AssignedEntryIDs[0] != first.ID {
			t.Fatalf("expected first entry assigned, got %+v", result)
		}
		if result.SkippedOnConflict != 1 {
			t.Fatalf("expected one conflict skip, got %+v", result)
		}

		// The runner-up keeps waiting for the next cancellation.
		waiting, err := env.waitlists.ListMyEntries(context.Background(), Principal{UserID: "user-2"})
		if err != nil {
			t.Fatalf("ListMyEntries failed: %v", err)
		}
		if len(waiting) != 1 {
			t.Fatalf("expected user-2 still waiting, got %+v", waiting)
		}
	})

	t.Run("packs adjacent hours of a wider freed window in one pass", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")

		windowStart, firstEnd := slotAt(2)
		secondStart, windowEnd := slotAt(3)
		first := joinWaitlist(t, env, "user-1", windowStart, firstEnd)
		second := joinWaitlist(t, env, "user-2", secondStart, windowEnd)

		result, err := env.waitlists.FillFreedSlot(context.Background(), "room-1", timeslot.Slot{Start: windowStart, End: windowEnd})
		if err != nil {
			t.Fatalf("FillFreedSlot failed: %v", err)
		}
		if result.ExaminedEntries != 2 {
			t.Fatalf("expected both entries examined, got %+v", result)
		}
		if result.SkippedOnConflict != 0 {
			t.Fatalf("expected no conflict skips, got %+v", result)
		}
		if len(result.AssignedEntryIDs) != 2 ||
			result.AssignedEntryIDs[0] != first.ID || result.AssignedEntryIDs[1] != second.ID {
			t.Fatalf("expected both entries assigned in queue order, got %+v", result)
		}

		timeline, err := env.store.ListActiveByClassroom(context.Background(), "room-1")
		if err != nil {
			t.Fatalf("ListActiveByClassroom failed: %v", err)
		}
		if len(timeline) != 2 {
			t.Fatalf("expected two bookings on the timeline, got %+v", timeline)
		}
		if !timeline[0].Start.Equal(windowStart) || !timeline[1].Start.Equal(secondStart) {
			t.Fatalf("expected back-to-back bookings filling the window, got %+v", timeline)
		}
		if timeline[0].UserID != "user-1" || timeline[1].UserID != "user-2" {
			t.Fatalf("expected each hour assigned to its queue owner, got %+v", timeline)
		}
	})

	t.Run("windows that are not one aligned hour never match", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		joinWaitlist(t, env, "user-1", start.Add(10*time.Minute), start.Add(40*time.Minute))
		second := joinWaitlist(t, env, "user-2", start, end)

		result, err := env.waitlists.FillFreedSlot(context.Background(), "room-1", timeslot.Slot{Start: start, End: end})
		if err != nil {
			t.Fatalf("FillFreedSlot failed: %v", err)
		}
		if len(result.AssignedEntryIDs) != 1 || result.AssignedEntryIDs[0] != second.ID {
			t.Fatalf("expected the well formed entry assigned, got %+v", result)
		}

		// The odd window stays on the list untouched.
		waiting, err := env.waitlists.ListMyEntries(context.Background(), Principal{UserID: "user-1"})
		if err != nil {
			t.Fatalf("ListMyEntries failed: %v", err)
		}
		if len(waiting) != 1 {
			t.Fatalf("expected odd window still waiting, got %+v", waiting)
		}
	})

	t.Run("cascade bookings bypass the active limit", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addClassroom(t, "room-1", "Room 101")
		env.addClassroom(t, "room-2", "Room 102")

		for i := 0; i < DefaultMaxActiveReservations; i++ {
			start, end := slotAt(10 + i)
			if _, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
				Principal: Principal{UserID: "user-1"},
				Input:     ReservationInput{ClassroomID: "room-2", Start: start, End: end},
			}); err != nil {
				t.Fatalf("booking %d failed: %v", i, err)
			}
		}

		start, end := slotAt(3)
		entry := joinWaitlist(t, env, "user-1", start, end)

		result, err := env.waitlists.FillFreedSlot(context.Background(), "room-1", timeslot.Slot{Start: start, End: end})
		if err != nil {
			t.Fatalf("FillFreedSlot failed: %v", err)
		}
		if len(result.AssignedEntryIDs) != 1 || result.AssignedEntryIDs[0] != entry.ID {
			t.Fatalf("expected assignment despite the cap, got %+v", result)
		}
	})

	t.Run("assignment stores an inbox notification and publishes an event", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		joinWaitlist(t, env, "user-1", start, end)

		if _, err := env.waitlists.FillFreedSlot(context.Background(), "room-1", timeslot.Slot{Start: start, End: end}); err != nil {
			t.Fatalf("FillFreedSlot failed: %v", err)
		}

		inbox, err := env.store.ListForUser(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("ListForUser failed: %v", err)
		}
		if len(inbox) != 1 || inbox[0].Kind != notifier.KindWaitlistAssigned {
			t.Fatalf("expected assignment notification, got %+v", inbox)
		}

		kinds := env.publisher.kinds()
		if len(kinds) != 1 || kinds[0] != notifier.KindWaitlistAssigned {
			t.Fatalf("expected assignment event, got %v", kinds)
		}
	})

	t.Run("empty waitlist leaves the slot free", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		result, err := env.waitlists.FillFreedSlot(context.Background(), "room-1", timeslot.Slot{Start: start, End: end})
		if err != nil {
			t.Fatalf("FillFreedSlot failed: %v", err)
		}
		if result.ExaminedEntries != 0 || len(result.AssignedEntryIDs) != 0 {
			t.Fatalf("expected an empty pass, got %+v", result)
		}
	})

	t.Run("rolls back the booking when the entry vanished mid pass", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStorage()
		flaky := &flakyWaitlistStore{Storage: store}
		svc := NewWaitlistService(WaitlistServiceOptions{
			Waitlists:    flaky,
			Reservations: store,
			Classrooms:   store,
			IDGenerator:  sequenceIDs("cascade"),
			Now:          fixedNow,
		})

		seedCtx := context.Background()
		if err := store.CreateUser(seedCtx, persistence.User{ID: "user-1", StudentNumber: "s1001", Name: "user"}); err != nil {
			t.Fatalf("seed user failed: %v", err)
		}
		if err := store.CreateClassroom(seedCtx, persistence.Classroom{ID: "room-1", Name: "Room 101", Capacity: 10}); err != nil {
			t.Fatalf("seed classroom failed: %v", err)
		}

		start := serviceReference.Add(3 * time.Hour)
		end := start.Add(time.Hour)
		entry, err := svc.CreateEntry(seedCtx, CreateWaitlistParams{
			Principal: Principal{UserID: "user-1"},
			Input:     WaitlistInput{ClassroomID: "room-1", Start: start, End: end},
		})
		if err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
		flaky.failAssign = entry.ID

		result, err := svc.FillFreedSlot(seedCtx, "room-1", timeslot.Slot{Start: start, End: end})
		if err != nil {
			t.Fatalf("FillFreedSlot failed: %v", err)
		}
		if len(result.AssignedEntryIDs) != 0 {
			t.Fatalf("expected no assignment, got %+v", result)
		}

		// The rolled back booking must not hold the slot.
		overlapping, err := store.ListActiveOverlapping(seedCtx, "room-1", start, end)
		if err != nil {
			t.Fatalf("ListActiveOverlapping failed: %v", err)
		}
		if len(overlapping) != 0 {
			t.Fatalf("expected slot released after rollback, got %+v", overlapping)
		}
	})
}

// flakyWaitlistStore fails MarkAssigned for one entry, simulating an entry
// cancelled between listing and assignment.
type flakyWaitlistStore struct {
	*memory.Storage
	failAssign string
}

func (f *flakyWaitlistStore) MarkAssigned(ctx context.Context, id string) error {
	if id == f.failAssign {
		return persistence.ErrNotFound
	}
	return f.Storage.MarkAssigned(ctx, id)
}
