package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/classroom-reservation/internal/notifier"
	"github.com/example/classroom-reservation/internal/persistence"
	"github.com/example/classroom-reservation/internal/persistence/memory"
	"github.com/example/classroom-reservation/internal/realtime"
)

var serviceReference = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return serviceReference }

// sequenceIDs returns a generator yielding prefix-1, prefix-2, ...
func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	counter := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		counter++
		return fmt.Sprintf("%s-%d", prefix, counter)
	}
}

type publisherRecorder struct {
	mu     sync.Mutex
	events []notifier.Event
	err    error
}

func (p *publisherRecorder) Publish(_ context.Context, event notifier.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *publisherRecorder) Close() error { return nil }

func (p *publisherRecorder) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, 0, len(p.events))
	for _, event := range p.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type broadcastRecorder struct {
	mu      sync.Mutex
	changes []realtime.SlotChange
}

func (b *broadcastRecorder) Broadcast(_ context.Context, change realtime.SlotChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, change)
	return nil
}

type serviceEnv struct {
	store        *memory.Storage
	reservations *ReservationService
	waitlists    *WaitlistService
	publisher    *publisherRecorder
	broadcaster  *broadcastRecorder
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	store := memory.NewStorage()
	publisher := &publisherRecorder{}
	broadcaster := &broadcastRecorder{}

	waitlists := NewWaitlistService(WaitlistServiceOptions{
		Waitlists:     store,
		Reservations:  store,
		Classrooms:    store,
		Notifications: store,
		Publisher:     publisher,
		Broadcaster:   broadcaster,
		IDGenerator:   sequenceIDs("cascade"),
		Now:           fixedNow,
	})
	reservations := NewReservationService(ReservationServiceOptions{
		Reservations: store,
		Classrooms:   store,
		Users:        store,
		Filler:       waitlists,
		Publisher:    publisher,
		Broadcaster:  broadcaster,
		IDGenerator:  sequenceIDs("reservation"),
		Now:          fixedNow,
	})

	return &serviceEnv{
		store:        store,
		reservations: reservations,
		waitlists:    waitlists,
		publisher:    publisher,
		broadcaster:  broadcaster,
	}
}

func (e *serviceEnv) addUser(t *testing.T, id, studentNumber string) {
	t.Helper()
	err := e.store.CreateUser(context.Background(), persistence.User{
		ID:            id,
		StudentNumber: studentNumber,
		Name:          "user " + id,
		PasswordHash:  "x",
		CreatedAt:     serviceReference,
		UpdatedAt:     serviceReference,
	})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func (e *serviceEnv) addClassroom(t *testing.T, id, name string) {
	t.Helper()
	err := e.store.CreateClassroom(context.Background(), persistence.Classroom{
		ID:        id,
		Name:      name,
		Location:  "building A",
		Capacity:  30,
		CreatedAt: serviceReference,
		UpdatedAt: serviceReference,
	})
	if err != nil {
		t.Fatalf("failed to seed classroom: %v", err)
	}
}

// writeCountingReservationStore counts the reservation writes that reach the
// underlying store.
type writeCountingReservationStore struct {
	*memory.Storage
	mu     sync.Mutex
	writes int
}

func (s *writeCountingReservationStore) CreateReservation(ctx context.Context, reservation persistence.Reservation, now time.Time, maxActive int) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Storage.CreateReservation(ctx, reservation, now, maxActive)
}

func (s *writeCountingReservationStore) reset() {
	s.mu.Lock()
	s.writes = 0
	s.mu.Unlock()
}

func (s *writeCountingReservationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// slotAt returns the aligned one hour slot starting hours after the fixture
// reference.
func slotAt(hours int) (time.Time, time.Time) {
	start := serviceReference.Add(time.Duration(hours) * time.Hour)
	return start, start.Add(time.Hour)
}

func TestReservationService_CreateReservation(t *testing.T) {
	t.Parallel()

	t.Run("books a free slot and emits created event", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		detail, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		})
		if err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
		if detail.UserID != "user-1" || detail.ClassroomID != "room-1" {
			t.Fatalf("unexpected detail: %+v", detail)
		}
		if detail.ClassroomName != "Room 101" {
			t.Fatalf("expected classroom name on detail, got %q", detail.ClassroomName)
		}

		kinds := env.publisher.kinds()
		if len(kinds) != 1 || kinds[0] != notifier.KindReservationCreated {
			t.Fatalf("expected created event, got %v", kinds)
		}
		if len(env.broadcaster.changes) != 1 || env.broadcaster.changes[0].Change != realtime.ChangeReserved {
			t.Fatalf("expected reserved broadcast, got %+v", env.broadcaster.changes)
		}
	})

	t.Run("rejects an overlapping slot with ErrConflict", func(t *testing.T) {
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
			t.Fatalf("first booking failed: %v", err)
		}

		_, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-2"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("back-to-back slots do not conflict", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		if _, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		}); err != nil {
			t.Fatalf("first booking failed: %v", err)
		}

		nextStart, nextEnd := slotAt(4)
		if _, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: nextStart, End: nextEnd},
		}); err != nil {
			t.Fatalf("adjacent booking failed: %v", err)
		}
	})

	t.Run("enforces the active reservation limit", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addClassroom(t, "room-1", "Room 101")

		for i := 0; i < DefaultMaxActiveReservations; i++ {
			start, end := slotAt(3 + i)
			if _, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
				Principal: Principal{UserID: "user-1"},
				Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
			}); err != nil {
				t.Fatalf("booking %d failed: %v", i, err)
			}
		}

		start, end := slotAt(10)
		_, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["reservations"]; !ok {
			t.Fatalf("expected limit error on reservations, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects at the limit before reaching the write path", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStorage()
		writes := &writeCountingReservationStore{Storage: store}
		service := NewReservationService(ReservationServiceOptions{
			Reservations: writes,
			Classrooms:   store,
			Users:        store,
			IDGenerator:  sequenceIDs("reservation"),
			Now:          fixedNow,
		})

		ctx := context.Background()
		if err := store.CreateUser(ctx, persistence.User{ID: "user-1", StudentNumber: "s1001", Name: "user", PasswordHash: "x", CreatedAt: serviceReference, UpdatedAt: serviceReference}); err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
		if err := store.CreateClassroom(ctx, persistence.Classroom{ID: "room-1", Name: "Room 101", Location: "building A", Capacity: 30, CreatedAt: serviceReference, UpdatedAt: serviceReference}); err != nil {
			t.Fatalf("failed to seed classroom: %v", err)
		}
		for i := 0; i < DefaultMaxActiveReservations; i++ {
			start, end := slotAt(3 + i)
			err := store.CreateReservation(ctx, persistence.Reservation{
				ID:          fmt.Sprintf("seed-%d", i),
				ClassroomID: "room-1",
				UserID:      "user-1",
				Start:       start,
				End:         end,
				Status:      persistence.ReservationActive,
				CreatedAt:   serviceReference,
			}, serviceReference, 0)
			if err != nil {
				t.Fatalf("seed booking %d failed: %v", i, err)
			}
		}
		writes.reset()

		start, end := slotAt(10)
		_, err := service.CreateReservation(ctx, CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["reservations"]; !ok {
			t.Fatalf("expected limit error on reservations, got %v", vErr.FieldErrors)
		}
		if got := writes.count(); got != 0 {
			t.Fatalf("expected no reservation writes after the limit check, got %d", got)
		}
	})

	t.Run("rejects an unknown classroom", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")

		start, end := slotAt(3)
		_, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input:     ReservationInput{ClassroomID: "room-missing", Start: start, End: end},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["classroom_id"]; !ok {
			t.Fatalf("expected error on classroom_id, got %v", vErr.FieldErrors)
		}
	})

	t.Run("drops unknown participant numbers and the owner", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")

		start, end := slotAt(3)
		detail, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-1"},
			Input: ReservationInput{
				ClassroomID:        "room-1",
				Start:              start,
				End:                end,
				ParticipantNumbers: []string{"s1002", "s9999", "s1001"},
			},
		})
		if err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
		if len(detail.ParticipantIDs) != 1 || detail.ParticipantIDs[0] != "user-2" {
			t.Fatalf("expected only user-2 as participant, got %v", detail.ParticipantIDs)
		}
	})
}

func TestReservationService_CancelReservation(t *testing.T) {
	t.Parallel()

	book := func(t *testing.T, env *serviceEnv, userID string, hours int) persistence.ReservationDetail {
		t.Helper()
		start, end := slotAt(hours)
		detail, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: userID},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		})
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		return detail
	}

	t.Run("owner frees the slot", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")
		detail := book(t, env, "user-1", 3)

		if _, err := env.reservations.CancelReservation(context.Background(), Principal{UserID: "user-1"}, detail.ID); err != nil {
			t.Fatalf("CancelReservation failed: %v", err)
		}

		start, end := slotAt(3)
		if _, err := env.reservations.CreateReservation(context.Background(), CreateReservationParams{
			Principal: Principal{UserID: "user-2"},
			Input:     ReservationInput{ClassroomID: "room-1", Start: start, End: end},
		}); err != nil {
			t.Fatalf("rebooking freed slot failed: %v", err)
		}
	})

	t.Run("non-owner is rejected, admin is allowed", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")
		detail := book(t, env, "user-1", 3)

		if _, err := env.reservations.CancelReservation(context.Background(), Principal{UserID: "user-2"}, detail.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := env.reservations.CancelReservation(context.Background(), Principal{UserID: "user-2", IsAdmin: true}, detail.ID); err != nil {
			t.Fatalf("admin cancel failed: %v", err)
		}
	})

	t.Run("cancelling twice reports not found", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addClassroom(t, "room-1", "Room 101")
		detail := book(t, env, "user-1", 3)

		if _, err := env.reservations.CancelReservation(context.Background(), Principal{UserID: "user-1"}, detail.ID); err != nil {
			t.Fatalf("first cancel failed: %v", err)
		}
		if _, err := env.reservations.CancelReservation(context.Background(), Principal{UserID: "user-1"}, detail.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second cancel, got %v", err)
		}
	})

	t.Run("cancellation backfills from the waitlist", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addUser(t, "user-2", "s1002")
		env.addClassroom(t, "room-1", "Room 101")
		detail := book(t, env, "user-1", 3)

		start, end := slotAt(3)
		if _, err := env.waitlists.CreateEntry(context.Background(), CreateWaitlistParams{
			Principal: Principal{UserID: "user-2"},
			Input:     WaitlistInput{ClassroomID: "room-1", Start: start, End: end},
		}); err != nil {
			t.Fatalf("waitlist join failed: %v", err)
		}

		result, err := env.reservations.CancelReservation(context.Background(), Principal{UserID: "user-1"}, detail.ID)
		if err != nil {
			t.Fatalf("CancelReservation failed: %v", err)
		}
		if len(result.AssignedEntryIDs) != 1 {
			t.Fatalf("expected one waitlist assignment, got %+v", result)
		}

		mine, err := env.reservations.ListMyReservations(context.Background(), Principal{UserID: "user-2"})
		if err != nil {
			t.Fatalf("ListMyReservations failed: %v", err)
		}
		if len(mine) != 1 || !mine[0].Start.Equal(start) {
			t.Fatalf("expected user-2 to own the freed slot, got %+v", mine)
		}
	})
}

func TestReservationService_TopClassrooms(t *testing.T) {
	t.Parallel()

	seedBooking := func(t *testing.T, env *serviceEnv, id, classroomID string, hours int) {
		t.Helper()
		start, end := slotAt(hours)
		err := env.store.CreateReservation(context.Background(), persistence.Reservation{
			ID:          id,
			ClassroomID: classroomID,
			UserID:      "user-1",
			Start:       start,
			End:         end,
			Status:      persistence.ReservationActive,
			CreatedAt:   serviceReference,
		}, serviceReference, 0)
		if err != nil {
			t.Fatalf("seed booking %s failed: %v", id, err)
		}
	}

	t.Run("ranks by active count and ignores cancelled bookings", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		env.addUser(t, "user-1", "s1001")
		env.addClassroom(t, "room-a", "Annex")
		env.addClassroom(t, "room-b", "Lab")
		env.addClassroom(t, "room-c", "Studio")

		seedBooking(t, env, "res-a1", "room-a", 3)
		seedBooking(t, env, "res-a2", "room-a", 4)
		seedBooking(t, env, "res-b1", "room-b", 3)
		seedBooking(t, env, "res-c1", "room-c", 3)
		seedBooking(t, env, "res-c2", "room-c", 4)
		if err := env.store.CancelReservation(context.Background(), "res-c2"); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}

		usages, err := env.reservations.TopClassrooms(context.Background(), Principal{UserID: "user-1", IsAdmin: true})
		if err != nil {
			t.Fatalf("TopClassrooms failed: %v", err)
		}
		if len(usages) != 3 {
			t.Fatalf("expected three classrooms ranked, got %+v", usages)
		}
		if usages[0].ClassroomID != "room-a" || usages[0].ReservationCount != 2 {
			t.Fatalf("expected room-a first with two bookings, got %+v", usages[0])
		}
		if usages[1].Name != "Lab" || usages[2].Name != "Studio" {
			t.Fatalf("expected ties broken by name, got %+v", usages[1:])
		}
		if usages[2].ReservationCount != 1 {
			t.Fatalf("expected the cancelled booking excluded, got %+v", usages[2])
		}
	})

	t.Run("rejects non-admin callers", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		_, err := env.reservations.TopClassrooms(context.Background(), Principal{UserID: "user-1"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}
