package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/classroom-reservation/internal/persistence"
)

func newReservation(id, classroomID, userID string, startHour, endHour int) persistence.Reservation {
	start, end := slotHours(startHour, endHour)
	return persistence.Reservation{
		ID:          id,
		ClassroomID: classroomID,
		UserID:      userID,
		Start:       start,
		End:         end,
		Status:      persistence.ReservationActive,
		CreatedAt:   testReference,
	}
}

func TestCreateReservationAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	participant := seedUser(t, db, "u2", "s200")
	seedClassroom(t, db, "c1")

	repo := NewReservationRepository(db)

	reservation := newReservation("r1", "c1", "u1", 10, 11)
	reservation.ParticipantIDs = []string{participant.ID}
	require.NoError(t, repo.CreateReservation(ctx, reservation, testReference, 3))

	stored, err := repo.GetReservation(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, persistence.ReservationActive, stored.Status)
	require.Equal(t, []string{"u2"}, stored.ParticipantIDs)
	require.True(t, stored.Start.Equal(reservation.Start))

	detail, err := repo.GetReservationDetail(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "Room c1", detail.ClassroomName)
	require.Equal(t, "User s100", detail.OwnerName)
	require.Equal(t, "s100", detail.OwnerStudentNumber)
}

func TestCreateReservationRejectsOverlap(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedUser(t, db, "u2", "s200")
	seedClassroom(t, db, "c1")

	repo := NewReservationRepository(db)
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r1", "c1", "u1", 10, 11), testReference, 3))

	err := repo.CreateReservation(ctx, newReservation("r2", "c1", "u2", 10, 11), testReference, 3)
	require.ErrorIs(t, err, persistence.ErrConflict)

	// Back-to-back slots share a boundary instant but never overlap.
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r3", "c1", "u2", 11, 12), testReference, 3))

	// Cancelled reservations free the slot.
	require.NoError(t, repo.CancelReservation(ctx, "r1"))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r4", "c1", "u2", 10, 11), testReference, 3))
}

func TestCreateReservationEnforcesLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedClassroom(t, db, "c1")

	repo := NewReservationRepository(db)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, repo.CreateReservation(ctx, newReservation(id, "c1", "u1", 10+2*i, 11+2*i), testReference, 3))
	}

	err := repo.CreateReservation(ctx, newReservation("r4", "c1", "u1", 20, 21), testReference, 3)
	require.ErrorIs(t, err, persistence.ErrLimitExceeded)

	// Cancelling one restores capacity.
	require.NoError(t, repo.CancelReservation(ctx, "r0"))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r5", "c1", "u1", 20, 21), testReference, 3))

	// maxActive <= 0 disables the cap; the cascade path uses this.
	err = repo.CreateReservation(ctx, newReservation("r6", "c1", "u1", 22, 23), testReference, 0)
	require.NoError(t, err)
}

func TestCancelReservationIsTerminal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedClassroom(t, db, "c1")

	repo := NewReservationRepository(db)
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r1", "c1", "u1", 10, 11), testReference, 3))

	require.NoError(t, repo.CancelReservation(ctx, "r1"))
	require.ErrorIs(t, repo.CancelReservation(ctx, "r1"), persistence.ErrNotFound)
	require.ErrorIs(t, repo.CancelReservation(ctx, "missing"), persistence.ErrNotFound)
}

func TestConcurrentOverlappingCreates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedClassroom(t, db, "c1")
	const attempts = 8
	for i := 0; i < attempts; i++ {
		seedUser(t, db, fmt.Sprintf("u%d", i), fmt.Sprintf("s%d", i))
	}

	repo := NewReservationRepository(db)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reservation := newReservation(fmt.Sprintf("r%d", i), "c1", fmt.Sprintf("u%d", i), 10, 11)
			errs[i] = repo.CreateReservation(ctx, reservation, testReference, 3)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, persistence.ErrConflict)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one concurrent overlapping create may commit")
}

func TestListActiveOverlapping(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedClassroom(t, db, "c1")

	repo := NewReservationRepository(db)
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r1", "c1", "u1", 9, 10), testReference, 0))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r2", "c1", "u1", 12, 13), testReference, 0))

	start, end := slotHours(10, 12)
	overlapping, err := repo.ListActiveOverlapping(ctx, "c1", start, end)
	require.NoError(t, err)
	require.Empty(t, overlapping, "adjacent reservations do not intersect the window")

	start, end = slotHours(9, 13)
	overlapping, err = repo.ListActiveOverlapping(ctx, "c1", start, end)
	require.NoError(t, err)
	require.Len(t, overlapping, 2)
	require.Equal(t, "r1", overlapping[0].ID)
}

func TestListActiveForUserIncludesParticipation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedUser(t, db, "u2", "s200")
	seedClassroom(t, db, "c1")

	repo := NewReservationRepository(db)

	owned := newReservation("r1", "c1", "u1", 9, 10)
	require.NoError(t, repo.CreateReservation(ctx, owned, testReference, 0))

	joined := newReservation("r2", "c1", "u2", 12, 13)
	joined.ParticipantIDs = []string{"u1"}
	require.NoError(t, repo.CreateReservation(ctx, joined, testReference, 0))

	details, err := repo.ListActiveForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, details, 2)
	require.Equal(t, "r1", details[0].ID)
	require.Equal(t, "r2", details[1].ID)
}

func TestListStartingBetween(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedUser(t, db, "u2", "s200")
	seedClassroom(t, db, "c1")

	repo := NewReservationRepository(db)

	soon := newReservation("r1", "c1", "u1", 10, 11)
	soon.ParticipantIDs = []string{"u2"}
	require.NoError(t, repo.CreateReservation(ctx, soon, testReference, 0))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r2", "c1", "u1", 15, 16), testReference, 0))

	now := testReference.Add(9*time.Hour + 45*time.Minute)
	details, err := repo.ListStartingBetween(ctx, now, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "r1", details[0].ID)
	require.Equal(t, []string{"u2"}, details[0].ParticipantIDs)
}

func TestListTopClassrooms(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedClassroom(t, db, "c1")
	seedClassroom(t, db, "c2")
	seedClassroom(t, db, "c3")

	repo := NewReservationRepository(db)
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r1", "c1", "u1", 10, 11), testReference, 0))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r2", "c1", "u1", 11, 12), testReference, 0))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r3", "c2", "u1", 10, 11), testReference, 0))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r4", "c2", "u1", 11, 12), testReference, 0))
	require.NoError(t, repo.CreateReservation(ctx, newReservation("r5", "c3", "u1", 10, 11), testReference, 0))

	// Cancelled reservations drop out of the ranking.
	require.NoError(t, repo.CancelReservation(ctx, "r4"))

	usages, err := repo.ListTopClassrooms(ctx, 5)
	require.NoError(t, err)
	require.Len(t, usages, 3)
	require.Equal(t, "c1", usages[0].ClassroomID)
	require.Equal(t, 2, usages[0].ReservationCount)
	require.Equal(t, "Room c1", usages[0].Name)
	require.Equal(t, 1, usages[1].ReservationCount)
	require.Equal(t, 1, usages[2].ReservationCount)

	limited, err := repo.ListTopClassrooms(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "c1", limited[0].ClassroomID)
}
