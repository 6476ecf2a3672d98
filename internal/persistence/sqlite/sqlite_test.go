package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/classroom-reservation/internal/persistence"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func seedUser(t *testing.T, db *DB, id, studentNumber string) persistence.User {
	t.Helper()

	user := persistence.User{
		ID:            id,
		StudentNumber: studentNumber,
		Name:          "User " + studentNumber,
		PasswordHash:  "hash",
		CreatedAt:     testReference,
		UpdatedAt:     testReference,
	}
	require.NoError(t, NewUserRepository(db).CreateUser(context.Background(), user))
	return user
}

func seedClassroom(t *testing.T, db *DB, id string) persistence.Classroom {
	t.Helper()

	room := persistence.Classroom{
		ID:        id,
		Name:      "Room " + id,
		Location:  "Building A",
		Capacity:  20,
		CreatedAt: testReference,
		UpdatedAt: testReference,
	}
	require.NoError(t, NewClassroomRepository(db).CreateClassroom(context.Background(), room))
	return room
}

// testReference is a fixed instant so slot arithmetic stays deterministic.
var testReference = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func slotHours(startHour, endHour int) (time.Time, time.Time) {
	return testReference.Add(time.Duration(startHour) * time.Hour),
		testReference.Add(time.Duration(endHour) * time.Hour)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestMapError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")

	err := NewUserRepository(db).CreateUser(ctx, persistence.User{
		ID:            "u2",
		StudentNumber: "s100",
		Name:          "Duplicate",
		PasswordHash:  "hash",
		CreatedAt:     testReference,
		UpdatedAt:     testReference,
	})
	require.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestResolveStudentNumbersSkipsUnknown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	seedUser(t, db, "u2", "s200")

	repo := NewUserRepository(db)
	ids, err := repo.ResolveStudentNumbers(ctx, []string{"s200", "missing", "s100", "s200"})
	require.NoError(t, err)
	require.Equal(t, []string{"u2", "u1"}, ids)

	ids, err = repo.ResolveStudentNumbers(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestClassroomFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewClassroomRepository(db)

	rooms := []persistence.Classroom{
		{ID: "c1", Name: "Lecture Hall", Location: "A", Capacity: 100, HasProjector: true},
		{ID: "c2", Name: "Seminar Room", Location: "B", Capacity: 12, HasWhiteboard: true},
		{ID: "c3", Name: "Lab", Location: "B", Capacity: 30, HasProjector: true, HasWhiteboard: true},
	}
	for _, room := range rooms {
		room.CreatedAt = testReference
		room.UpdatedAt = testReference
		require.NoError(t, repo.CreateClassroom(ctx, room))
	}

	minCapacity := 20
	projector := true

	found, err := repo.ListClassrooms(ctx, persistence.ClassroomFilter{MinCapacity: &minCapacity, HasProjector: &projector})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.Equal(t, "Lab", found[0].Name)
	require.Equal(t, "Lecture Hall", found[1].Name)

	found, err = repo.ListClassrooms(ctx, persistence.ClassroomFilter{NameContains: "Seminar"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "c2", found[0].ID)

	found, err = repo.ListClassrooms(ctx, persistence.ClassroomFilter{})
	require.NoError(t, err)
	require.Len(t, found, 3)
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	repo := NewSessionRepository(db)

	session := persistence.Session{
		ID:        "sess1",
		UserID:    "u1",
		Token:     "token-1",
		ExpiresAt: testReference.Add(24 * time.Hour),
		CreatedAt: testReference,
	}
	require.NoError(t, repo.CreateSession(ctx, session))

	stored, err := repo.GetSessionByToken(ctx, "token-1")
	require.NoError(t, err)
	require.Equal(t, "u1", stored.UserID)
	require.Nil(t, stored.RevokedAt)

	require.NoError(t, repo.RevokeSession(ctx, "token-1", testReference.Add(time.Hour)))
	require.ErrorIs(t, repo.RevokeSession(ctx, "token-1", testReference.Add(time.Hour)), persistence.ErrNotFound)

	stored, err = repo.GetSessionByToken(ctx, "token-1")
	require.NoError(t, err)
	require.NotNil(t, stored.RevokedAt)

	require.NoError(t, repo.DeleteExpiredSessions(ctx, testReference.Add(48*time.Hour)))
	_, err = repo.GetSessionByToken(ctx, "token-1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestNotificationInbox(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "s100")
	repo := NewNotificationRepository(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateNotification(ctx, persistence.Notification{
			ID:        fmt.Sprintf("n%d", i),
			UserID:    "u1",
			Kind:      "waitlist_assigned",
			Message:   "assigned",
			CreatedAt: testReference.Add(time.Duration(i) * time.Minute),
		}))
	}

	notifications, err := repo.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, notifications, 3)
	require.Equal(t, "n2", notifications[0].ID)

	require.NoError(t, repo.MarkRead(ctx, "n0", "u1"))
	require.ErrorIs(t, repo.MarkRead(ctx, "n0", "other"), persistence.ErrNotFound)

	notifications, err = repo.ListForUser(ctx, "u1")
	require.NoError(t, err)
	for _, notification := range notifications {
		if notification.ID == "n0" {
			require.True(t, notification.IsRead)
		}
	}
}
