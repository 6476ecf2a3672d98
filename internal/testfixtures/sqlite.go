package testfixtures

import (
	"context"
	"testing"

	"github.com/example/classroom-reservation/internal/persistence"
	"github.com/example/classroom-reservation/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a migrated in-memory
// SQLite database for integration-style tests.
type SQLiteHarness struct {
	Users         persistence.UserRepository
	Classrooms    persistence.ClassroomRepository
	Reservations  persistence.ReservationRepository
	Waitlists     persistence.WaitlistRepository
	Notifications persistence.NotificationRepository
	Sessions      persistence.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness over a fresh database. A cleanup
// callback is registered with the provided testing.TB, so calling Close is
// optional.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	db, err := sqlite.Open(":memory:")
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:         sqlite.NewUserRepository(db),
		Classrooms:    sqlite.NewClassroomRepository(db),
		Reservations:  sqlite.NewReservationRepository(db),
		Waitlists:     sqlite.NewWaitlistRepository(db),
		Notifications: sqlite.NewNotificationRepository(db),
		Sessions:      sqlite.NewSessionRepository(db),
		cleanup: func() {
			_ = db.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
