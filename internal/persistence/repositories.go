package persistence

import (
	"context"
	"time"
)

// UserRepository exposes account storage operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByStudentNumber(ctx context.Context, studentNumber string) (User, error)
	// ResolveStudentNumbers maps student numbers to user ids, preserving input
	// order and silently dropping numbers that match no account.
	ResolveStudentNumbers(ctx context.Context, studentNumbers []string) ([]string, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// ClassroomFilter narrows classroom catalog queries. Nil fields are ignored.
type ClassroomFilter struct {
	MinCapacity   *int
	HasProjector  *bool
	HasWhiteboard *bool
	NameContains  string
}

// ClassroomRepository exposes CRUD operations for classrooms.
type ClassroomRepository interface {
	CreateClassroom(ctx context.Context, room Classroom) error
	UpdateClassroom(ctx context.Context, room Classroom) error
	GetClassroom(ctx context.Context, id string) (Classroom, error)
	ListClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error)
	DeleteClassroom(ctx context.Context, id string) error
}

// ReservationRepository stores reservations and their participants.
//
// CreateReservation is the single write path for new reservations: it re-runs
// the per-user cap check (when maxActive > 0) and the overlap check against
// active reservations inside the same transaction as the insert, so two
// concurrent requests for overlapping slots can never both commit. Losing
// writers receive ErrConflict or ErrLimitExceeded.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, now time.Time, maxActive int) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	GetReservationDetail(ctx context.Context, id string) (ReservationDetail, error)
	// CancelReservation flips an active reservation to cancelled. Cancelling
	// a missing or already-cancelled reservation returns ErrNotFound.
	CancelReservation(ctx context.Context, id string) error
	CountFutureActiveByUser(ctx context.Context, userID string, now time.Time) (int, error)
	// ListActiveOverlapping returns active reservations on the classroom
	// whose interval intersects [start, end), ordered by start.
	ListActiveOverlapping(ctx context.Context, classroomID string, start, end time.Time) ([]Reservation, error)
	// ListActiveByClassroom returns the classroom timeline: all active
	// reservations ordered by start.
	ListActiveByClassroom(ctx context.Context, classroomID string) ([]ReservationDetail, error)
	// ListActiveForUser returns active reservations the user owns or
	// participates in, ordered by start.
	ListActiveForUser(ctx context.Context, userID string) ([]ReservationDetail, error)
	// ListStartingBetween returns active reservations with start in
	// (from, to], used by the reminder sweep.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]ReservationDetail, error)
	// ListTopClassrooms returns the classrooms with the most active
	// reservations, ordered by count descending then name ascending.
	// Classrooms without active reservations are omitted.
	ListTopClassrooms(ctx context.Context, limit int) ([]ClassroomUsage, error)
}

// WaitlistRepository stores waitlist entries.
type WaitlistRepository interface {
	// CreateEntry persists a new waiting entry, assigning the next queue
	// position within the (classroom, start, end) triple in the same
	// transaction as the insert.
	CreateEntry(ctx context.Context, entry WaitlistEntry) (WaitlistEntry, error)
	GetEntry(ctx context.Context, id string) (WaitlistEntry, error)
	// CancelEntry flips a waiting entry to cancelled. Terminal entries
	// return ErrNotFound.
	CancelEntry(ctx context.Context, id string) error
	// MarkAssigned flips a waiting entry to assigned.
	MarkAssigned(ctx context.Context, id string) error
	// ListWaitingContained returns waiting entries on the classroom whose
	// interval lies fully inside [start, end], ordered by creation time
	// ascending then queue position ascending.
	ListWaitingContained(ctx context.Context, classroomID string, start, end time.Time) ([]WaitlistEntry, error)
	ListWaitingForUser(ctx context.Context, userID string) ([]WaitlistEntry, error)
}

// NotificationRepository stores per-user inbox entries.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) error
	ListForUser(ctx context.Context, userID string) ([]Notification, error)
	// MarkRead marks the notification read when it belongs to the user.
	MarkRead(ctx context.Context, id, userID string) error
	// HasNotification reports whether a notification of the given kind
	// already exists for the (user, reservation) pair. The reminder sweep
	// uses this to avoid duplicate sends.
	HasNotification(ctx context.Context, userID, reservationID, kind string) (bool, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSessionByToken(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
