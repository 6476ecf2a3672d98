package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict is returned when a reservation write loses the
	// in-transaction overlap check against another active reservation.
	ErrConflict = errors.New("persistence: slot conflict")
	// ErrLimitExceeded is returned when the per-user active reservation cap
	// is reached at commit time.
	ErrLimitExceeded = errors.New("persistence: reservation limit exceeded")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
