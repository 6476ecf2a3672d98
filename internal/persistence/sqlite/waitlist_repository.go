package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/classroom-reservation/internal/persistence"
)

// WaitlistRepository implements persistence.WaitlistRepository on SQLite.
type WaitlistRepository struct {
	db *DB
}

// NewWaitlistRepository constructs a repository over the shared handle.
func NewWaitlistRepository(db *DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// CreateEntry inserts a waiting entry. The queue position is computed as
// MAX(queue_position)+1 within the (classroom, start, end) triple in the same
// transaction, so positions stay unique and increasing under concurrency.
func (r *WaitlistRepository) CreateEntry(ctx context.Context, entry persistence.WaitlistEntry) (persistence.WaitlistEntry, error) {
	if entry.ID == "" {
		return persistence.WaitlistEntry{}, fmt.Errorf("sqlite: waitlist entry id is empty")
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(queue_position), 0) + 1 FROM waitlist
			 WHERE classroom_id = ? AND start_time = ? AND end_time = ?`,
			entry.ClassroomID, formatTime(entry.Start), formatTime(entry.End),
		).Scan(&entry.QueuePosition)
		if err != nil {
			return mapError(err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO waitlist (id, classroom_id, user_id, start_time, end_time, queue_position, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 'waiting', ?)`,
			entry.ID,
			entry.ClassroomID,
			entry.UserID,
			formatTime(entry.Start),
			formatTime(entry.End),
			entry.QueuePosition,
			formatTime(entry.CreatedAt),
		)
		return mapError(err)
	})
	if err != nil {
		return persistence.WaitlistEntry{}, err
	}

	entry.Status = persistence.WaitlistWaiting
	return entry, nil
}

// GetEntry retrieves a waitlist entry by id.
func (r *WaitlistRepository) GetEntry(ctx context.Context, id string) (persistence.WaitlistEntry, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT id, classroom_id, user_id, start_time, end_time, queue_position, status, created_at
		 FROM waitlist WHERE id = ?`, id)

	entry, err := scanWaitlistEntry(row)
	if err != nil {
		return persistence.WaitlistEntry{}, mapError(err)
	}
	return entry, nil
}

// CancelEntry flips a waiting entry to cancelled. Entries already in a
// terminal state report ErrNotFound; terminal states are never reopened.
func (r *WaitlistRepository) CancelEntry(ctx context.Context, id string) error {
	return r.transition(ctx, id, persistence.WaitlistCancelled)
}

// MarkAssigned flips a waiting entry to assigned.
func (r *WaitlistRepository) MarkAssigned(ctx context.Context, id string) error {
	return r.transition(ctx, id, persistence.WaitlistAssigned)
}

func (r *WaitlistRepository) transition(ctx context.Context, id string, to persistence.WaitlistStatus) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE waitlist SET status = ? WHERE id = ? AND status = 'waiting'`, string(to), id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListWaitingContained returns waiting entries fully inside [start, end],
// in FIFO order: creation time ascending, queue position as tie-break.
func (r *WaitlistRepository) ListWaitingContained(ctx context.Context, classroomID string, start, end time.Time) ([]persistence.WaitlistEntry, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT id, classroom_id, user_id, start_time, end_time, queue_position, status, created_at
		 FROM waitlist
		 WHERE classroom_id = ? AND status = 'waiting'
		 AND start_time >= ? AND end_time <= ?
		 ORDER BY created_at ASC, queue_position ASC`,
		classroomID, formatTime(start), formatTime(end),
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectWaitlistEntries(rows)
}

// ListWaitingForUser returns the user's waiting entries ordered by creation.
func (r *WaitlistRepository) ListWaitingForUser(ctx context.Context, userID string) ([]persistence.WaitlistEntry, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT id, classroom_id, user_id, start_time, end_time, queue_position, status, created_at
		 FROM waitlist
		 WHERE user_id = ? AND status = 'waiting'
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectWaitlistEntries(rows)
}

func scanWaitlistEntry(row rowScanner) (persistence.WaitlistEntry, error) {
	var (
		entry   persistence.WaitlistEntry
		start   string
		end     string
		created string
		status  string
	)
	err := row.Scan(&entry.ID, &entry.ClassroomID, &entry.UserID, &start, &end, &entry.QueuePosition, &status, &created)
	if err != nil {
		return persistence.WaitlistEntry{}, err
	}

	if entry.Start, err = parseTime(start); err != nil {
		return persistence.WaitlistEntry{}, err
	}
	if entry.End, err = parseTime(end); err != nil {
		return persistence.WaitlistEntry{}, err
	}
	if entry.CreatedAt, err = parseTime(created); err != nil {
		return persistence.WaitlistEntry{}, err
	}
	entry.Status = persistence.WaitlistStatus(status)

	return entry, nil
}

func collectWaitlistEntries(rows *sql.Rows) ([]persistence.WaitlistEntry, error) {
	var entries []persistence.WaitlistEntry
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
