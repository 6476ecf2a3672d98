package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/classroom-reservation/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository on SQLite.
type ReservationRepository struct {
	db *DB
}

// NewReservationRepository constructs a repository over the shared handle.
func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// CreateReservation inserts a reservation after re-running the per-user cap
// and overlap checks inside the same transaction. The single-writer
// connection serializes the whole unit, so the checks are authoritative even
// when a pre-check outside the transaction already passed.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation, now time.Time, maxActive int) error {
	if reservation.ID == "" {
		return fmt.Errorf("sqlite: reservation id is empty")
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if maxActive > 0 {
			var count int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM reservations
				 WHERE user_id = ? AND status = 'active' AND start_time > ?`,
				reservation.UserID, formatTime(now),
			).Scan(&count)
			if err != nil {
				return mapError(err)
			}
			if count >= maxActive {
				return persistence.ErrLimitExceeded
			}
		}

		var overlapping int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reservations
			 WHERE classroom_id = ? AND status = 'active'
			 AND start_time < ? AND ? < end_time`,
			reservation.ClassroomID, formatTime(reservation.End), formatTime(reservation.Start),
		).Scan(&overlapping)
		if err != nil {
			return mapError(err)
		}
		if overlapping > 0 {
			return persistence.ErrConflict
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reservations (id, classroom_id, user_id, start_time, end_time, status, created_at)
			 VALUES (?, ?, ?, ?, ?, 'active', ?)`,
			reservation.ID,
			reservation.ClassroomID,
			reservation.UserID,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			formatTime(reservation.CreatedAt),
		)
		if err != nil {
			return mapError(err)
		}

		for _, participantID := range reservation.ParticipantIDs {
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO reservation_participants (reservation_id, user_id) VALUES (?, ?)`,
				reservation.ID, participantID,
			)
			if err != nil {
				return mapError(err)
			}
		}

		return nil
	})
}

// GetReservation retrieves a reservation with its participant ids.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT id, classroom_id, user_id, start_time, end_time, status, created_at
		 FROM reservations WHERE id = ?`, id)

	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, mapError(err)
	}

	participants, err := r.listParticipants(ctx, id)
	if err != nil {
		return persistence.Reservation{}, err
	}
	reservation.ParticipantIDs = participants

	return reservation, nil
}

// GetReservationDetail retrieves a reservation joined with classroom and
// owner display fields.
func (r *ReservationRepository) GetReservationDetail(ctx context.Context, id string) (persistence.ReservationDetail, error) {
	row := r.db.db.QueryRowContext(ctx, detailSelect+` WHERE r.id = ?`, id)

	detail, err := scanReservationDetail(row)
	if err != nil {
		return persistence.ReservationDetail{}, mapError(err)
	}

	participants, err := r.listParticipants(ctx, id)
	if err != nil {
		return persistence.ReservationDetail{}, err
	}
	detail.ParticipantIDs = participants

	return detail, nil
}

// CancelReservation flips an active reservation to cancelled. A missing or
// already-cancelled reservation reports ErrNotFound, so a repeated cancel can
// never trigger a second cascade for the same slot.
func (r *ReservationRepository) CancelReservation(ctx context.Context, id string) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE reservations SET status = 'cancelled' WHERE id = ? AND status = 'active'`, id)
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

// CountFutureActiveByUser counts active reservations the user owns whose
// start lies strictly after now.
func (r *ReservationRepository) CountFutureActiveByUser(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations
		 WHERE user_id = ? AND status = 'active' AND start_time > ?`,
		userID, formatTime(now),
	).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// ListActiveOverlapping returns active reservations intersecting [start, end).
func (r *ReservationRepository) ListActiveOverlapping(ctx context.Context, classroomID string, start, end time.Time) ([]persistence.Reservation, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT id, classroom_id, user_id, start_time, end_time, status, created_at
		 FROM reservations
		 WHERE classroom_id = ? AND status = 'active'
		 AND start_time < ? AND ? < end_time
		 ORDER BY start_time ASC`,
		classroomID, formatTime(end), formatTime(start),
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}

const detailSelect = `
	SELECT r.id, r.classroom_id, r.user_id, r.start_time, r.end_time, r.status, r.created_at,
	       c.name, c.location, u.name, u.student_number
	FROM reservations r
	JOIN classrooms c ON r.classroom_id = c.id
	JOIN users u ON r.user_id = u.id`

// ListActiveByClassroom returns the active timeline for a classroom.
func (r *ReservationRepository) ListActiveByClassroom(ctx context.Context, classroomID string) ([]persistence.ReservationDetail, error) {
	rows, err := r.db.db.QueryContext(ctx,
		detailSelect+` WHERE r.classroom_id = ? AND r.status = 'active' ORDER BY r.start_time ASC`,
		classroomID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectDetails(rows)
}

// ListActiveForUser returns active reservations the user owns or joins.
func (r *ReservationRepository) ListActiveForUser(ctx context.Context, userID string) ([]persistence.ReservationDetail, error) {
	rows, err := r.db.db.QueryContext(ctx,
		detailSelect+`
		 LEFT JOIN reservation_participants rp ON r.id = rp.reservation_id
		 WHERE (r.user_id = ? OR rp.user_id = ?) AND r.status = 'active'
		 GROUP BY r.id
		 ORDER BY r.start_time ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectDetails(rows)
}

// ListStartingBetween returns active reservations with start in (from, to],
// including participant ids so reminders reach everyone attending.
func (r *ReservationRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]persistence.ReservationDetail, error) {
	rows, err := r.db.db.QueryContext(ctx,
		detailSelect+` WHERE r.status = 'active' AND r.start_time > ? AND r.start_time <= ? ORDER BY r.start_time ASC`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	details, err := collectDetails(rows)
	if err != nil {
		return nil, err
	}

	for i := range details {
		participants, err := r.listParticipants(ctx, details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].ParticipantIDs = participants
	}

	return details, nil
}

// ListTopClassrooms ranks classrooms by active reservation count.
func (r *ReservationRepository) ListTopClassrooms(ctx context.Context, limit int) ([]persistence.ClassroomUsage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.location, COUNT(*) AS reservation_count
		 FROM reservations r
		 JOIN classrooms c ON r.classroom_id = c.id
		 WHERE r.status = 'active'
		 GROUP BY c.id, c.name, c.location
		 ORDER BY reservation_count DESC, c.name ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var usages []persistence.ClassroomUsage
	for rows.Next() {
		var usage persistence.ClassroomUsage
		if err := rows.Scan(&usage.ClassroomID, &usage.Name, &usage.Location, &usage.ReservationCount); err != nil {
			return nil, mapError(err)
		}
		usages = append(usages, usage)
	}
	return usages, rows.Err()
}

func (r *ReservationRepository) listParticipants(ctx context.Context, reservationID string) ([]string, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT user_id FROM reservation_participants WHERE reservation_id = ? ORDER BY user_id`, reservationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation persistence.Reservation
		start       string
		end         string
		created     string
		status      string
	)
	if err := row.Scan(&reservation.ID, &reservation.ClassroomID, &reservation.UserID, &start, &end, &status, &created); err != nil {
		return persistence.Reservation{}, err
	}

	var err error
	if reservation.Start, err = parseTime(start); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.End, err = parseTime(end); err != nil {
		return persistence.Reservation{}, err
	}
	if reservation.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Reservation{}, err
	}
	reservation.Status = persistence.ReservationStatus(status)

	return reservation, nil
}

func scanReservationDetail(row rowScanner) (persistence.ReservationDetail, error) {
	var (
		detail  persistence.ReservationDetail
		start   string
		end     string
		created string
		status  string
	)
	err := row.Scan(
		&detail.ID, &detail.ClassroomID, &detail.UserID, &start, &end, &status, &created,
		&detail.ClassroomName, &detail.ClassroomLocation, &detail.OwnerName, &detail.OwnerStudentNumber,
	)
	if err != nil {
		return persistence.ReservationDetail{}, err
	}

	if detail.Start, err = parseTime(start); err != nil {
		return persistence.ReservationDetail{}, err
	}
	if detail.End, err = parseTime(end); err != nil {
		return persistence.ReservationDetail{}, err
	}
	if detail.CreatedAt, err = parseTime(created); err != nil {
		return persistence.ReservationDetail{}, err
	}
	detail.Status = persistence.ReservationStatus(status)

	return detail, nil
}

func collectDetails(rows *sql.Rows) ([]persistence.ReservationDetail, error) {
	var details []persistence.ReservationDetail
	for rows.Next() {
		detail, err := scanReservationDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}
