package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/classroom-reservation/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository on SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository constructs a repository over the shared handle.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession persists a newly issued session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.Token == "" {
		return fmt.Errorf("sqlite: session id and token are required")
	}
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, created_at, revoked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Token,
		formatTime(session.ExpiresAt), formatTime(session.CreatedAt),
		formatNullableTime(session.RevokedAt),
	)
	return mapError(err)
}

// GetSessionByToken retrieves a session by its opaque token.
func (r *SessionRepository) GetSessionByToken(ctx context.Context, token string) (persistence.Session, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at, revoked_at FROM sessions WHERE token = ?`, token)

	var (
		session persistence.Session
		expires string
		created string
		revoked sql.NullString
	)
	err := row.Scan(&session.ID, &session.UserID, &session.Token, &expires, &created, &revoked)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}

	if session.ExpiresAt, err = parseTime(expires); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = parseNullableTime(revoked); err != nil {
		return persistence.Session{}, err
	}

	return session, nil
}

// RevokeSession marks the session revoked. Revoking an unknown or already
// revoked token reports ErrNotFound.
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE token = ? AND revoked_at IS NULL`,
		formatTime(revokedAt), token)
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

// DeleteExpiredSessions removes sessions whose expiry predates the reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.db.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(reference))
	return mapError(err)
}
