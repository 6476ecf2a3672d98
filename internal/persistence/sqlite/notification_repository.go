package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/classroom-reservation/internal/persistence"
)

// NotificationRepository implements persistence.NotificationRepository on SQLite.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository constructs a repository over the shared handle.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts a new inbox entry.
func (r *NotificationRepository) CreateNotification(ctx context.Context, notification persistence.Notification) error {
	if notification.ID == "" {
		return fmt.Errorf("sqlite: notification id is empty")
	}

	var reservationID sql.NullString
	if notification.ReservationID != nil {
		reservationID = sql.NullString{String: *notification.ReservationID, Valid: true}
	}

	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, reservation_id, kind, message, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		notification.ID, notification.UserID, reservationID,
		notification.Kind, notification.Message,
		boolToInt(notification.IsRead), formatTime(notification.CreatedAt),
	)
	return mapError(err)
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string) ([]persistence.Notification, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT id, user_id, reservation_id, kind, message, is_read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var notifications []persistence.Notification
	for rows.Next() {
		var (
			notification  persistence.Notification
			reservationID sql.NullString
			isRead        int
			created       string
		)
		err := rows.Scan(&notification.ID, &notification.UserID, &reservationID,
			&notification.Kind, &notification.Message, &isRead, &created)
		if err != nil {
			return nil, err
		}
		if reservationID.Valid {
			value := reservationID.String
			notification.ReservationID = &value
		}
		notification.IsRead = isRead != 0
		if notification.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

// MarkRead marks the notification read when it belongs to the user.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
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

// HasNotification reports whether a notification of the given kind exists
// for the (user, reservation) pair.
func (r *NotificationRepository) HasNotification(ctx context.Context, userID, reservationID, kind string) (bool, error) {
	var count int
	err := r.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND reservation_id = ? AND kind = ?`,
		userID, reservationID, kind,
	).Scan(&count)
	if err != nil {
		return false, mapError(err)
	}
	return count > 0, nil
}
