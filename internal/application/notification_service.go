package application

import (
	"context"
	"fmt"

	"github.com/example/classroom-reservation/internal/persistence"
)

// NotificationService exposes the in-app notification inbox.
type NotificationService struct {
	notifications persistence.NotificationRepository
}

// NewNotificationService wires the inbox repository.
func NewNotificationService(notifications persistence.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// ListNotifications returns the principal's inbox, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, principal Principal) ([]persistence.Notification, error) {
	if s == nil || s.notifications == nil {
		return nil, fmt.Errorf("notification repository not configured")
	}
	notifications, err := s.notifications.ListForUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return notifications, nil
}

// MarkRead marks one of the principal's notifications as read. Marking a
// notification that belongs to another user reports not found.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, notificationID string) error {
	if s == nil || s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	if err := s.notifications.MarkRead(ctx, notificationID, principal.UserID); err != nil {
		return mapRepoError(err)
	}
	return nil
}
