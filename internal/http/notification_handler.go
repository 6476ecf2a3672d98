package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/classroom-reservation/internal/application"
	"github.com/example/classroom-reservation/internal/persistence"
)

type notificationService interface {
	ListNotifications(ctx context.Context, principal application.Principal) ([]persistence.Notification, error)
	MarkRead(ctx context.Context, principal application.Principal, notificationID string) error
}

type NotificationHandler struct {
	service   notificationService
	responder responder
	logger    *slog.Logger
}

func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	base := defaultLogger(logger)
	return &NotificationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *NotificationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "NotificationHandler", operation, attrs...)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	notifications, err := h.service.ListNotifications(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "user_id", principal.UserID).ErrorContext(r.Context(), "failed to list notifications", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]notificationDTO, 0, len(notifications))
	for _, notification := range notifications {
		dtos = append(dtos, toNotificationDTO(notification))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, notificationListResponse{Notifications: dtos})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, notificationID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "MarkRead", "notification_id", notificationID, "user_id", principal.UserID)

	if err := h.service.MarkRead(r.Context(), principal, notificationID); err != nil {
		logger.ErrorContext(r.Context(), "failed to mark notification read", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "notification marked read")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type notificationDTO struct {
	ID            string `json:"id"`
	ReservationID string `json:"reservation_id,omitempty"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	IsRead        bool   `json:"is_read"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type notificationListResponse struct {
	Notifications []notificationDTO `json:"notifications"`
}

func toNotificationDTO(notification persistence.Notification) notificationDTO {
	dto := notificationDTO{
		ID:      notification.ID,
		Kind:    notification.Kind,
		Message: notification.Message,
		IsRead:  notification.IsRead,
	}
	if notification.ReservationID != nil {
		dto.ReservationID = *notification.ReservationID
	}
	if !notification.CreatedAt.IsZero() {
		dto.CreatedAt = notification.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
