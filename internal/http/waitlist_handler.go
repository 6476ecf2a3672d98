package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/classroom-reservation/internal/application"
	"github.com/example/classroom-reservation/internal/persistence"
)

type waitlistService interface {
	CreateEntry(ctx context.Context, params application.CreateWaitlistParams) (persistence.WaitlistEntry, error)
	CancelEntry(ctx context.Context, principal application.Principal, entryID string) error
	ListMyEntries(ctx context.Context, principal application.Principal) ([]persistence.WaitlistEntry, error)
}

type WaitlistHandler struct {
	service   waitlistService
	responder responder
	logger    *slog.Logger
}

func NewWaitlistHandler(service waitlistService, logger *slog.Logger) *WaitlistHandler {
	base := defaultLogger(logger)
	return &WaitlistHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WaitlistHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WaitlistHandler", operation, attrs...)
}

func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	entries, err := h.service.ListMyEntries(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "user_id", principal.UserID).ErrorContext(r.Context(), "failed to list waitlist entries", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]waitlistDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, toWaitlistDTO(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, waitlistListResponse{Entries: dtos})
}

func (h *WaitlistHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req waitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode waitlist request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid waitlist payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "user_id", principal.UserID, "classroom_id", input.ClassroomID)

	entry, err := h.service.CreateEntry(r.Context(), application.CreateWaitlistParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create waitlist entry", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("entry_id", entry.ID, "queue_position", entry.QueuePosition).InfoContext(r.Context(), "waitlist entry created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toWaitlistDTO(entry))
}

func (h *WaitlistHandler) Cancel(w http.ResponseWriter, r *http.Request, entryID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "Cancel", "entry_id", entryID, "actor_id", principal.UserID)

	if err := h.service.CancelEntry(r.Context(), principal, entryID); err != nil {
		logger.ErrorContext(r.Context(), "failed to cancel waitlist entry", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "waitlist entry cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type waitlistRequest struct {
	ClassroomID string `json:"classroom_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

func (req waitlistRequest) toInput() (application.WaitlistInput, error) {
	start, err := parseTime(req.Start)
	if err != nil {
		return application.WaitlistInput{}, errors.New("start must be an RFC 3339 timestamp")
	}
	end, err := parseTime(req.End)
	if err != nil {
		return application.WaitlistInput{}, errors.New("end must be an RFC 3339 timestamp")
	}

	return application.WaitlistInput{
		ClassroomID: req.ClassroomID,
		Start:       start,
		End:         end,
	}, nil
}

type waitlistDTO struct {
	ID            string `json:"id"`
	ClassroomID   string `json:"classroom_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	QueuePosition int    `json:"queue_position"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at,omitempty"`
}

type waitlistListResponse struct {
	Entries []waitlistDTO `json:"entries"`
}

func toWaitlistDTO(entry persistence.WaitlistEntry) waitlistDTO {
	dto := waitlistDTO{
		ID:            entry.ID,
		ClassroomID:   entry.ClassroomID,
		Start:         entry.Start.UTC().Format(time.RFC3339Nano),
		End:           entry.End.UTC().Format(time.RFC3339Nano),
		QueuePosition: entry.QueuePosition,
		Status:        string(entry.Status),
	}
	if !entry.CreatedAt.IsZero() {
		dto.CreatedAt = entry.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
