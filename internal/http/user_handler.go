package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/classroom-reservation/internal/application"
	"github.com/example/classroom-reservation/internal/persistence"
)

type userService interface {
	RegisterUser(ctx context.Context, params application.RegisterUserParams) (persistence.User, error)
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Register", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode register request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Register", "student_number", strings.TrimSpace(req.StudentNumber))

	user, err := h.service.RegisterUser(r.Context(), application.RegisterUserParams{
		StudentNumber: req.StudentNumber,
		Name:          req.Name,
		Password:      req.Password,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to register user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toUserDTO(user))
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	user, err := h.service.GetUser(r.Context(), principal.UserID)
	if err != nil {
		h.log(r.Context(), "Me", "user_id", principal.UserID).ErrorContext(r.Context(), "failed to load user", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

type registerRequest struct {
	StudentNumber string `json:"student_number"`
	Name          string `json:"name"`
	Password      string `json:"password"`
}

type userDTO struct {
	ID            string `json:"id"`
	StudentNumber string `json:"student_number,omitempty"`
	Name          string `json:"name"`
	IsAdmin       bool   `json:"is_admin"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func toUserDTO(user persistence.User) userDTO {
	dto := userDTO{
		ID:            user.ID,
		StudentNumber: user.StudentNumber,
		Name:          user.Name,
		IsAdmin:       user.IsAdmin,
	}
	if !user.CreatedAt.IsZero() {
		dto.CreatedAt = user.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
