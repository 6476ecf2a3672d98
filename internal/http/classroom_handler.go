package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/classroom-reservation/internal/application"
	"github.com/example/classroom-reservation/internal/persistence"
)

type classroomService interface {
	CreateClassroom(ctx context.Context, params application.CreateClassroomParams) (persistence.Classroom, error)
	UpdateClassroom(ctx context.Context, params application.UpdateClassroomParams) (persistence.Classroom, error)
	DeleteClassroom(ctx context.Context, principal application.Principal, classroomID string) error
	GetClassroom(ctx context.Context, classroomID string) (persistence.Classroom, error)
	SearchClassrooms(ctx context.Context, params application.SearchClassroomsParams) ([]persistence.Classroom, error)
}

type classroomTimelineService interface {
	ClassroomTimeline(ctx context.Context, classroomID string) ([]persistence.ReservationDetail, error)
}

type ClassroomHandler struct {
	service   classroomService
	timeline  classroomTimelineService
	responder responder
	logger    *slog.Logger
}

func NewClassroomHandler(service classroomService, timeline classroomTimelineService, logger *slog.Logger) *ClassroomHandler {
	base := defaultLogger(logger)
	return &ClassroomHandler{service: service, timeline: timeline, responder: newResponder(base), logger: base}
}

func (h *ClassroomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ClassroomHandler", operation, attrs...)
}

func (h *ClassroomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params := application.SearchClassroomsParams{
		NameContains: r.URL.Query().Get("name"),
	}
	if raw := r.URL.Query().Get("min_capacity"); raw != "" {
		capacity, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errors.New("min_capacity must be an integer"))
			return
		}
		params.MinCapacity = &capacity
	}
	var err error
	if params.HasProjector, err = parseBoolParam(r, "has_projector"); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if params.HasWhiteboard, err = parseBoolParam(r, "has_whiteboard"); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	rooms, err := h.service.SearchClassrooms(r.Context(), params)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "failed to search classrooms", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]classroomDTO, 0, len(rooms))
	for _, room := range rooms {
		dtos = append(dtos, toClassroomDTO(room))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, classroomListResponse{Classrooms: dtos})
}

func (h *ClassroomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req classroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode classroom request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "actor_id", principal.UserID)

	room, err := h.service.CreateClassroom(r.Context(), application.CreateClassroomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create classroom", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("classroom_id", room.ID).InfoContext(r.Context(), "classroom created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toClassroomDTO(room))
}

func (h *ClassroomHandler) Get(w http.ResponseWriter, r *http.Request, classroomID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	room, err := h.service.GetClassroom(r.Context(), classroomID)
	if err != nil {
		h.log(r.Context(), "Get", "classroom_id", classroomID).ErrorContext(r.Context(), "failed to load classroom", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toClassroomDTO(room))
}

func (h *ClassroomHandler) Update(w http.ResponseWriter, r *http.Request, classroomID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req classroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode classroom request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "classroom_id", classroomID, "actor_id", principal.UserID)

	room, err := h.service.UpdateClassroom(r.Context(), application.UpdateClassroomParams{
		Principal:   principal,
		ClassroomID: classroomID,
		Input:       req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update classroom", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "classroom updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toClassroomDTO(room))
}

func (h *ClassroomHandler) Delete(w http.ResponseWriter, r *http.Request, classroomID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "Delete", "classroom_id", classroomID, "actor_id", principal.UserID)

	if err := h.service.DeleteClassroom(r.Context(), principal, classroomID); err != nil {
		logger.ErrorContext(r.Context(), "failed to delete classroom", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "classroom deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ClassroomHandler) Timeline(w http.ResponseWriter, r *http.Request, classroomID string) {
	if h == nil || h.timeline == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	details, err := h.timeline.ClassroomTimeline(r.Context(), classroomID)
	if err != nil {
		h.log(r.Context(), "Timeline", "classroom_id", classroomID).ErrorContext(r.Context(), "failed to load timeline", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]reservationDTO, 0, len(details))
	for _, detail := range details {
		dtos = append(dtos, toReservationDTO(detail))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationListResponse{Reservations: dtos})
}

func parseBoolParam(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New(name + " must be a boolean")
	}
	return &value, nil
}

type classroomRequest struct {
	Name          string `json:"name"`
	Location      string `json:"location"`
	Capacity      int    `json:"capacity"`
	HasProjector  bool   `json:"has_projector"`
	HasWhiteboard bool   `json:"has_whiteboard"`
}

func (req classroomRequest) toInput() application.ClassroomInput {
	return application.ClassroomInput{
		Name:          req.Name,
		Location:      req.Location,
		Capacity:      req.Capacity,
		HasProjector:  req.HasProjector,
		HasWhiteboard: req.HasWhiteboard,
	}
}

type classroomDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	Capacity      int    `json:"capacity"`
	HasProjector  bool   `json:"has_projector"`
	HasWhiteboard bool   `json:"has_whiteboard"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

type classroomListResponse struct {
	Classrooms []classroomDTO `json:"classrooms"`
}

func toClassroomDTO(room persistence.Classroom) classroomDTO {
	dto := classroomDTO{
		ID:            room.ID,
		Name:          room.Name,
		Location:      room.Location,
		Capacity:      room.Capacity,
		HasProjector:  room.HasProjector,
		HasWhiteboard: room.HasWhiteboard,
	}
	if !room.CreatedAt.IsZero() {
		dto.CreatedAt = room.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !room.UpdatedAt.IsZero() {
		dto.UpdatedAt = room.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
