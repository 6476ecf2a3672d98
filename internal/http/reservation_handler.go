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

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (persistence.ReservationDetail, error)
	CancelReservation(ctx context.Context, principal application.Principal, reservationID string) (application.CascadeResult, error)
	GetReservation(ctx context.Context, reservationID string) (persistence.ReservationDetail, error)
	ListMyReservations(ctx context.Context, principal application.Principal) ([]persistence.ReservationDetail, error)
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	details, err := h.service.ListMyReservations(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "user_id", principal.UserID).ErrorContext(r.Context(), "failed to list reservations", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]reservationDTO, 0, len(details))
	for _, detail := range details {
		dtos = append(dtos, toReservationDTO(detail))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationListResponse{Reservations: dtos})
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "invalid reservation payload", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Create", "user_id", principal.UserID, "classroom_id", input.ClassroomID)

	detail, err := h.service.CreateReservation(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create reservation", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", detail.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toReservationDTO(detail))
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request, reservationID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	detail, err := h.service.GetReservation(r.Context(), reservationID)
	if err != nil {
		h.log(r.Context(), "Get", "reservation_id", reservationID).ErrorContext(r.Context(), "failed to load reservation", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(detail))
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, reservationID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	logger := h.log(r.Context(), "Cancel", "reservation_id", reservationID, "actor_id", principal.UserID)

	result, err := h.service.CancelReservation(r.Context(), principal, reservationID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to cancel reservation", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("assigned_from_waitlist", len(result.AssignedEntryIDs)).InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cancelReservationResponse{
		Cancelled:           true,
		AssignedReservation: result.ReservationIDs,
	})
}

type reservationRequest struct {
	ClassroomID  string   `json:"classroom_id"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Participants []string `json:"participants,omitempty"`
}

func (req reservationRequest) toInput() (application.ReservationInput, error) {
	input := application.ReservationInput{
		ClassroomID:        req.ClassroomID,
		ParticipantNumbers: req.Participants,
	}

	start, err := parseTime(req.Start)
	if err != nil {
		return application.ReservationInput{}, errors.New("start must be an RFC 3339 timestamp")
	}
	end, err := parseTime(req.End)
	if err != nil {
		return application.ReservationInput{}, errors.New("end must be an RFC 3339 timestamp")
	}

	input.Start = start
	input.End = end
	return input, nil
}

type reservationDTO struct {
	ID                 string   `json:"id"`
	ClassroomID        string   `json:"classroom_id"`
	ClassroomName      string   `json:"classroom_name,omitempty"`
	ClassroomLocation  string   `json:"classroom_location,omitempty"`
	OwnerID            string   `json:"owner_id"`
	OwnerName          string   `json:"owner_name,omitempty"`
	OwnerStudentNumber string   `json:"owner_student_number,omitempty"`
	Start              string   `json:"start"`
	End                string   `json:"end"`
	Status             string   `json:"status"`
	ParticipantIDs     []string `json:"participant_ids,omitempty"`
	CreatedAt          string   `json:"created_at,omitempty"`
}

type reservationListResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type cancelReservationResponse struct {
	Cancelled           bool     `json:"cancelled"`
	AssignedReservation []string `json:"assigned_reservation_ids,omitempty"`
}

func toReservationDTO(detail persistence.ReservationDetail) reservationDTO {
	dto := reservationDTO{
		ID:                 detail.ID,
		ClassroomID:        detail.ClassroomID,
		ClassroomName:      detail.ClassroomName,
		ClassroomLocation:  detail.ClassroomLocation,
		OwnerID:            detail.UserID,
		OwnerName:          detail.OwnerName,
		OwnerStudentNumber: detail.OwnerStudentNumber,
		Start:              detail.Start.UTC().Format(time.RFC3339Nano),
		End:                detail.End.UTC().Format(time.RFC3339Nano),
		Status:             string(detail.Status),
		ParticipantIDs:     detail.ParticipantIDs,
	}
	if !detail.CreatedAt.IsZero() {
		dto.CreatedAt = detail.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, raw)
}
