package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/classroom-reservation/internal/application"
	"github.com/example/classroom-reservation/internal/persistence"
)

type statisticsService interface {
	TopClassrooms(ctx context.Context, principal application.Principal) ([]persistence.ClassroomUsage, error)
}

type StatisticsHandler struct {
	service   statisticsService
	responder responder
	logger    *slog.Logger
}

func NewStatisticsHandler(service statisticsService, logger *slog.Logger) *StatisticsHandler {
	base := defaultLogger(logger)
	return &StatisticsHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *StatisticsHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "StatisticsHandler", operation, attrs...)
}

// TopClassrooms serves the admin ranking of classrooms by active
// reservation count.
func (h *StatisticsHandler) TopClassrooms(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	usages, err := h.service.TopClassrooms(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "TopClassrooms", "user_id", principal.UserID).ErrorContext(r.Context(), "failed to rank classrooms", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]classroomUsageDTO, 0, len(usages))
	for _, usage := range usages {
		dtos = append(dtos, classroomUsageDTO{
			ClassroomID:      usage.ClassroomID,
			Name:             usage.Name,
			Location:         usage.Location,
			ReservationCount: usage.ReservationCount,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, topClassroomsResponse{TopClassrooms: dtos})
}

type classroomUsageDTO struct {
	ClassroomID      string `json:"classroom_id"`
	Name             string `json:"name"`
	Location         string `json:"location"`
	ReservationCount int    `json:"reservation_count"`
}

type topClassroomsResponse struct {
	TopClassrooms []classroomUsageDTO `json:"top_classrooms"`
}
