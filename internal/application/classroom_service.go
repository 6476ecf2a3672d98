package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/classroom-reservation/internal/persistence"
)

// ClassroomService manages the classroom catalog. Mutations are restricted
// to admins; anyone may search.
type ClassroomService struct {
	classrooms  persistence.ClassroomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewClassroomService wires dependencies for catalog operations.
func NewClassroomService(classrooms persistence.ClassroomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ClassroomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ClassroomService{
		classrooms:  classrooms,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ClassroomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ClassroomService", operation, attrs...)
}

// CreateClassroom adds a catalog entry.
func (s *ClassroomService) CreateClassroom(ctx context.Context, params CreateClassroomParams) (room persistence.Classroom, err error) {
	if s == nil || s.classrooms == nil {
		err = fmt.Errorf("classroom repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateClassroom", "user_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "classroom create failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("classroom_id", room.ID).InfoContext(ctx, "classroom created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	if err = validateClassroomInput(params.Input); err != nil {
		return
	}

	now := s.now()
	room = persistence.Classroom{
		ID:            s.idGenerator(),
		Name:          strings.TrimSpace(params.Input.Name),
		Location:      strings.TrimSpace(params.Input.Location),
		Capacity:      params.Input.Capacity,
		HasProjector:  params.Input.HasProjector,
		HasWhiteboard: params.Input.HasWhiteboard,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err = s.classrooms.CreateClassroom(ctx, room); err != nil {
		room = persistence.Classroom{}
		err = mapRepoError(err)
	}
	return
}

// UpdateClassroom rewrites a catalog entry.
func (s *ClassroomService) UpdateClassroom(ctx context.Context, params UpdateClassroomParams) (room persistence.Classroom, err error) {
	if s == nil || s.classrooms == nil {
		err = fmt.Errorf("classroom repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateClassroom",
		"user_id", params.Principal.UserID,
		"classroom_id", params.ClassroomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "classroom update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "classroom updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	if err = validateClassroomInput(params.Input); err != nil {
		return
	}

	var existing persistence.Classroom
	existing, err = s.classrooms.GetClassroom(ctx, params.ClassroomID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	existing.Name = strings.TrimSpace(params.Input.Name)
	existing.Location = strings.TrimSpace(params.Input.Location)
	existing.Capacity = params.Input.Capacity
	existing.HasProjector = params.Input.HasProjector
	existing.HasWhiteboard = params.Input.HasWhiteboard
	existing.UpdatedAt = s.now()

	if err = s.classrooms.UpdateClassroom(ctx, existing); err != nil {
		err = mapRepoError(err)
		return
	}
	room = existing
	return
}

// DeleteClassroom removes a catalog entry.
func (s *ClassroomService) DeleteClassroom(ctx context.Context, principal Principal, classroomID string) error {
	if s == nil || s.classrooms == nil {
		return fmt.Errorf("classroom repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteClassroom",
		"user_id", principal.UserID,
		"classroom_id", classroomID,
	)

	if !principal.IsAdmin {
		logger.ErrorContext(ctx, "classroom delete failed", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	if err := s.classrooms.DeleteClassroom(ctx, classroomID); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "classroom delete failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "classroom deleted")
	return nil
}

// GetClassroom retrieves one catalog entry.
func (s *ClassroomService) GetClassroom(ctx context.Context, classroomID string) (persistence.Classroom, error) {
	if s == nil || s.classrooms == nil {
		return persistence.Classroom{}, fmt.Errorf("classroom repository not configured")
	}
	room, err := s.classrooms.GetClassroom(ctx, classroomID)
	if err != nil {
		return persistence.Classroom{}, mapRepoError(err)
	}
	return room, nil
}

// SearchClassrooms lists catalog entries matching the filters, ordered by
// name.
func (s *ClassroomService) SearchClassrooms(ctx context.Context, params SearchClassroomsParams) ([]persistence.Classroom, error) {
	if s == nil || s.classrooms == nil {
		return nil, fmt.Errorf("classroom repository not configured")
	}
	rooms, err := s.classrooms.ListClassrooms(ctx, persistence.ClassroomFilter{
		MinCapacity:   params.MinCapacity,
		HasProjector:  params.HasProjector,
		HasWhiteboard: params.HasWhiteboard,
		NameContains:  strings.TrimSpace(params.NameContains),
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return rooms, nil
}

func validateClassroomInput(input ClassroomInput) error {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacity", "capacity must be positive")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
