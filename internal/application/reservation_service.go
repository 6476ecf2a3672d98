package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/classroom-reservation/internal/monitoring"
	"github.com/example/classroom-reservation/internal/notifier"
	"github.com/example/classroom-reservation/internal/persistence"
	"github.com/example/classroom-reservation/internal/realtime"
	"github.com/example/classroom-reservation/internal/timeslot"
)

// SlotFiller backfills a freed slot from the waitlist. Implemented by
// WaitlistService.
type SlotFiller interface {
	FillFreedSlot(ctx context.Context, classroomID string, freed timeslot.Slot) (CascadeResult, error)
}

// ReservationService orchestrates validation, persistence and notification
// for reservation operations.
type ReservationService struct {
	reservations  persistence.ReservationRepository
	classrooms    persistence.ClassroomRepository
	users         persistence.UserRepository
	filler        SlotFiller
	publisher     notifier.Publisher
	broadcaster   realtime.Broadcaster
	metrics       *monitoring.Metrics
	idGenerator   func() string
	now           func() time.Time
	maxActive     int
	advanceWindow time.Duration
	logger        *slog.Logger
}

// ReservationServiceOptions bundles the dependencies for NewReservationService.
type ReservationServiceOptions struct {
	Reservations  persistence.ReservationRepository
	Classrooms    persistence.ClassroomRepository
	Users         persistence.UserRepository
	Filler        SlotFiller
	Publisher     notifier.Publisher
	Broadcaster   realtime.Broadcaster
	Metrics       *monitoring.Metrics
	IDGenerator   func() string
	Now           func() time.Time
	MaxActive     int
	AdvanceWindow time.Duration
	Logger        *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(opts ReservationServiceOptions) *ReservationService {
	if opts.IDGenerator == nil {
		opts.IDGenerator = func() string { return "" }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = notifier.NopPublisher{}
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = realtime.NopBroadcaster{}
	}
	if opts.MaxActive <= 0 {
		opts.MaxActive = DefaultMaxActiveReservations
	}
	if opts.AdvanceWindow <= 0 {
		opts.AdvanceWindow = DefaultAdvanceWindow
	}
	return &ReservationService{
		reservations:  opts.Reservations,
		classrooms:    opts.Classrooms,
		users:         opts.Users,
		filler:        opts.Filler,
		publisher:     opts.Publisher,
		broadcaster:   opts.Broadcaster,
		metrics:       opts.Metrics,
		idGenerator:   opts.IDGenerator,
		now:           opts.Now,
		maxActive:     opts.MaxActive,
		advanceWindow: opts.AdvanceWindow,
		logger:        defaultLogger(opts.Logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation validates the request and books the slot. The cap and
// overlap checks run again inside the repository's transaction, so a success
// here is authoritative even under concurrent requests.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (detail persistence.ReservationDetail, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal
	input := params.Input
	slot := timeslot.Slot{Start: input.Start.UTC(), End: input.End.UTC()}

	logger := s.loggerWith(ctx, "CreateReservation",
		"user_id", principal.UserID,
		"classroom_id", input.ClassroomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reservation create failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", detail.ID).InfoContext(ctx, "reservation created")
	}()

	now := s.now()
	vErr := &ValidationError{}
	if input.ClassroomID == "" {
		vErr.add("classroom_id", "classroom is required")
	}
	validateReservationSlot(slot, now, s.advanceWindow, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureClassroomExists(ctx, input.ClassroomID); err != nil {
		return
	}

	// Fast rejection ahead of the write transaction. The repository re-runs
	// the same check inside the transaction, which stays authoritative.
	if s.maxActive > 0 {
		var active int
		active, err = s.reservations.CountFutureActiveByUser(ctx, principal.UserID, now)
		if err != nil {
			err = fmt.Errorf("count active reservations: %w", err)
			return
		}
		if active >= s.maxActive {
			limitErr := &ValidationError{}
			limitErr.add("reservations", "active reservation limit reached")
			err = limitErr
			return
		}
	}

	var participants []string
	participants, err = s.resolveParticipants(ctx, principal.UserID, input.ParticipantNumbers)
	if err != nil {
		return
	}

	reservation := persistence.Reservation{
		ID:             s.idGenerator(),
		ClassroomID:    input.ClassroomID,
		UserID:         principal.UserID,
		Start:          slot.Start,
		End:            slot.End,
		Status:         persistence.ReservationActive,
		ParticipantIDs: participants,
		CreatedAt:      now,
	}

	if err = s.reservations.CreateReservation(ctx, reservation, now, s.maxActive); err != nil {
		switch {
		case errors.Is(err, persistence.ErrConflict):
			s.metrics.ConflictRejected()
			err = ErrConflict
		case errors.Is(err, persistence.ErrLimitExceeded):
			limitErr := &ValidationError{}
			limitErr.add("reservations", "active reservation limit reached")
			err = limitErr
		case errors.Is(err, persistence.ErrForeignKeyViolation):
			fkErr := &ValidationError{}
			fkErr.add("participants", "related records are missing")
			err = fkErr
		}
		return
	}

	s.metrics.ReservationCreated()
	s.publishEvent(ctx, logger, notifier.Event{
		Kind:          notifier.KindReservationCreated,
		UserID:        reservation.UserID,
		ReservationID: reservation.ID,
		ClassroomID:   reservation.ClassroomID,
		Start:         reservation.Start,
		End:           reservation.End,
		OccurredAt:    now,
	})
	s.broadcastChange(ctx, logger, realtime.SlotChange{
		ClassroomID:   reservation.ClassroomID,
		ReservationID: reservation.ID,
		Change:        realtime.ChangeReserved,
		Start:         reservation.Start,
		End:           reservation.End,
	})

	detail, err = s.reservations.GetReservationDetail(ctx, reservation.ID)
	if err != nil {
		// The booking is committed; fall back to the input we wrote.
		logger.WarnContext(ctx, "failed to load reservation detail", "error", err)
		detail = persistence.ReservationDetail{Reservation: reservation}
		err = nil
	}
	return
}

// CancelReservation releases a slot and backfills it from the waitlist. Only
// the owner or an admin may cancel. The cascade runs after the cancellation
// commits; a cascade failure is logged but does not undo the cancel.
func (s *ReservationService) CancelReservation(ctx context.Context, principal Principal, reservationID string) (result CascadeResult, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CancelReservation",
		"user_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reservation cancel failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("assigned", len(result.AssignedEntryIDs)).InfoContext(ctx, "reservation cancelled")
	}()

	var reservation persistence.Reservation
	reservation, err = s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if reservation.Status != persistence.ReservationActive {
		err = ErrNotFound
		return
	}
	if reservation.UserID != principal.UserID && !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	if err = s.reservations.CancelReservation(ctx, reservationID); err != nil {
		err = mapRepoError(err)
		return
	}

	now := s.now()
	s.metrics.ReservationCancelled()
	s.publishEvent(ctx, logger, notifier.Event{
		Kind:          notifier.KindReservationCancelled,
		UserID:        reservation.UserID,
		ReservationID: reservation.ID,
		ClassroomID:   reservation.ClassroomID,
		Start:         reservation.Start,
		End:           reservation.End,
		OccurredAt:    now,
	})
	s.broadcastChange(ctx, logger, realtime.SlotChange{
		ClassroomID:   reservation.ClassroomID,
		ReservationID: reservation.ID,
		Change:        realtime.ChangeReleased,
		Start:         reservation.Start,
		End:           reservation.End,
	})

	if s.filler != nil {
		freed := timeslot.Slot{Start: reservation.Start, End: reservation.End}
		cascadeResult, cascadeErr := s.filler.FillFreedSlot(ctx, reservation.ClassroomID, freed)
		if cascadeErr != nil {
			logger.ErrorContext(ctx, "waitlist cascade failed", "error", cascadeErr)
		} else {
			result = cascadeResult
		}
	}
	return
}

// GetReservation returns a reservation with display fields.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID string) (persistence.ReservationDetail, error) {
	if s == nil || s.reservations == nil {
		return persistence.ReservationDetail{}, fmt.Errorf("reservation repository not configured")
	}
	detail, err := s.reservations.GetReservationDetail(ctx, reservationID)
	if err != nil {
		return persistence.ReservationDetail{}, mapRepoError(err)
	}
	return detail, nil
}

// ListMyReservations returns active reservations the principal owns or
// participates in, ordered by start time.
func (s *ReservationService) ListMyReservations(ctx context.Context, principal Principal) ([]persistence.ReservationDetail, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}
	details, err := s.reservations.ListActiveForUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return details, nil
}

// ClassroomTimeline returns the active reservations for one classroom.
func (s *ReservationService) ClassroomTimeline(ctx context.Context, classroomID string) ([]persistence.ReservationDetail, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}
	if err := s.ensureClassroomExists(ctx, classroomID); err != nil {
		return nil, err
	}
	details, err := s.reservations.ListActiveByClassroom(ctx, classroomID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return details, nil
}

// TopClassrooms ranks classrooms by active reservation count for the admin
// usage view. Only admins may read it.
func (s *ReservationService) TopClassrooms(ctx context.Context, principal Principal) ([]persistence.ClassroomUsage, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	usages, err := s.reservations.ListTopClassrooms(ctx, DefaultTopClassroomsLimit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return usages, nil
}

func (s *ReservationService) ensureClassroomExists(ctx context.Context, classroomID string) error {
	if s.classrooms == nil {
		return nil
	}
	_, err := s.classrooms.GetClassroom(ctx, classroomID)
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		vErr := &ValidationError{}
		vErr.add("classroom_id", "classroom does not exist")
		return vErr
	}
	return err
}

// resolveParticipants maps student numbers to user ids. Unknown numbers are
// dropped silently and the owner is never listed as a participant.
func (s *ReservationService) resolveParticipants(ctx context.Context, ownerID string, studentNumbers []string) ([]string, error) {
	if s.users == nil || len(studentNumbers) == 0 {
		return nil, nil
	}
	ids, err := s.users.ResolveStudentNumbers(ctx, studentNumbers)
	if err != nil {
		return nil, err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id == ownerID {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		return nil, nil
	}
	return filtered, nil
}

func (s *ReservationService) publishEvent(ctx context.Context, logger *slog.Logger, event notifier.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to publish event", "kind", event.Kind, "error", err)
	}
}

func (s *ReservationService) broadcastChange(ctx context.Context, logger *slog.Logger, change realtime.SlotChange) {
	if err := s.broadcaster.Broadcast(ctx, change); err != nil {
		logger.ErrorContext(ctx, "failed to broadcast slot change", "change", change.Change, "error", err)
	}
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	}
	return err
}
