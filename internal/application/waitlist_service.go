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

// WaitlistService manages waitlist entries and runs the cascade that
// backfills freed slots.
type WaitlistService struct {
	waitlists     persistence.WaitlistRepository
	reservations  persistence.ReservationRepository
	classrooms    persistence.ClassroomRepository
	notifications persistence.NotificationRepository
	publisher     notifier.Publisher
	broadcaster   realtime.Broadcaster
	metrics       *monitoring.Metrics
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// WaitlistServiceOptions bundles the dependencies for NewWaitlistService.
type WaitlistServiceOptions struct {
	Waitlists     persistence.WaitlistRepository
	Reservations  persistence.ReservationRepository
	Classrooms    persistence.ClassroomRepository
	Notifications persistence.NotificationRepository
	Publisher     notifier.Publisher
	Broadcaster   realtime.Broadcaster
	Metrics       *monitoring.Metrics
	IDGenerator   func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewWaitlistService wires dependencies for waitlist operations.
func NewWaitlistService(opts WaitlistServiceOptions) *WaitlistService {
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
	return &WaitlistService{
		waitlists:     opts.Waitlists,
		reservations:  opts.Reservations,
		classrooms:    opts.Classrooms,
		notifications: opts.Notifications,
		publisher:     opts.Publisher,
		broadcaster:   opts.Broadcaster,
		metrics:       opts.Metrics,
		idGenerator:   opts.IDGenerator,
		now:           opts.Now,
		logger:        defaultLogger(opts.Logger),
	}
}

func (s *WaitlistService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "WaitlistService", operation, attrs...)
}

// CreateEntry joins the waitlist for a window. No conflict check runs here;
// a user may wait on a slot that is currently free or taken, and any well
// formed future window is accepted even if it can never match a one hour
// slot.
func (s *WaitlistService) CreateEntry(ctx context.Context, params CreateWaitlistParams) (entry persistence.WaitlistEntry, err error) {
	if s == nil {
		err = fmt.Errorf("WaitlistService is nil")
		return
	}
	if s.waitlists == nil {
		err = fmt.Errorf("waitlist repository not configured")
		return
	}

	principal := params.Principal
	input := params.Input
	slot := timeslot.Slot{Start: input.Start.UTC(), End: input.End.UTC()}

	logger := s.loggerWith(ctx, "CreateEntry",
		"user_id", principal.UserID,
		"classroom_id", input.ClassroomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "waitlist join failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("entry_id", entry.ID, "queue_position", entry.QueuePosition).InfoContext(ctx, "joined waitlist")
	}()

	now := s.now()
	vErr := &ValidationError{}
	if input.ClassroomID == "" {
		vErr.add("classroom_id", "classroom is required")
	}
	validateWaitlistSlot(slot, now, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureClassroomExists(ctx, input.ClassroomID); err != nil {
		return
	}

	entry, err = s.waitlists.CreateEntry(ctx, persistence.WaitlistEntry{
		ID:          s.idGenerator(),
		ClassroomID: input.ClassroomID,
		UserID:      principal.UserID,
		Start:       slot.Start,
		End:         slot.End,
		Status:      persistence.WaitlistWaiting,
		CreatedAt:   now,
	})
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

// CancelEntry withdraws a waiting entry. Only the owner or an admin may
// cancel; entries already assigned or cancelled report not found.
func (s *WaitlistService) CancelEntry(ctx context.Context, principal Principal, entryID string) error {
	if s == nil || s.waitlists == nil {
		return fmt.Errorf("waitlist repository not configured")
	}

	logger := s.loggerWith(ctx, "CancelEntry",
		"user_id", principal.UserID,
		"entry_id", entryID,
	)

	entry, err := s.waitlists.GetEntry(ctx, entryID)
	if err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "waitlist cancel failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if entry.UserID != principal.UserID && !principal.IsAdmin {
		logger.ErrorContext(ctx, "waitlist cancel failed", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	if err := s.waitlists.CancelEntry(ctx, entryID); err != nil {
		err = mapRepoError(err)
		logger.ErrorContext(ctx, "waitlist cancel failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "waitlist entry cancelled")
	return nil
}

// ListMyEntries returns the principal's waiting entries in queue order.
func (s *WaitlistService) ListMyEntries(ctx context.Context, principal Principal) ([]persistence.WaitlistEntry, error) {
	if s == nil || s.waitlists == nil {
		return nil, fmt.Errorf("waitlist repository not configured")
	}
	entries, err := s.waitlists.ListWaitingForUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return entries, nil
}

// FillFreedSlot walks the waitlist for a freed window in FIFO order and
// books every entry whose window still fits. The reserved set starts from
// the reservations currently intersecting the window and grows with each
// assignment, so entries made consecutive by earlier assignments are skipped
// within the same pass. A failure on one entry never aborts the pass.
func (s *WaitlistService) FillFreedSlot(ctx context.Context, classroomID string, freed timeslot.Slot) (result CascadeResult, err error) {
	if s == nil {
		err = fmt.Errorf("WaitlistService is nil")
		return
	}
	if s.waitlists == nil || s.reservations == nil {
		err = fmt.Errorf("waitlist or reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "FillFreedSlot",
		"classroom_id", classroomID,
		"freed_start", freed.Start,
		"freed_end", freed.End,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cascade failed", "error", err)
			return
		}
		logger.With(
			"examined", result.ExaminedEntries,
			"assigned", len(result.AssignedEntryIDs),
			"skipped_on_conflict", result.SkippedOnConflict,
		).InfoContext(ctx, "cascade completed")
	}()

	var entries []persistence.WaitlistEntry
	entries, err = s.waitlists.ListWaitingContained(ctx, classroomID, freed.Start, freed.End)
	if err != nil {
		return
	}
	if len(entries) == 0 {
		s.metrics.CascadeRun(0)
		return
	}

	var existing []persistence.Reservation
	existing, err = s.reservations.ListActiveOverlapping(ctx, classroomID, freed.Start, freed.End)
	if err != nil {
		return
	}
	reserved := make([]timeslot.Slot, 0, len(existing)+len(entries))
	for _, reservation := range existing {
		reserved = append(reserved, timeslot.Slot{Start: reservation.Start, End: reservation.End})
	}

	now := s.now()
	for _, entry := range entries {
		result.ExaminedEntries++
		candidate := timeslot.Slot{Start: entry.Start, End: entry.End}

		// Windows that are not one aligned hour wait forever.
		if !candidate.IsOneHour() || !candidate.IsHourAligned() {
			continue
		}
		if !candidate.Start.After(now) {
			continue
		}
		if timeslot.HasConflict(candidate, reserved) {
			result.SkippedOnConflict++
			continue
		}

		reservationID, assignErr := s.assignEntry(ctx, logger, entry, candidate, now)
		if assignErr != nil {
			if errors.Is(assignErr, persistence.ErrConflict) {
				result.SkippedOnConflict++
			} else {
				logger.ErrorContext(ctx, "failed to assign waitlist entry", "entry_id", entry.ID, "error", assignErr)
			}
			continue
		}

		reserved = append(reserved, candidate)
		result.AssignedEntryIDs = append(result.AssignedEntryIDs, entry.ID)
		result.ReservationIDs = append(result.ReservationIDs, reservationID)
	}

	s.metrics.CascadeRun(len(result.AssignedEntryIDs))
	return
}

// assignEntry books the entry's window and marks the entry assigned.
// Cascade bookings bypass the per-user cap; the overlap check still runs
// inside the repository transaction, guarding against concurrent bookers.
// If the entry was cancelled while we were booking, the reservation is
// rolled back so the slot stays available for the rest of the pass's
// callers.
func (s *WaitlistService) assignEntry(ctx context.Context, logger *slog.Logger, entry persistence.WaitlistEntry, slot timeslot.Slot, now time.Time) (string, error) {
	reservation := persistence.Reservation{
		ID:          s.idGenerator(),
		ClassroomID: entry.ClassroomID,
		UserID:      entry.UserID,
		Start:       slot.Start,
		End:         slot.End,
		Status:      persistence.ReservationActive,
		CreatedAt:   now,
	}

	if err := s.reservations.CreateReservation(ctx, reservation, now, 0); err != nil {
		return "", err
	}

	if err := s.waitlists.MarkAssigned(ctx, entry.ID); err != nil {
		if cancelErr := s.reservations.CancelReservation(ctx, reservation.ID); cancelErr != nil {
			logger.ErrorContext(ctx, "failed to roll back cascade booking", "reservation_id", reservation.ID, "error", cancelErr)
		}
		return "", err
	}

	s.notifyAssignment(ctx, logger, entry, reservation, now)
	return reservation.ID, nil
}

func (s *WaitlistService) notifyAssignment(ctx context.Context, logger *slog.Logger, entry persistence.WaitlistEntry, reservation persistence.Reservation, now time.Time) {
	if s.notifications != nil {
		notification := persistence.Notification{
			ID:            s.idGenerator(),
			UserID:        entry.UserID,
			ReservationID: &reservation.ID,
			Kind:          notifier.KindWaitlistAssigned,
			Message:       fmt.Sprintf("your waitlisted slot from %s was booked for you", reservation.Start.Format(time.RFC3339)),
			CreatedAt:     now,
		}
		if err := s.notifications.CreateNotification(ctx, notification); err != nil {
			logger.ErrorContext(ctx, "failed to store assignment notification", "entry_id", entry.ID, "error", err)
		}
	}

	if err := s.publisher.Publish(ctx, notifier.Event{
		Kind:          notifier.KindWaitlistAssigned,
		UserID:        entry.UserID,
		ReservationID: reservation.ID,
		ClassroomID:   reservation.ClassroomID,
		Start:         reservation.Start,
		End:           reservation.End,
		OccurredAt:    now,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to publish assignment event", "entry_id", entry.ID, "error", err)
	}

	if err := s.broadcaster.Broadcast(ctx, realtime.SlotChange{
		ClassroomID:   reservation.ClassroomID,
		ReservationID: reservation.ID,
		Change:        realtime.ChangeAssigned,
		Start:         reservation.Start,
		End:           reservation.End,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to broadcast assignment", "entry_id", entry.ID, "error", err)
	}
}

func (s *WaitlistService) ensureClassroomExists(ctx context.Context, classroomID string) error {
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
