package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/classroom-reservation/internal/monitoring"
	"github.com/example/classroom-reservation/internal/notifier"
	"github.com/example/classroom-reservation/internal/persistence"
)

// DefaultReminderLead is how far before the start time reminders go out.
const DefaultReminderLead = 30 * time.Minute

// ReminderService periodically notifies owners and participants of
// reservations about to start. The notification store is the source of
// truth for deduplication; the in-memory cache only short-circuits pairs
// handled by a recent sweep.
type ReminderService struct {
	reservations  persistence.ReservationRepository
	notifications persistence.NotificationRepository
	publisher     notifier.Publisher
	metrics       *monitoring.Metrics
	idGenerator   func() string
	now           func() time.Time
	lead          time.Duration
	recent        *reminderCache
	logger        *slog.Logger
}

// ReminderServiceOptions bundles the dependencies for NewReminderService.
type ReminderServiceOptions struct {
	Reservations  persistence.ReservationRepository
	Notifications persistence.NotificationRepository
	Publisher     notifier.Publisher
	Metrics       *monitoring.Metrics
	IDGenerator   func() string
	Now           func() time.Time
	Lead          time.Duration
	Logger        *slog.Logger
}

// NewReminderService wires dependencies for the reminder sweep.
func NewReminderService(opts ReminderServiceOptions) *ReminderService {
	if opts.IDGenerator == nil {
		opts.IDGenerator = func() string { return "" }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = notifier.NopPublisher{}
	}
	if opts.Lead <= 0 {
		opts.Lead = DefaultReminderLead
	}
	return &ReminderService{
		reservations:  opts.Reservations,
		notifications: opts.Notifications,
		publisher:     opts.Publisher,
		metrics:       opts.Metrics,
		idGenerator:   opts.IDGenerator,
		now:           opts.Now,
		lead:          opts.Lead,
		recent:        newReminderCache(2*opts.Lead, 0, opts.Now),
		logger:        defaultLogger(opts.Logger),
	}
}

// Run sweeps on the given interval until the context is cancelled.
func (s *ReminderService) Run(ctx context.Context, interval time.Duration) {
	if s == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "reminder sweep failed", "error", err)
			}
		}
	}
}

// RunOnce sweeps reservations starting within the lead window and delivers
// one reminder per recipient per reservation. It returns how many reminders
// went out.
func (s *ReminderService) RunOnce(ctx context.Context) (sent int, err error) {
	if s == nil {
		err = fmt.Errorf("ReminderService is nil")
		return
	}
	if s.reservations == nil || s.notifications == nil {
		err = fmt.Errorf("reservation or notification repository not configured")
		return
	}

	now := s.now()
	logger := serviceLogger(ctx, s.logger, "ReminderService", "RunOnce")

	var upcoming []persistence.ReservationDetail
	upcoming, err = s.reservations.ListStartingBetween(ctx, now, now.Add(s.lead))
	if err != nil {
		return
	}

	for _, detail := range upcoming {
		recipients := append([]string{detail.UserID}, detail.ParticipantIDs...)
		for _, userID := range recipients {
			delivered, deliverErr := s.remindUser(ctx, userID, detail, now)
			if deliverErr != nil {
				logger.ErrorContext(ctx, "failed to deliver reminder",
					"reservation_id", detail.ID,
					"recipient_id", userID,
					"error", deliverErr,
				)
				continue
			}
			if delivered {
				sent++
			}
		}
	}

	if sent > 0 {
		logger.With("sent", sent).InfoContext(ctx, "reminder sweep completed")
	}
	return
}

func (s *ReminderService) remindUser(ctx context.Context, userID string, detail persistence.ReservationDetail, now time.Time) (bool, error) {
	key := userID + "|" + detail.ID
	if s.recent.Contains(key) {
		return false, nil
	}

	already, err := s.notifications.HasNotification(ctx, userID, detail.ID, notifier.KindReservationReminder)
	if err != nil {
		return false, err
	}
	if already {
		s.recent.Add(key)
		return false, nil
	}

	reservationID := detail.ID
	notification := persistence.Notification{
		ID:            s.idGenerator(),
		UserID:        userID,
		ReservationID: &reservationID,
		Kind:          notifier.KindReservationReminder,
		Message:       fmt.Sprintf("%s starts at %s", detail.ClassroomName, detail.Start.Format(time.RFC3339)),
		CreatedAt:     now,
	}
	if err := s.notifications.CreateNotification(ctx, notification); err != nil {
		return false, err
	}
	s.recent.Add(key)

	if err := s.publisher.Publish(ctx, notifier.Event{
		Kind:          notifier.KindReservationReminder,
		UserID:        userID,
		ReservationID: detail.ID,
		ClassroomID:   detail.ClassroomID,
		Start:         detail.Start,
		End:           detail.End,
		OccurredAt:    now,
	}); err != nil {
		// The inbox entry is stored; delivery to the broker is best effort.
		s.logger.ErrorContext(ctx, "failed to publish reminder event", "reservation_id", detail.ID, "error", err)
	}

	s.metrics.ReminderSent()
	return true, nil
}
