// Package notifier publishes reservation lifecycle events to an external
// message broker so other systems can react to bookings, cancellations and
// waitlist promotions.
package notifier

import (
	"context"
	"time"
)

// Event kinds emitted by the reservation services.
const (
	KindReservationCreated   = "reservation.created"
	KindReservationCancelled = "reservation.cancelled"
	KindWaitlistAssigned     = "waitlist.assigned"
	KindReservationReminder  = "reservation.reminder"
)

// Event describes a single reservation lifecycle occurrence.
type Event struct {
	Kind          string    `json:"kind"`
	UserID        string    `json:"user_id"`
	ReservationID string    `json:"reservation_id,omitempty"`
	ClassroomID   string    `json:"classroom_id,omitempty"`
	Start         time.Time `json:"start,omitempty"`
	End           time.Time `json:"end,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards every event. It stands in when no broker is
// configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
