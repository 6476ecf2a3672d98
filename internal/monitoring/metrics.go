// Package monitoring exposes Prometheus counters for the reservation
// services.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the counters incremented by the application services.
// A nil *Metrics is valid and records nothing, which keeps tests free of
// registry setup.
type Metrics struct {
	reservationsCreated   prometheus.Counter
	reservationsCancelled prometheus.Counter
	conflictRejections    prometheus.Counter
	cascadeRuns           prometheus.Counter
	cascadeAssignments    prometheus.Counter
	remindersSent         prometheus.Counter
}

// NewMetrics registers the counters with the given registerer. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reservationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservations_created_total",
			Help: "Reservations successfully created",
		}),
		reservationsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservations_cancelled_total",
			Help: "Reservations cancelled by their owner or an admin",
		}),
		conflictRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservation_conflicts_total",
			Help: "Reservation attempts rejected because the slot was taken",
		}),
		cascadeRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_cascade_runs_total",
			Help: "Waitlist cascades triggered by cancellations",
		}),
		cascadeAssignments: factory.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_assignments_total",
			Help: "Waitlist entries promoted to reservations",
		}),
		remindersSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "reservation_reminders_total",
			Help: "Reminder notifications delivered",
		}),
	}
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ReservationCreated() {
	if m != nil {
		m.reservationsCreated.Inc()
	}
}

func (m *Metrics) ReservationCancelled() {
	if m != nil {
		m.reservationsCancelled.Inc()
	}
}

func (m *Metrics) ConflictRejected() {
	if m != nil {
		m.conflictRejections.Inc()
	}
}

// CascadeRun records one cascade pass and how many entries it assigned.
func (m *Metrics) CascadeRun(assigned int) {
	if m == nil {
		return
	}
	m.cascadeRuns.Inc()
	m.cascadeAssignments.Add(float64(assigned))
}

func (m *Metrics) ReminderSent() {
	if m != nil {
		m.remindersSent.Inc()
	}
}
