package persistence

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
	// ReservationActive marks a confirmed claim on a classroom slot.
	ReservationActive ReservationStatus = "active"
	// ReservationCancelled is the terminal state after an explicit cancel.
	ReservationCancelled ReservationStatus = "cancelled"
)

// WaitlistStatus enumerates the lifecycle states of a waitlist entry.
type WaitlistStatus string

const (
	// WaitlistWaiting marks an entry still eligible for assignment.
	WaitlistWaiting WaitlistStatus = "waiting"
	// WaitlistAssigned marks an entry converted into a reservation.
	WaitlistAssigned WaitlistStatus = "assigned"
	// WaitlistCancelled is the terminal state after an explicit cancel.
	WaitlistCancelled WaitlistStatus = "cancelled"
)

// User represents a registered account.
type User struct {
	ID            string
	StudentNumber string
	Name          string
	PasswordHash  string
	IsAdmin       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Classroom represents a bookable room catalog entry.
type Classroom struct {
	ID            string
	Name          string
	Location      string
	Capacity      int
	HasProjector  bool
	HasWhiteboard bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Reservation represents a confirmed, time-bound claim on a classroom.
type Reservation struct {
	ID             string
	ClassroomID    string
	UserID         string
	Start          time.Time
	End            time.Time
	Status         ReservationStatus
	ParticipantIDs []string
	CreatedAt      time.Time
}

// ReservationDetail is a reservation joined with owner and classroom display
// fields for API responses and notifications.
type ReservationDetail struct {
	Reservation
	ClassroomName      string
	ClassroomLocation  string
	OwnerName          string
	OwnerStudentNumber string
}

// ClassroomUsage aggregates the active reservation count for one classroom.
// Used by the admin usage ranking.
type ClassroomUsage struct {
	ClassroomID      string
	Name             string
	Location         string
	ReservationCount int
}

// WaitlistEntry represents a standing request to be auto-booked once the
// desired window frees up.
type WaitlistEntry struct {
	ID            string
	ClassroomID   string
	UserID        string
	Start         time.Time
	End           time.Time
	QueuePosition int
	Status        WaitlistStatus
	CreatedAt     time.Time
}

// Notification represents a persisted inbox entry for a user.
type Notification struct {
	ID            string
	UserID        string
	ReservationID *string
	Kind          string
	Message       string
	IsRead        bool
	CreatedAt     time.Time
}

// Session represents an authentication session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
