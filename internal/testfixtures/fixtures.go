package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/classroom-reservation/internal/persistence"
)

var (
	userCounter        uint64
	classroomCounter   uint64
	reservationCounter uint64
	waitlistCounter    uint64
	sessionCounter     uint64
)

// referenceTime sits on an hour boundary so slot arithmetic stays aligned.
var referenceTime = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Slot returns a one hour slot starting the given number of hours after the
// reference time.
func Slot(hoursAhead int) (time.Time, time.Time) {
	start := referenceTime.Add(time.Duration(hoursAhead) * time.Hour)
	return start, start.Add(time.Hour)
}

// UserOption configures a generated user fixture.
type UserOption func(*persistence.User)

// NewUser returns a deterministic user record with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	user := persistence.User{
		ID:            fmt.Sprintf("user-%03d", idx),
		StudentNumber: fmt.Sprintf("s%04d", idx),
		Name:          fmt.Sprintf("Student %03d", idx),
		PasswordHash:  fmt.Sprintf("hash-%03d", idx),
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithStudentNumber overrides the generated student number.
func WithStudentNumber(number string) UserOption {
	return func(u *persistence.User) { u.StudentNumber = number }
}

// WithPasswordHash overrides the stored password hash.
func WithPasswordHash(hash string) UserOption {
	return func(u *persistence.User) { u.PasswordHash = hash }
}

// AsAdmin marks the user as an administrator.
func AsAdmin() UserOption {
	return func(u *persistence.User) { u.IsAdmin = true }
}

// ClassroomOption configures a generated classroom fixture.
type ClassroomOption func(*persistence.Classroom)

// NewClassroom returns a deterministic classroom record with optional overrides.
func NewClassroom(opts ...ClassroomOption) persistence.Classroom {
	idx := atomic.AddUint64(&classroomCounter, 1)
	room := persistence.Classroom{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Building A",
		Capacity:  30,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithClassroomID overrides the generated classroom ID.
func WithClassroomID(id string) ClassroomOption {
	return func(c *persistence.Classroom) { c.ID = id }
}

// WithCapacity overrides the classroom capacity.
func WithCapacity(capacity int) ClassroomOption {
	return func(c *persistence.Classroom) { c.Capacity = capacity }
}

// WithEquipment sets the projector and whiteboard flags.
func WithEquipment(projector, whiteboard bool) ClassroomOption {
	return func(c *persistence.Classroom) {
		c.HasProjector = projector
		c.HasWhiteboard = whiteboard
	}
}

// ReservationOption configures a generated reservation fixture.
type ReservationOption func(*persistence.Reservation)

// NewReservation returns a deterministic active reservation for the supplied
// owner and classroom, occupying the slot one hour after the reference time.
func NewReservation(classroomID, userID string, opts ...ReservationOption) persistence.Reservation {
	idx := atomic.AddUint64(&reservationCounter, 1)
	start, end := Slot(1)
	reservation := persistence.Reservation{
		ID:          fmt.Sprintf("reservation-%03d", idx),
		ClassroomID: classroomID,
		UserID:      userID,
		Start:       start,
		End:         end,
		Status:      persistence.ReservationActive,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&reservation)
	}
	return reservation
}

// WithReservationSlot overrides the reserved slot.
func WithReservationSlot(start, end time.Time) ReservationOption {
	return func(r *persistence.Reservation) {
		r.Start = start
		r.End = end
	}
}

// WithParticipants sets the participant user ids.
func WithParticipants(ids ...string) ReservationOption {
	return func(r *persistence.Reservation) { r.ParticipantIDs = ids }
}

// WaitlistOption configures a generated waitlist fixture.
type WaitlistOption func(*persistence.WaitlistEntry)

// NewWaitlistEntry returns a deterministic waiting entry for the supplied user
// and classroom, targeting the slot one hour after the reference time.
func NewWaitlistEntry(classroomID, userID string, opts ...WaitlistOption) persistence.WaitlistEntry {
	idx := atomic.AddUint64(&waitlistCounter, 1)
	start, end := Slot(1)
	entry := persistence.WaitlistEntry{
		ID:          fmt.Sprintf("entry-%03d", idx),
		ClassroomID: classroomID,
		UserID:      userID,
		Start:       start,
		End:         end,
		Status:      persistence.WaitlistWaiting,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return entry
}

// WithWaitlistSlot overrides the desired slot.
func WithWaitlistSlot(start, end time.Time) WaitlistOption {
	return func(e *persistence.WaitlistEntry) {
		e.Start = start
		e.End = end
	}
}

// NewSession returns a deterministic session for the supplied user, valid for
// a day past the reference time.
func NewSession(userID string) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	return persistence.Session{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    userID,
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: referenceTime.Add(24 * time.Hour),
		CreatedAt: referenceTime,
	}
}
