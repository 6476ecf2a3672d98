package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// ReservationInput captures caller provided reservation fields. Participants
// are identified by student number and resolved to user ids during creation.
type ReservationInput struct {
	ClassroomID        string
	Start              time.Time
	End                time.Time
	ParticipantNumbers []string
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// WaitlistInput captures caller provided waitlist fields.
type WaitlistInput struct {
	ClassroomID string
	Start       time.Time
	End         time.Time
}

// CreateWaitlistParams wraps the data required to join a waitlist.
type CreateWaitlistParams struct {
	Principal Principal
	Input     WaitlistInput
}

// ClassroomInput captures caller provided classroom fields.
type ClassroomInput struct {
	Name          string
	Location      string
	Capacity      int
	HasProjector  bool
	HasWhiteboard bool
}

// CreateClassroomParams wraps the data required to create a classroom.
type CreateClassroomParams struct {
	Principal Principal
	Input     ClassroomInput
}

// UpdateClassroomParams wraps the data required to update a classroom.
type UpdateClassroomParams struct {
	Principal   Principal
	ClassroomID string
	Input       ClassroomInput
}

// SearchClassroomsParams narrows classroom listings.
type SearchClassroomsParams struct {
	MinCapacity   *int
	HasProjector  *bool
	HasWhiteboard *bool
	NameContains  string
}

// RegisterUserParams wraps the data required to register an account.
type RegisterUserParams struct {
	StudentNumber string
	Name          string
	Password      string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	StudentNumber string
	Password      string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	UserID    string
	Name      string
	IsAdmin   bool
	Token     string
	ExpiresAt time.Time
}

// CascadeResult reports what a waitlist cascade changed.
type CascadeResult struct {
	AssignedEntryIDs  []string
	ReservationIDs    []string
	ExaminedEntries   int
	SkippedOnConflict int
}
