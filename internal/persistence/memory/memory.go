package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/classroom-reservation/internal/persistence"
)

// Storage is an in-memory implementation of every repository interface. It
// backs application-service tests and small single-process deployments.
// A single mutex guards all maps, which mirrors the single-writer guarantee
// of the SQLite store: check-then-insert units are atomic under the lock.
type Storage struct {
	mu            sync.RWMutex
	users         map[string]persistence.User
	classrooms    map[string]persistence.Classroom
	reservations  map[string]persistence.Reservation
	waitlist      map[string]persistence.WaitlistEntry
	notifications map[string]persistence.Notification
	sessions      map[string]persistence.Session
}

// NewStorage returns an empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{
		users:         make(map[string]persistence.User),
		classrooms:    make(map[string]persistence.Classroom),
		reservations:  make(map[string]persistence.Reservation),
		waitlist:      make(map[string]persistence.WaitlistEntry),
		notifications: make(map[string]persistence.Notification),
		sessions:      make(map[string]persistence.Session),
	}
}

// --- UserRepository ---

// CreateUser stores a new account.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.users {
		if existing.StudentNumber == user.StudentNumber {
			return persistence.ErrDuplicate
		}
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves an account by id.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByStudentNumber retrieves an account by student number.
func (s *Storage) GetUserByStudentNumber(ctx context.Context, studentNumber string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.StudentNumber == studentNumber {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ResolveStudentNumbers maps student numbers to user ids, dropping unknowns.
func (s *Storage) ResolveStudentNumbers(ctx context.Context, studentNumbers []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byNumber := make(map[string]string, len(s.users))
	for _, user := range s.users {
		byNumber[user.StudentNumber] = user.ID
	}

	var ids []string
	seen := make(map[string]struct{}, len(studentNumbers))
	for _, number := range studentNumbers {
		id, ok := byNumber[number]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListUsers returns all accounts ordered by student number.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].StudentNumber < users[j].StudentNumber })
	return users, nil
}

// --- ClassroomRepository ---

// CreateClassroom stores a new catalog entry.
func (s *Storage) CreateClassroom(ctx context.Context, room persistence.Classroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classrooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.classrooms {
		if existing.Name == room.Name {
			return persistence.ErrDuplicate
		}
	}

	s.classrooms[room.ID] = room
	return nil
}

// UpdateClassroom rewrites an existing entry.
func (s *Storage) UpdateClassroom(ctx context.Context, room persistence.Classroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classrooms[room.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.classrooms[room.ID] = room
	return nil
}

// GetClassroom retrieves a classroom by id.
func (s *Storage) GetClassroom(ctx context.Context, id string) (persistence.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.classrooms[id]
	if !ok {
		return persistence.Classroom{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListClassrooms returns entries matching the filter ordered by name.
func (s *Storage) ListClassrooms(ctx context.Context, filter persistence.ClassroomFilter) ([]persistence.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rooms []persistence.Classroom
	for _, room := range s.classrooms {
		if filter.MinCapacity != nil && room.Capacity < *filter.MinCapacity {
			continue
		}
		if filter.HasProjector != nil && room.HasProjector != *filter.HasProjector {
			continue
		}
		if filter.HasWhiteboard != nil && room.HasWhiteboard != *filter.HasWhiteboard {
			continue
		}
		if filter.NameContains != "" && !containsFold(room.Name, filter.NameContains) {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms, nil
}

// DeleteClassroom removes a catalog entry.
func (s *Storage) DeleteClassroom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classrooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.classrooms, id)
	return nil
}

// --- ReservationRepository ---

// CreateReservation re-runs the cap and overlap checks under the storage
// lock before inserting, matching the SQLite store's transaction semantics.
func (s *Storage) CreateReservation(ctx context.Context, reservation persistence.Reservation, now time.Time, maxActive int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxActive > 0 {
		count := 0
		for _, existing := range s.reservations {
			if existing.UserID == reservation.UserID &&
				existing.Status == persistence.ReservationActive &&
				existing.Start.After(now) {
				count++
			}
		}
		if count >= maxActive {
			return persistence.ErrLimitExceeded
		}
	}

	for _, existing := range s.reservations {
		if existing.ClassroomID != reservation.ClassroomID || existing.Status != persistence.ReservationActive {
			continue
		}
		if existing.Start.Before(reservation.End) && reservation.Start.Before(existing.End) {
			return persistence.ErrConflict
		}
	}

	reservation.Status = persistence.ReservationActive
	reservation.ParticipantIDs = append([]string(nil), reservation.ParticipantIDs...)
	s.reservations[reservation.ID] = reservation
	return nil
}

// GetReservation retrieves a reservation by id.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return reservation, nil
}

// GetReservationDetail retrieves a reservation joined with display fields.
func (s *Storage) GetReservationDetail(ctx context.Context, id string) (persistence.ReservationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.ReservationDetail{}, persistence.ErrNotFound
	}
	return s.detailLocked(reservation), nil
}

// CancelReservation flips an active reservation to cancelled.
func (s *Storage) CancelReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok || reservation.Status != persistence.ReservationActive {
		return persistence.ErrNotFound
	}
	reservation.Status = persistence.ReservationCancelled
	s.reservations[id] = reservation
	return nil
}

// CountFutureActiveByUser counts active future reservations the user owns.
func (s *Storage) CountFutureActiveByUser(ctx context.Context, userID string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, reservation := range s.reservations {
		if reservation.UserID == userID &&
			reservation.Status == persistence.ReservationActive &&
			reservation.Start.After(now) {
			count++
		}
	}
	return count, nil
}

// ListActiveOverlapping returns active reservations intersecting [start, end).
func (s *Storage) ListActiveOverlapping(ctx context.Context, classroomID string, start, end time.Time) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reservations []persistence.Reservation
	for _, reservation := range s.reservations {
		if reservation.ClassroomID != classroomID || reservation.Status != persistence.ReservationActive {
			continue
		}
		if reservation.Start.Before(end) && start.Before(reservation.End) {
			reservations = append(reservations, reservation)
		}
	}
	sortReservations(reservations)
	return reservations, nil
}

// ListActiveByClassroom returns the active timeline for a classroom.
func (s *Storage) ListActiveByClassroom(ctx context.Context, classroomID string) ([]persistence.ReservationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var details []persistence.ReservationDetail
	for _, reservation := range s.reservations {
		if reservation.ClassroomID == classroomID && reservation.Status == persistence.ReservationActive {
			details = append(details, s.detailLocked(reservation))
		}
	}
	sortDetails(details)
	return details, nil
}

// ListActiveForUser returns active reservations the user owns or joins.
func (s *Storage) ListActiveForUser(ctx context.Context, userID string) ([]persistence.ReservationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var details []persistence.ReservationDetail
	for _, reservation := range s.reservations {
		if reservation.Status != persistence.ReservationActive {
			continue
		}
		if reservation.UserID == userID || containsString(reservation.ParticipantIDs, userID) {
			details = append(details, s.detailLocked(reservation))
		}
	}
	sortDetails(details)
	return details, nil
}

// ListTopClassrooms ranks classrooms by active reservation count.
func (s *Storage) ListTopClassrooms(ctx context.Context, limit int) ([]persistence.ClassroomUsage, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, reservation := range s.reservations {
		if reservation.Status == persistence.ReservationActive {
			counts[reservation.ClassroomID]++
		}
	}

	var usages []persistence.ClassroomUsage
	for classroomID, count := range counts {
		usage := persistence.ClassroomUsage{ClassroomID: classroomID, ReservationCount: count}
		if room, ok := s.classrooms[classroomID]; ok {
			usage.Name = room.Name
			usage.Location = room.Location
		}
		usages = append(usages, usage)
	}
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].ReservationCount != usages[j].ReservationCount {
			return usages[i].ReservationCount > usages[j].ReservationCount
		}
		return usages[i].Name < usages[j].Name
	})
	if len(usages) > limit {
		usages = usages[:limit]
	}
	return usages, nil
}

// ListStartingBetween returns active reservations with start in (from, to].
func (s *Storage) ListStartingBetween(ctx context.Context, from, to time.Time) ([]persistence.ReservationDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var details []persistence.ReservationDetail
	for _, reservation := range s.reservations {
		if reservation.Status != persistence.ReservationActive {
			continue
		}
		if reservation.Start.After(from) && !reservation.Start.After(to) {
			details = append(details, s.detailLocked(reservation))
		}
	}
	sortDetails(details)
	return details, nil
}

func (s *Storage) detailLocked(reservation persistence.Reservation) persistence.ReservationDetail {
	detail := persistence.ReservationDetail{Reservation: reservation}
	detail.ParticipantIDs = append([]string(nil), reservation.ParticipantIDs...)
	if room, ok := s.classrooms[reservation.ClassroomID]; ok {
		detail.ClassroomName = room.Name
		detail.ClassroomLocation = room.Location
	}
	if owner, ok := s.users[reservation.UserID]; ok {
		detail.OwnerName = owner.Name
		detail.OwnerStudentNumber = owner.StudentNumber
	}
	return detail
}

// --- WaitlistRepository ---

// CreateEntry stores a waiting entry, assigning the next queue position
// within the (classroom, start, end) triple under the lock.
func (s *Storage) CreateEntry(ctx context.Context, entry persistence.WaitlistEntry) (persistence.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.waitlist[entry.ID]; ok {
		return persistence.WaitlistEntry{}, persistence.ErrDuplicate
	}

	maxPosition := 0
	for _, existing := range s.waitlist {
		if existing.ClassroomID == entry.ClassroomID &&
			existing.Start.Equal(entry.Start) &&
			existing.End.Equal(entry.End) &&
			existing.QueuePosition > maxPosition {
			maxPosition = existing.QueuePosition
		}
	}

	entry.QueuePosition = maxPosition + 1
	entry.Status = persistence.WaitlistWaiting
	s.waitlist[entry.ID] = entry
	return entry, nil
}

// GetEntry retrieves a waitlist entry by id.
func (s *Storage) GetEntry(ctx context.Context, id string) (persistence.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.waitlist[id]
	if !ok {
		return persistence.WaitlistEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

// CancelEntry flips a waiting entry to cancelled.
func (s *Storage) CancelEntry(ctx context.Context, id string) error {
	return s.transitionEntry(id, persistence.WaitlistCancelled)
}

// MarkAssigned flips a waiting entry to assigned.
func (s *Storage) MarkAssigned(ctx context.Context, id string) error {
	return s.transitionEntry(id, persistence.WaitlistAssigned)
}

func (s *Storage) transitionEntry(id string, to persistence.WaitlistStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.waitlist[id]
	if !ok || entry.Status != persistence.WaitlistWaiting {
		return persistence.ErrNotFound
	}
	entry.Status = to
	s.waitlist[id] = entry
	return nil
}

// ListWaitingContained returns waiting entries fully inside [start, end] in
// FIFO order.
func (s *Storage) ListWaitingContained(ctx context.Context, classroomID string, start, end time.Time) ([]persistence.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []persistence.WaitlistEntry
	for _, entry := range s.waitlist {
		if entry.ClassroomID != classroomID || entry.Status != persistence.WaitlistWaiting {
			continue
		}
		if !entry.Start.Before(start) && !entry.End.After(end) {
			entries = append(entries, entry)
		}
	}
	sortWaitlist(entries)
	return entries, nil
}

// ListWaitingForUser returns the user's waiting entries in FIFO order.
func (s *Storage) ListWaitingForUser(ctx context.Context, userID string) ([]persistence.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []persistence.WaitlistEntry
	for _, entry := range s.waitlist {
		if entry.UserID == userID && entry.Status == persistence.WaitlistWaiting {
			entries = append(entries, entry)
		}
	}
	sortWaitlist(entries)
	return entries, nil
}

// --- NotificationRepository ---

// CreateNotification stores a new inbox entry.
func (s *Storage) CreateNotification(ctx context.Context, notification persistence.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[notification.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.notifications[notification.ID] = notification
	return nil
}

// ListForUser returns the user's notifications, newest first.
func (s *Storage) ListForUser(ctx context.Context, userID string) ([]persistence.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notifications []persistence.Notification
	for _, notification := range s.notifications {
		if notification.UserID == userID {
			notifications = append(notifications, notification)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		if notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].ID > notifications[j].ID
		}
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

// MarkRead marks a notification read when it belongs to the user.
func (s *Storage) MarkRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[id]
	if !ok || notification.UserID != userID {
		return persistence.ErrNotFound
	}
	notification.IsRead = true
	s.notifications[id] = notification
	return nil
}

// HasNotification reports whether a notification of the given kind exists
// for the (user, reservation) pair.
func (s *Storage) HasNotification(ctx context.Context, userID, reservationID, kind string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, notification := range s.notifications {
		if notification.UserID == userID &&
			notification.ReservationID != nil && *notification.ReservationID == reservationID &&
			notification.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// --- SessionRepository ---

// CreateSession stores a newly issued session.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.ErrDuplicate
	}
	s.sessions[session.Token] = session
	return nil
}

// GetSessionByToken retrieves a session by token.
func (s *Storage) GetSessionByToken(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

// RevokeSession marks the session revoked.
func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok || session.RevokedAt != nil {
		return persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[token] = session
	return nil
}

// DeleteExpiredSessions removes sessions expired before the reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}

func sortReservations(reservations []persistence.Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID < reservations[j].ID
		}
		return reservations[i].Start.Before(reservations[j].Start)
	})
}

func sortDetails(details []persistence.ReservationDetail) {
	sort.Slice(details, func(i, j int) bool {
		if details[i].Start.Equal(details[j].Start) {
			return details[i].ID < details[j].ID
		}
		return details[i].Start.Before(details[j].Start)
	})
}

func sortWaitlist(entries []persistence.WaitlistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].QueuePosition < entries[j].QueuePosition
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
