package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/classroom-reservation/internal/persistence"
)

// UserService manages account registration and lookup.
type UserService struct {
	users        persistence.UserRepository
	hashPassword func(string) (string, error)
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for account operations.
func NewUserService(users persistence.UserRepository, hashPassword func(string) (string, error), idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hashPassword == nil {
		hashPassword = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:        users,
		hashPassword: hashPassword,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// RegisterUser creates an account keyed by student number.
func (s *UserService) RegisterUser(ctx context.Context, params RegisterUserParams) (user persistence.User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	studentNumber := strings.TrimSpace(params.StudentNumber)
	logger := s.loggerWith(ctx, "RegisterUser", "student_number", studentNumber)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "user registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	vErr := &ValidationError{}
	if studentNumber == "" {
		vErr.add("student_number", "student number is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		vErr.add("name", "name is required")
	}
	if len(params.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		return
	}

	now := s.now()
	user = persistence.User{
		ID:            s.idGenerator(),
		StudentNumber: studentNumber,
		Name:          strings.TrimSpace(params.Name),
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err = s.users.CreateUser(ctx, user); err != nil {
		user = persistence.User{}
		err = mapRepoError(err)
	}
	return
}

// GetUser retrieves an account by id.
func (s *UserService) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if s == nil || s.users == nil {
		return persistence.User{}, fmt.Errorf("user repository not configured")
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return persistence.User{}, mapRepoError(err)
	}
	return user, nil
}
