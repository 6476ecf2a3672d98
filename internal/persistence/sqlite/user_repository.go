package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/classroom-reservation/internal/persistence"
)

// UserRepository implements persistence.UserRepository on SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository constructs a repository over the shared handle.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new account. Duplicate student numbers surface as
// ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return fmt.Errorf("sqlite: user id is empty")
	}
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO users (id, student_number, name, password_hash, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.StudentNumber, user.Name, user.PasswordHash,
		boolToInt(user.IsAdmin), formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	return mapError(err)
}

// GetUser retrieves an account by id.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := r.db.db.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return user, nil
}

// GetUserByStudentNumber retrieves an account by student number.
func (r *UserRepository) GetUserByStudentNumber(ctx context.Context, studentNumber string) (persistence.User, error) {
	row := r.db.db.QueryRowContext(ctx, userSelect+` WHERE student_number = ?`, studentNumber)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, mapError(err)
	}
	return user, nil
}

// ResolveStudentNumbers maps student numbers to user ids, dropping unknown
// numbers without error.
func (r *UserRepository) ResolveStudentNumbers(ctx context.Context, studentNumbers []string) ([]string, error) {
	if len(studentNumbers) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(studentNumbers))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(studentNumbers))
	for i, number := range studentNumbers {
		args[i] = number
	}

	rows, err := r.db.db.QueryContext(ctx,
		`SELECT student_number, id FROM users WHERE student_number IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	byNumber := make(map[string]string, len(studentNumbers))
	for rows.Next() {
		var number, id string
		if err := rows.Scan(&number, &id); err != nil {
			return nil, err
		}
		byNumber[number] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
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
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.db.db.QueryContext(ctx, userSelect+` ORDER BY student_number ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

const userSelect = `SELECT id, student_number, name, password_hash, is_admin, created_at, updated_at FROM users`

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user    persistence.User
		isAdmin int
		created string
		updated string
	)
	err := row.Scan(&user.ID, &user.StudentNumber, &user.Name, &user.PasswordHash, &isAdmin, &created, &updated)
	if err != nil {
		return persistence.User{}, err
	}

	user.IsAdmin = isAdmin != 0
	if user.CreatedAt, err = parseTime(created); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.User{}, err
	}

	return user, nil
}
