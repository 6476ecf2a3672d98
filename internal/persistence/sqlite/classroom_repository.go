package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/classroom-reservation/internal/persistence"
)

// ClassroomRepository implements persistence.ClassroomRepository on SQLite.
type ClassroomRepository struct {
	db *DB
}

// NewClassroomRepository constructs a repository over the shared handle.
func NewClassroomRepository(db *DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// CreateClassroom inserts a new catalog entry.
func (r *ClassroomRepository) CreateClassroom(ctx context.Context, room persistence.Classroom) error {
	if room.ID == "" {
		return fmt.Errorf("sqlite: classroom id is empty")
	}
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO classrooms (id, name, location, capacity, has_projector, has_whiteboard, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.Name, room.Location, room.Capacity,
		boolToInt(room.HasProjector), boolToInt(room.HasWhiteboard),
		formatTime(room.CreatedAt), formatTime(room.UpdatedAt),
	)
	return mapError(err)
}

// UpdateClassroom rewrites the mutable fields of an existing entry.
func (r *ClassroomRepository) UpdateClassroom(ctx context.Context, room persistence.Classroom) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE classrooms
		 SET name = ?, location = ?, capacity = ?, has_projector = ?, has_whiteboard = ?, updated_at = ?
		 WHERE id = ?`,
		room.Name, room.Location, room.Capacity,
		boolToInt(room.HasProjector), boolToInt(room.HasWhiteboard),
		formatTime(room.UpdatedAt), room.ID,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetClassroom retrieves a classroom by id.
func (r *ClassroomRepository) GetClassroom(ctx context.Context, id string) (persistence.Classroom, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT id, name, location, capacity, has_projector, has_whiteboard, created_at, updated_at
		 FROM classrooms WHERE id = ?`, id)
	room, err := scanClassroom(row)
	if err != nil {
		return persistence.Classroom{}, mapError(err)
	}
	return room, nil
}

// ListClassrooms returns catalog entries matching the filter, ordered by name.
// Filter fields translate to parameterized WHERE clauses.
func (r *ClassroomRepository) ListClassrooms(ctx context.Context, filter persistence.ClassroomFilter) ([]persistence.Classroom, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT id, name, location, capacity, has_projector, has_whiteboard, created_at, updated_at
		 FROM classrooms`)

	var (
		clauses []string
		args    []any
	)
	if filter.MinCapacity != nil {
		clauses = append(clauses, "capacity >= ?")
		args = append(args, *filter.MinCapacity)
	}
	if filter.HasProjector != nil {
		clauses = append(clauses, "has_projector = ?")
		args = append(args, boolToInt(*filter.HasProjector))
	}
	if filter.HasWhiteboard != nil {
		clauses = append(clauses, "has_whiteboard = ?")
		args = append(args, boolToInt(*filter.HasWhiteboard))
	}
	if filter.NameContains != "" {
		clauses = append(clauses, "name LIKE ?")
		args = append(args, "%"+filter.NameContains+"%")
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY name ASC")

	rows, err := r.db.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Classroom
	for rows.Next() {
		room, err := scanClassroom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// DeleteClassroom removes a catalog entry.
func (r *ClassroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	result, err := r.db.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanClassroom(row rowScanner) (persistence.Classroom, error) {
	var (
		room          persistence.Classroom
		hasProjector  int
		hasWhiteboard int
		created       string
		updated       string
	)
	err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &hasProjector, &hasWhiteboard, &created, &updated)
	if err != nil {
		return persistence.Classroom{}, err
	}

	room.HasProjector = hasProjector != 0
	room.HasWhiteboard = hasWhiteboard != 0
	if room.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Classroom{}, err
	}
	if room.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Classroom{}, err
	}

	return room, nil
}
