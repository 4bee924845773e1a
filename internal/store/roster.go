package store

import (
	"context"

	"github.com/pavelanni/cbt/internal/model"
)

// CreateClassroom inserts a classroom, returning the existing ID when the name is taken.
func (s *Store) CreateClassroom(ctx context.Context, name string) (int64, error) {
	_, err := s.q.ExecContext(ctx, `INSERT INTO classrooms (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.q.QueryRowContext(ctx, `SELECT id FROM classrooms WHERE name = ?`, name).Scan(&id)
	return id, err
}

// GetClassroom returns a classroom by ID.
func (s *Store) GetClassroom(ctx context.Context, id int64) (model.Classroom, error) {
	var c model.Classroom
	err := s.q.QueryRowContext(ctx, `SELECT id, name FROM classrooms WHERE id = ?`, id).Scan(&c.ID, &c.Name)
	return c, err
}

// EnrollStudent adds a student to a classroom roster. Enrolling twice is a no-op.
func (s *Store) EnrollStudent(ctx context.Context, classroomID, studentID int64) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO classroom_students (classroom_id, student_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		classroomID, studentID)
	return err
}

// UnenrollStudent removes a student from a classroom roster.
func (s *Store) UnenrollStudent(ctx context.Context, classroomID, studentID int64) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM classroom_students WHERE classroom_id = ? AND student_id = ?`, classroomID, studentID)
	return err
}

// ListStudents returns the active students of a classroom.
func (s *Store) ListStudents(ctx context.Context, classroomID int64) ([]model.StudentRef, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT u.id, u.display_name FROM classroom_students cs
		 JOIN users u ON u.id = cs.student_id
		 WHERE cs.classroom_id = ? AND u.active = 1 AND u.role = 'student'
		 ORDER BY u.id`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.StudentRef
	for rows.Next() {
		var ref model.StudentRef
		if err := rows.Scan(&ref.StudentID, &ref.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
