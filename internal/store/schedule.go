package store

import (
	"context"

	"github.com/pavelanni/cbt/internal/model"
)

const scheduleColumns = `id, exam_id, classroom_id, term_id, scheduled_date, start_time, end_time, status`

func scanSchedule(sc scanner, s *model.ExamSchedule) error {
	return sc.Scan(&s.ID, &s.ExamID, &s.ClassroomID, &s.TermID, &s.ScheduledDate, &s.StartTime, &s.EndTime, &s.Status)
}

// CreateSchedule inserts a schedule in the scheduled state.
func (s *Store) CreateSchedule(ctx context.Context, sc model.ExamSchedule) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO exam_schedules (exam_id, classroom_id, term_id, scheduled_date, start_time, end_time, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.ExamID, sc.ClassroomID, sc.TermID, sc.ScheduledDate, sc.StartTime, sc.EndTime, model.ScheduleScheduled,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSchedule returns a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, id int64) (model.ExamSchedule, error) {
	var sc model.ExamSchedule
	err := scanSchedule(s.q.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM exam_schedules WHERE id = ?`, id), &sc)
	return sc, err
}

// TransitionSchedule moves a schedule from one status to another. It reports
// false when the schedule was not in the from status.
func (s *Store) TransitionSchedule(ctx context.Context, id int64, from, to model.ScheduleStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE exam_schedules SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListSchedulesByStatus returns all schedules in the given status.
func (s *Store) ListSchedulesByStatus(ctx context.Context, status model.ScheduleStatus) ([]model.ExamSchedule, error) {
	return s.listSchedules(ctx, `SELECT `+scheduleColumns+` FROM exam_schedules WHERE status = ? ORDER BY id`, status)
}

// ListSchedulesForExam returns the schedules of an exam.
func (s *Store) ListSchedulesForExam(ctx context.Context, examID int64) ([]model.ExamSchedule, error) {
	return s.listSchedules(ctx, `SELECT `+scheduleColumns+` FROM exam_schedules WHERE exam_id = ? ORDER BY id`, examID)
}

// FindStudentSchedules returns the schedules of an exam for the classrooms the
// student belongs to. Live schedules come first, then the most recent.
func (s *Store) FindStudentSchedules(ctx context.Context, studentID, examID int64) ([]model.ExamSchedule, error) {
	return s.listSchedules(ctx,
		`SELECT `+scheduleColumns+` FROM exam_schedules
		 WHERE exam_id = ?
		   AND classroom_id IN (SELECT classroom_id FROM classroom_students WHERE student_id = ?)
		 ORDER BY CASE status WHEN 'ongoing' THEN 0 WHEN 'scheduled' THEN 1 ELSE 2 END,
			scheduled_date DESC, start_time DESC, id DESC`,
		examID, studentID)
}

func (s *Store) listSchedules(ctx context.Context, query string, args ...any) ([]model.ExamSchedule, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ExamSchedule
	for rows.Next() {
		var sc model.ExamSchedule
		if err := scanSchedule(rows, &sc); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
