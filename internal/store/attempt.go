package store

import (
	"context"
	"time"

	"github.com/pavelanni/cbt/internal/model"
)

const attemptColumns = `a.id, a.exam_schedule_id, a.exam_id, a.student_id, a.start_time, a.end_time, a.status,
	a.total_score, a.percentage, a.time_taken, a.tab_switches, a.ip_address, a.user_agent, a.browser_info`

func scanAttempt(sc scanner, a *model.Attempt) error {
	return sc.Scan(&a.ID, &a.ExamScheduleID, &a.ExamID, &a.StudentID, &a.StartTime, &a.EndTime, &a.Status,
		&a.TotalScore, &a.Percentage, &a.TimeTaken, &a.TabSwitches, &a.IPAddress, &a.UserAgent, &a.BrowserInfo)
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, id int64) (model.Attempt, error) {
	var a model.Attempt
	err := scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.id = ?`, id), &a)
	return a, err
}

// FindAttemptForExam returns the student's attempt at an exam in either
// addressing mode. An attempt already begun wins over a not_started one,
// then the newest.
func (s *Store) FindAttemptForExam(ctx context.Context, studentID, examID int64) (model.Attempt, error) {
	var a model.Attempt
	err := scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a
		 LEFT JOIN exam_schedules sc ON sc.id = a.exam_schedule_id
		 WHERE a.student_id = ? AND (a.exam_id = ? OR sc.exam_id = ?)
		 ORDER BY CASE a.status WHEN ? THEN 1 ELSE 0 END, a.id DESC LIMIT 1`,
		studentID, examID, examID, model.AttemptNotStarted), &a)
	return a, err
}

// RebindAttempt moves a not_started attempt under a schedule, dropping any
// direct exam reference. It reports false when the attempt has started.
func (s *Store) RebindAttempt(ctx context.Context, id, scheduleID int64) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE exam_attempts SET exam_schedule_id = ?, exam_id = NULL
		 WHERE id = ? AND status = ?`,
		scheduleID, id, model.AttemptNotStarted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// FirstOrCreateScheduleAttempt returns the student's attempt for a schedule,
// creating it as not_started when missing. created reports an insert.
func (s *Store) FirstOrCreateScheduleAttempt(ctx context.Context, scheduleID, studentID int64) (a model.Attempt, created bool, err error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO exam_attempts (exam_schedule_id, student_id, status) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`, scheduleID, studentID, model.AttemptNotStarted)
	if err != nil {
		return a, false, err
	}
	n, _ := res.RowsAffected()
	err = scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.exam_schedule_id = ? AND a.student_id = ?`,
		scheduleID, studentID), &a)
	return a, n > 0, err
}

// FirstOrCreateDirectAttempt returns the student's schedule-less attempt at an
// exam, creating it as not_started when missing.
func (s *Store) FirstOrCreateDirectAttempt(ctx context.Context, examID, studentID int64) (a model.Attempt, created bool, err error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO exam_attempts (exam_id, student_id, status) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`, examID, studentID, model.AttemptNotStarted)
	if err != nil {
		return a, false, err
	}
	n, _ := res.RowsAffected()
	err = scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.exam_id = ? AND a.student_id = ?`,
		examID, studentID), &a)
	return a, n > 0, err
}

// ListAttemptsForSchedule returns a schedule's attempts, optionally filtered by status.
func (s *Store) ListAttemptsForSchedule(ctx context.Context, scheduleID int64, status model.AttemptStatus) ([]model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM exam_attempts a WHERE a.exam_schedule_id = ?`
	args := []any{scheduleID}
	if status != "" {
		query += ` AND a.status = ?`
		args = append(args, status)
	}
	return s.listAttempts(ctx, query+` ORDER BY a.id`, args...)
}

// ListAttemptsByStatus returns all attempts in a status.
func (s *Store) ListAttemptsByStatus(ctx context.Context, status model.AttemptStatus) ([]model.Attempt, error) {
	return s.listAttempts(ctx, `SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.status = ? ORDER BY a.id`, status)
}

func (s *Store) listAttempts(ctx context.Context, query string, args ...any) ([]model.Attempt, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAttemptStarted moves a not_started attempt to in_progress and records
// the audit metadata. It reports false when the attempt was not not_started.
func (s *Store) MarkAttemptStarted(ctx context.Context, id int64, at time.Time, ip, userAgent, browserInfo string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE exam_attempts SET status = ?, start_time = ?, ip_address = ?, user_agent = ?, browser_info = ?
		 WHERE id = ? AND status = ?`,
		model.AttemptInProgress, at, ip, userAgent, browserInfo, id, model.AttemptNotStarted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkAttemptFinished moves an in_progress attempt to a terminal status. It
// reports false when the attempt was no longer in progress.
func (s *Store) MarkAttemptFinished(ctx context.Context, id int64, status model.AttemptStatus, at time.Time, timeTaken int) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE exam_attempts SET status = ?, end_time = ?, time_taken = ?
		 WHERE id = ? AND status = ?`,
		status, at, timeTaken, id, model.AttemptInProgress)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpdateAttemptScore stores the computed score of an attempt.
func (s *Store) UpdateAttemptScore(ctx context.Context, id int64, total, percentage float64) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE exam_attempts SET total_score = ?, percentage = ? WHERE id = ?`, total, percentage, id)
	return err
}

// IncrementTabSwitches atomically bumps the tab switch counter.
func (s *Store) IncrementTabSwitches(ctx context.Context, id int64) error {
	_, err := s.q.ExecContext(ctx, `UPDATE exam_attempts SET tab_switches = tab_switches + 1 WHERE id = ?`, id)
	return err
}
