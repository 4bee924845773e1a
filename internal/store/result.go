package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavelanni/cbt/internal/model"
)

// UpsertCBTResult writes a CBT exam score into the academic results ledger,
// keyed by student, subject and term. An existing CA score is kept and the
// total becomes CA plus exam score.
func (s *Store) UpsertCBTResult(ctx context.Context, r model.Result) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO results (student_id, subject_id, term_id, ca_score, exam_score, total_score,
			cbt_exam_attempt_id, is_cbt_exam, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, 1, ?)
		 ON CONFLICT(student_id, subject_id, term_id) DO UPDATE SET
			exam_score = excluded.exam_score,
			total_score = results.ca_score + excluded.exam_score,
			cbt_exam_attempt_id = excluded.cbt_exam_attempt_id,
			is_cbt_exam = 1,
			updated_at = excluded.updated_at`,
		r.StudentID, r.SubjectID, r.TermID, r.ExamScore, r.ExamScore, r.CBTExamAttemptID, time.Now(),
	)
	if err != nil {
		slog.Error("failed to upsert result", "student_id", r.StudentID, "subject_id", r.SubjectID, "error", err)
		return err
	}
	slog.Info("upserted cbt result", "student_id", r.StudentID, "subject_id", r.SubjectID,
		"term_id", r.TermID, "exam_score", r.ExamScore)
	return nil
}

// SetCAScore records a continuous-assessment score, keeping any exam score.
func (s *Store) SetCAScore(ctx context.Context, studentID, subjectID, termID int64, ca float64) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO results (student_id, subject_id, term_id, ca_score, exam_score, total_score, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(student_id, subject_id, term_id) DO UPDATE SET
			ca_score = excluded.ca_score,
			total_score = excluded.ca_score + results.exam_score,
			updated_at = excluded.updated_at`,
		studentID, subjectID, termID, ca, ca, time.Now())
	return err
}

// GetResult returns the result row for a student, subject and term.
func (s *Store) GetResult(ctx context.Context, studentID, subjectID, termID int64) (*model.Result, error) {
	var r model.Result
	err := s.q.QueryRowContext(ctx,
		`SELECT id, student_id, subject_id, term_id, ca_score, exam_score, total_score,
			cbt_exam_attempt_id, is_cbt_exam, updated_at
		 FROM results WHERE student_id = ? AND subject_id = ? AND term_id = ?`,
		studentID, subjectID, termID,
	).Scan(&r.ID, &r.StudentID, &r.SubjectID, &r.TermID, &r.CAScore, &r.ExamScore, &r.TotalScore,
		&r.CBTExamAttemptID, &r.IsCBTExam, &r.UpdatedAt)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CountResults returns the number of result rows for a student.
func (s *Store) CountResults(ctx context.Context, studentID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE student_id = ?`, studentID).Scan(&n)
	return n, err
}
