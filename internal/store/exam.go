package store

import (
	"context"
	"time"

	"github.com/pavelanni/cbt/internal/model"
)

const examSelect = `SELECT e.id, e.title, e.subject_id, e.term_id, e.total_marks, e.duration_minutes,
	e.randomize_questions, e.randomize_options, e.is_published, e.status, e.created_at,
	(SELECT COUNT(*) FROM exam_questions eq WHERE eq.exam_id = e.id)
	FROM exams e`

func scanExam(sc scanner, e *model.Exam) error {
	return sc.Scan(&e.ID, &e.Title, &e.SubjectID, &e.TermID, &e.TotalMarks, &e.DurationMinutes,
		&e.RandomizeQuestions, &e.RandomizeOptions, &e.IsPublished, &e.Status, &e.CreatedAt, &e.QuestionCount)
}

// CreateExam inserts an exam. Total marks start at zero and follow the attached questions.
func (s *Store) CreateExam(ctx context.Context, e model.Exam) (int64, error) {
	if e.Status == "" {
		e.Status = model.ExamDraft
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO exams (title, subject_id, term_id, total_marks, duration_minutes,
			randomize_questions, randomize_options, is_published, status, created_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.SubjectID, e.TermID, e.DurationMinutes,
		e.RandomizeQuestions, e.RandomizeOptions, e.IsPublished, e.Status, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(ctx context.Context, id int64) (model.Exam, error) {
	var e model.Exam
	err := scanExam(s.q.QueryRowContext(ctx, examSelect+` WHERE e.id = ?`, id), &e)
	return e, err
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.q.QueryContext(ctx, examSelect+` ORDER BY e.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := scanExam(rows, &e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// SetExamPublished publishes or unpublishes an exam.
func (s *Store) SetExamPublished(ctx context.Context, id int64, published bool) error {
	status := model.ExamDraft
	if published {
		status = model.ExamActive
	}
	_, err := s.q.ExecContext(ctx, `UPDATE exams SET is_published = ?, status = ? WHERE id = ?`, published, status, id)
	return err
}

// AttachQuestion attaches a question to an exam, or updates its weight and
// order when already attached.
func (s *Store) AttachQuestion(ctx context.Context, examID, questionID int64, order, marks int) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO exam_questions (exam_id, question_id, question_order, marks_allocated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(exam_id, question_id) DO UPDATE SET question_order = excluded.question_order,
			marks_allocated = excluded.marks_allocated`,
		examID, questionID, order, marks,
	)
	return err
}

// DetachQuestion removes a question from an exam. It reports whether a row was removed.
func (s *Store) DetachQuestion(ctx context.Context, examID, questionID int64) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM exam_questions WHERE exam_id = ? AND question_id = ?`, examID, questionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecomputeTotalMarks re-sums the allocations of an exam into its cached total.
func (s *Store) RecomputeTotalMarks(ctx context.Context, examID int64) (int, error) {
	_, err := s.q.ExecContext(ctx,
		`UPDATE exams SET total_marks = (
			SELECT COALESCE(SUM(marks_allocated), 0) FROM exam_questions WHERE exam_id = ?
		 ) WHERE id = ?`, examID, examID)
	if err != nil {
		return 0, err
	}
	var total int
	err = s.q.QueryRowContext(ctx, `SELECT total_marks FROM exams WHERE id = ?`, examID).Scan(&total)
	return total, err
}

// ResequenceQuestions renumbers an exam's questions to a contiguous 1..N run
// keeping their relative order.
func (s *Store) ResequenceQuestions(ctx context.Context, examID int64) error {
	eqs, err := s.ListExamQuestions(ctx, examID)
	if err != nil {
		return err
	}
	for i, eq := range eqs {
		if eq.QuestionOrder == i+1 {
			continue
		}
		if _, err := s.q.ExecContext(ctx,
			`UPDATE exam_questions SET question_order = ? WHERE exam_id = ? AND question_id = ?`,
			i+1, examID, eq.QuestionID,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListExamQuestions returns the questions of an exam in exam order.
func (s *Store) ListExamQuestions(ctx context.Context, examID int64) ([]model.ExamQuestion, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT eq.exam_id, eq.question_id, eq.question_order, eq.marks_allocated,
			q.id, q.subject_id, q.question_text, q.type, q.difficulty, q.marks, q.time_limit,
			q.options, q.correct_answer, q.explanation
		 FROM exam_questions eq JOIN questions q ON q.id = eq.question_id
		 WHERE eq.exam_id = ?
		 ORDER BY eq.question_order, eq.question_id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var eqs []model.ExamQuestion
	for rows.Next() {
		var eq model.ExamQuestion
		q := &eq.Question
		if err := rows.Scan(&eq.ExamID, &eq.QuestionID, &eq.QuestionOrder, &eq.MarksAllocated,
			&q.ID, &q.SubjectID, &q.Text, &q.Type, &q.Difficulty, &q.Marks, &q.TimeLimit,
			&q.Options, &q.CorrectAnswer, &q.Explanation); err != nil {
			return nil, err
		}
		eqs = append(eqs, eq)
	}
	return eqs, rows.Err()
}

// GetAllocation returns the marks allocated to a question in an exam.
// ok is false when the question is not attached.
func (s *Store) GetAllocation(ctx context.Context, examID, questionID int64) (marks int, ok bool, err error) {
	err = s.q.QueryRowContext(ctx,
		`SELECT marks_allocated FROM exam_questions WHERE exam_id = ? AND question_id = ?`,
		examID, questionID).Scan(&marks)
	if IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return marks, true, nil
}

// ExamStats aggregates the attempts of an exam, in both addressing modes.
func (s *Store) ExamStats(ctx context.Context, exam model.Exam) (model.ExamStats, error) {
	stats := model.ExamStats{ExamID: exam.ID}
	var avgScore, avgPct float64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN a.status IN ('submitted', 'auto_submitted') THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN a.status IN ('submitted', 'auto_submitted') THEN a.total_score END), 0),
			COALESCE(AVG(CASE WHEN a.status IN ('submitted', 'auto_submitted') THEN a.percentage END), 0),
			COALESCE(SUM(CASE WHEN a.status IN ('submitted', 'auto_submitted') AND a.total_score >= ? THEN 1 ELSE 0 END), 0)
		 FROM exam_attempts a LEFT JOIN exam_schedules sc ON sc.id = a.exam_schedule_id
		 WHERE a.exam_id = ? OR sc.exam_id = ?`,
		exam.PassMark(), exam.ID, exam.ID,
	).Scan(&stats.Attempts, &stats.Completed, &avgScore, &avgPct, &stats.Passed)
	if err != nil {
		return stats, err
	}
	stats.AverageScore = avgScore
	stats.AveragePercentage = avgPct
	stats.PassRate = model.Percentage(float64(stats.Passed), float64(stats.Completed))
	return stats, nil
}
