package store

import (
	"context"
	"time"

	"github.com/pavelanni/cbt/internal/model"
)

const answerColumns = `sa.id, sa.attempt_id, sa.question_id, sa.answer_text, sa.is_correct, sa.marks_obtained,
	sa.time_spent, sa.is_flagged, sa.position, sa.option_order, sa.updated_at`

func scanAnswer(sc scanner, a *model.Answer) error {
	return sc.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.AnswerText, &a.IsCorrect, &a.MarksObtained,
		&a.TimeSpent, &a.IsFlagged, &a.Position, &a.OptionOrder, &a.UpdatedAt)
}

// EnsureAnswer creates the answer row for (attempt, question) if missing and
// returns it. Position and option order are only set on creation.
func (s *Store) EnsureAnswer(ctx context.Context, attemptID, questionID int64, position int, optionOrder string) (model.Answer, error) {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO student_answers (attempt_id, question_id, position, option_order)
		 VALUES (?, ?, ?, ?) ON CONFLICT(attempt_id, question_id) DO NOTHING`,
		attemptID, questionID, position, optionOrder)
	if err != nil {
		return model.Answer{}, err
	}
	return s.GetAnswerFor(ctx, attemptID, questionID)
}

// GetAnswer returns an answer by ID.
func (s *Store) GetAnswer(ctx context.Context, id int64) (model.Answer, error) {
	var a model.Answer
	err := scanAnswer(s.q.QueryRowContext(ctx,
		`SELECT `+answerColumns+` FROM student_answers sa WHERE sa.id = ?`, id), &a)
	return a, err
}

// GetAnswerFor returns the answer of an attempt to a question.
func (s *Store) GetAnswerFor(ctx context.Context, attemptID, questionID int64) (model.Answer, error) {
	var a model.Answer
	err := scanAnswer(s.q.QueryRowContext(ctx,
		`SELECT `+answerColumns+` FROM student_answers sa WHERE sa.attempt_id = ? AND sa.question_id = ?`,
		attemptID, questionID), &a)
	return a, err
}

// ListAnswers returns an attempt's answers in presentation order.
func (s *Store) ListAnswers(ctx context.Context, attemptID int64) ([]model.Answer, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM student_answers sa WHERE sa.attempt_id = ? ORDER BY sa.position, sa.id`,
		attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := scanAnswer(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAnswerText stores the answer text and time spent. A nil timeSpent
// keeps the stored value.
func (s *Store) UpdateAnswerText(ctx context.Context, id int64, text string, timeSpent *int, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE student_answers SET answer_text = ?, time_spent = COALESCE(?, time_spent), updated_at = ? WHERE id = ?`,
		text, timeSpent, at, id)
	return err
}

// UpdateAnswerGrade stores the grading outcome of an answer.
func (s *Store) UpdateAnswerGrade(ctx context.Context, id int64, isCorrect *bool, marks float64) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE student_answers SET is_correct = ?, marks_obtained = ? WHERE id = ?`, isCorrect, marks, id)
	return err
}

// SetAnswerFlag sets the review flag of an answer.
func (s *Store) SetAnswerFlag(ctx context.Context, id int64, flagged bool) error {
	_, err := s.q.ExecContext(ctx, `UPDATE student_answers SET is_flagged = ? WHERE id = ?`, flagged, id)
	return err
}

// RecordAnswerEvent appends a save event to the audit log.
func (s *Store) RecordAnswerEvent(ctx context.Context, ev model.AnswerEvent) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO answer_events (id, attempt_id, question_id, source, saved_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.AttemptID, ev.QuestionID, ev.Source, ev.SavedAt)
	return err
}

// CountAnswerEvents returns the number of save events of an attempt.
func (s *Store) CountAnswerEvents(ctx context.Context, attemptID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM answer_events WHERE attempt_id = ?`, attemptID).Scan(&n)
	return n, err
}

// ListUngradedSubjective returns answered essay and fill-blank answers that
// have not been graded yet, optionally limited to one exam.
func (s *Store) ListUngradedSubjective(ctx context.Context, examID int64) ([]model.PendingAnswer, error) {
	query := `SELECT ` + answerColumns + `, ` + attemptColumns + `,
			q.id, q.subject_id, q.question_text, q.type, q.difficulty, q.marks, q.time_limit,
			q.options, q.correct_answer, q.explanation
		FROM student_answers sa
		JOIN exam_attempts a ON a.id = sa.attempt_id
		JOIN questions q ON q.id = sa.question_id
		LEFT JOIN exam_schedules sc ON sc.id = a.exam_schedule_id
		WHERE sa.is_correct IS NULL AND sa.answer_text IS NOT NULL AND sa.answer_text != ''
		  AND q.type IN ('essay', 'fill_blank')`
	var args []any
	if examID != 0 {
		query += ` AND (a.exam_id = ? OR sc.exam_id = ?)`
		args = append(args, examID, examID)
	}
	query += ` ORDER BY sa.id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PendingAnswer
	for rows.Next() {
		var p model.PendingAnswer
		ans, at, q := &p.Answer, &p.Attempt, &p.Question
		if err := rows.Scan(
			&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.AnswerText, &ans.IsCorrect, &ans.MarksObtained,
			&ans.TimeSpent, &ans.IsFlagged, &ans.Position, &ans.OptionOrder, &ans.UpdatedAt,
			&at.ID, &at.ExamScheduleID, &at.ExamID, &at.StudentID, &at.StartTime, &at.EndTime, &at.Status,
			&at.TotalScore, &at.Percentage, &at.TimeTaken, &at.TabSwitches, &at.IPAddress, &at.UserAgent, &at.BrowserInfo,
			&q.ID, &q.SubjectID, &q.Text, &q.Type, &q.Difficulty, &q.Marks, &q.TimeLimit,
			&q.Options, &q.CorrectAnswer, &q.Explanation,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
