package store

import (
	"context"

	"github.com/pavelanni/cbt/internal/model"
)

const questionColumns = `id, subject_id, question_text, type, difficulty, marks, time_limit, options, correct_answer, explanation`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner, q *model.Question) error {
	return sc.Scan(&q.ID, &q.SubjectID, &q.Text, &q.Type, &q.Difficulty, &q.Marks, &q.TimeLimit,
		&q.Options, &q.CorrectAnswer, &q.Explanation)
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO questions (subject_id, question_text, type, difficulty, marks, time_limit, options, correct_answer, explanation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.SubjectID, q.Text, q.Type, q.Difficulty, q.Marks, q.TimeLimit, q.Options, q.CorrectAnswer, q.Explanation,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	var q model.Question
	err := scanQuestion(s.q.QueryRowContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id), &q)
	return q, err
}

// ListQuestions returns questions, optionally filtered by subject and type.
// Zero values mean no filtering on that field.
func (s *Store) ListQuestions(ctx context.Context, subjectID int64, qType model.QuestionType) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if subjectID != 0 {
		query += ` AND subject_id = ?`
		args = append(args, subjectID)
	}
	if qType != "" {
		query += ` AND type = ?`
		args = append(args, qType)
	}
	query += ` ORDER BY id`
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of questions in the bank.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
