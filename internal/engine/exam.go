package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// CreateQuestion validates and stores a bank question.
func (e *Engine) CreateQuestion(ctx context.Context, q model.Question) (model.Question, error) {
	if q.Difficulty == "" {
		q.Difficulty = model.DifficultyMedium
	}
	if err := q.Validate(); err != nil {
		return model.Question{}, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	if q.Type.Objective() {
		q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
	}
	id, err := e.store.InsertQuestion(ctx, q)
	if err != nil {
		return model.Question{}, fmt.Errorf("insert question: %w", err)
	}
	return e.store.GetQuestion(ctx, id)
}

// CreateExam stores a new exam. It starts unpublished unless asked otherwise
// and with zero total marks.
func (e *Engine) CreateExam(ctx context.Context, ex model.Exam) (model.Exam, error) {
	if strings.TrimSpace(ex.Title) == "" {
		return model.Exam{}, errors.New("exam title is required")
	}
	if ex.DurationMinutes <= 0 {
		return model.Exam{}, errors.New("exam duration must be positive")
	}
	ex.Status = model.ExamDraft
	if ex.IsPublished {
		ex.Status = model.ExamActive
	}
	id, err := e.store.CreateExam(ctx, ex)
	if err != nil {
		return model.Exam{}, fmt.Errorf("create exam: %w", err)
	}
	return e.store.GetExam(ctx, id)
}

// Exam returns an exam by ID.
func (e *Engine) Exam(ctx context.Context, id int64) (model.Exam, error) {
	ex, err := e.store.GetExam(ctx, id)
	if err != nil {
		return ex, notFound(err, "exam", id)
	}
	return ex, nil
}

// AddQuestion attaches a question to an exam with a per-exam weight, or
// reweights it when already attached. A non-positive marks value uses the
// question's own marks. A non-positive order appends a new question and
// keeps the place of an attached one. The cached total is re-summed.
func (e *Engine) AddQuestion(ctx context.Context, examID, questionID int64, marks, order int) (model.Exam, error) {
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		if _, err := tx.GetExam(ctx, examID); err != nil {
			return notFound(err, "exam", examID)
		}
		q, err := tx.GetQuestion(ctx, questionID)
		if err != nil {
			return notFound(err, "question", questionID)
		}
		if marks <= 0 {
			marks = q.Marks
		}
		if order <= 0 {
			eqs, err := tx.ListExamQuestions(ctx, examID)
			if err != nil {
				return err
			}
			order = len(eqs) + 1
			for _, eq := range eqs {
				if eq.QuestionID == questionID {
					order = eq.QuestionOrder
				}
			}
		}
		if err := tx.AttachQuestion(ctx, examID, questionID, order, marks); err != nil {
			return fmt.Errorf("attach question: %w", err)
		}
		if err := tx.ResequenceQuestions(ctx, examID); err != nil {
			return fmt.Errorf("resequence questions: %w", err)
		}
		total, err := tx.RecomputeTotalMarks(ctx, examID)
		if err != nil {
			return fmt.Errorf("recompute total marks: %w", err)
		}
		slog.Debug("question attached", "exam_id", examID, "question_id", questionID,
			"marks", marks, "order", order, "total_marks", total)
		return nil
	})
	if err != nil {
		return model.Exam{}, err
	}
	return e.store.GetExam(ctx, examID)
}

// RemoveQuestion detaches a question, re-sums the total and closes the gap
// in question order.
func (e *Engine) RemoveQuestion(ctx context.Context, examID, questionID int64) (model.Exam, error) {
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		if _, err := tx.GetExam(ctx, examID); err != nil {
			return notFound(err, "exam", examID)
		}
		removed, err := tx.DetachQuestion(ctx, examID, questionID)
		if err != nil {
			return fmt.Errorf("detach question: %w", err)
		}
		if !removed {
			return nil
		}
		if _, err := tx.RecomputeTotalMarks(ctx, examID); err != nil {
			return fmt.Errorf("recompute total marks: %w", err)
		}
		return tx.ResequenceQuestions(ctx, examID)
	})
	if err != nil {
		return model.Exam{}, err
	}
	return e.store.GetExam(ctx, examID)
}

// PublishExam publishes or withdraws an exam.
func (e *Engine) PublishExam(ctx context.Context, examID int64, publish bool) (model.Exam, error) {
	if _, err := e.Exam(ctx, examID); err != nil {
		return model.Exam{}, err
	}
	if err := e.store.SetExamPublished(ctx, examID, publish); err != nil {
		return model.Exam{}, fmt.Errorf("publish exam: %w", err)
	}
	return e.store.GetExam(ctx, examID)
}

// QuestionsForStudent returns the exam's questions as a student would see
// them, shuffled afresh on every call when the exam randomizes.
func (e *Engine) QuestionsForStudent(ctx context.Context, examID int64) ([]model.QuestionView, error) {
	ex, err := e.Exam(ctx, examID)
	if err != nil {
		return nil, err
	}
	eqs, err := e.store.ListExamQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam questions: %w", err)
	}
	return e.freshViews(ex, eqs), nil
}

// ExamStats summarizes the attempts of an exam.
func (e *Engine) ExamStats(ctx context.Context, examID int64) (model.ExamStats, error) {
	ex, err := e.Exam(ctx, examID)
	if err != nil {
		return model.ExamStats{}, err
	}
	return e.store.ExamStats(ctx, ex)
}

func (e *Engine) freshViews(ex model.Exam, eqs []model.ExamQuestion) []model.QuestionView {
	if ex.RandomizeQuestions {
		eqs = append([]model.ExamQuestion(nil), eqs...)
		e.shuffle(len(eqs), func(i, j int) { eqs[i], eqs[j] = eqs[j], eqs[i] })
	}
	views := make([]model.QuestionView, 0, len(eqs))
	for i, eq := range eqs {
		opts := optionsOf(eq.Question)
		if ex.RandomizeOptions && eq.Question.Type == model.QuestionMultipleChoice {
			e.shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		}
		views = append(views, questionView(eq, i+1, opts))
	}
	return views
}

var trueFalseOptions = []model.Option{{Key: "True", Text: "True"}, {Key: "False", Text: "False"}}

// optionsOf returns the ordered options of a question, logging malformed data.
// True/false questions without stored options get the two fixed choices.
func optionsOf(q model.Question) []model.Option {
	opts := q.FormattedOptions()
	if len(opts) > 0 {
		return opts
	}
	switch q.Type {
	case model.QuestionTrueFalse:
		return append([]model.Option(nil), trueFalseOptions...)
	case model.QuestionMultipleChoice:
		slog.Warn("choice question has no usable options", "question_id", q.ID)
	}
	return nil
}

func questionView(eq model.ExamQuestion, order int, opts []model.Option) model.QuestionView {
	return model.QuestionView{
		ID:             eq.QuestionID,
		Order:          order,
		Text:           eq.Question.Text,
		Type:           eq.Question.Type,
		MarksAllocated: eq.MarksAllocated,
		TimeLimit:      eq.Question.TimeLimit,
		Options:        opts,
	}
}
