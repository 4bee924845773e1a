package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// calculateScore returns the marks an attempt earned and the marks it could
// earn. The possible marks are the exam's allocations plus the default
// marks of answered questions no longer attached to the exam.
func calculateScore(ctx context.Context, st *store.Store, attemptID int64, ex model.Exam) (obtained, total float64, err error) {
	eqs, err := st.ListExamQuestions(ctx, ex.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("list exam questions: %w", err)
	}
	type weight struct {
		marks float64
		qt    model.QuestionType
	}
	weights := make(map[int64]weight, len(eqs))
	for _, eq := range eqs {
		weights[eq.QuestionID] = weight{float64(eq.MarksAllocated), eq.Question.Type}
		total += float64(eq.MarksAllocated)
	}

	answers, err := st.ListAnswers(ctx, attemptID)
	if err != nil {
		return 0, 0, fmt.Errorf("list answers: %w", err)
	}
	for _, ans := range answers {
		w, ok := weights[ans.QuestionID]
		if !ok {
			q, err := st.GetQuestion(ctx, ans.QuestionID)
			if err != nil {
				return 0, 0, notFound(err, "question", ans.QuestionID)
			}
			w = weight{float64(q.Marks), q.Type}
			total += w.marks
		}
		obtained += credit(ans, w.qt, w.marks)
	}
	return obtained, total, nil
}

// credit returns the marks an answer earns. A correct objective answer
// earns the full allocation. Any other answer earns its recorded marks,
// capped at the allocation.
func credit(ans model.Answer, qt model.QuestionType, alloc float64) float64 {
	if qt.Objective() && ans.IsCorrect != nil && *ans.IsCorrect {
		return alloc
	}
	return math.Max(0, math.Min(ans.MarksObtained, alloc))
}

// rescore recomputes and stores an attempt's score, then projects it into
// the results ledger when the attempt is finished.
func (e *Engine) rescore(ctx context.Context, tx *store.Store, attemptID int64, ex model.Exam) (model.Attempt, error) {
	obtained, total, err := calculateScore(ctx, tx, attemptID, ex)
	if err != nil {
		return model.Attempt{}, err
	}
	if err := tx.UpdateAttemptScore(ctx, attemptID, obtained, model.Percentage(obtained, total)); err != nil {
		return model.Attempt{}, fmt.Errorf("update attempt score: %w", err)
	}
	a, err := tx.GetAttempt(ctx, attemptID)
	if err != nil {
		return a, err
	}
	if a.Status.Terminal() {
		if err := projectResult(ctx, tx, a, ex); err != nil {
			return a, err
		}
	}
	return a, nil
}

// projectResult writes the attempt score into the academic results ledger.
// Exams without a subject or term are skipped.
func projectResult(ctx context.Context, st *store.Store, a model.Attempt, ex model.Exam) error {
	if ex.SubjectID == nil || ex.TermID == nil {
		slog.Warn("exam has no subject or term, result not projected", "exam_id", ex.ID, "attempt_id", a.ID)
		return nil
	}
	id := a.ID
	if err := st.UpsertCBTResult(ctx, model.Result{
		StudentID:        a.StudentID,
		SubjectID:        *ex.SubjectID,
		TermID:           *ex.TermID,
		ExamScore:        a.TotalScore,
		CBTExamAttemptID: &id,
	}); err != nil {
		return fmt.Errorf("project result: %w", err)
	}
	return nil
}

// RecalculateAttempt recomputes an attempt's score, re-projecting the
// result for finished attempts.
func (e *Engine) RecalculateAttempt(ctx context.Context, attemptID int64) (model.Attempt, error) {
	var out model.Attempt
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		a, err := loadAttempt(ctx, tx, attemptID, 0)
		if err != nil {
			return err
		}
		ex, _, err := resolveExam(ctx, tx, a)
		if err != nil {
			return err
		}
		out, err = e.rescore(ctx, tx, a.ID, ex)
		return err
	})
	return out, err
}
