package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// Answer save sources recorded in the audit log.
const (
	SourceAutosave = "autosave"
	SourceManual   = "manual"
)

// SaveAnswer stores a student's answer to one question of an in-progress
// attempt. Objective answers are graded on save. A nil timeSpent keeps the
// stored value. Saves on attempts that are not in progress, or whose time
// is up, are refused with a reason and change nothing.
func (e *Engine) SaveAnswer(ctx context.Context, attemptID, studentID, questionID int64, text string, timeSpent *int, source string) (model.Answer, Reason, error) {
	if source != SourceAutosave {
		source = SourceManual
	}
	var (
		out    model.Answer
		reason Reason
	)
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		a, ex, alloc, err := e.openAnswerTarget(ctx, tx, attemptID, studentID, questionID, &reason)
		if err != nil || reason != ReasonNone {
			return err
		}
		q, err := tx.GetQuestion(ctx, questionID)
		if err != nil {
			return notFound(err, "question", questionID)
		}
		prev, err := ensureAnswer(ctx, tx, a.ID, questionID)
		if err != nil {
			return err
		}

		now := e.now()
		if err := tx.UpdateAnswerText(ctx, prev.ID, text, timeSpent, now); err != nil {
			return fmt.Errorf("update answer: %w", err)
		}
		if q.Type.Objective() {
			if err := autoGrade(ctx, tx, prev.ID, q, text, alloc); err != nil {
				return err
			}
		}
		if err := tx.RecordAnswerEvent(ctx, model.AnswerEvent{
			ID:         uuid.NewString(),
			AttemptID:  a.ID,
			QuestionID: questionID,
			Source:     source,
			SavedAt:    now,
		}); err != nil {
			return fmt.Errorf("record answer event: %w", err)
		}
		if prev.UpdatedAt != nil && e.cfg.RaceWindow > 0 && now.Sub(*prev.UpdatedAt) < e.cfg.RaceWindow {
			slog.Warn("near-simultaneous answer saves", "attempt_id", a.ID, "question_id", questionID,
				"exam_id", ex.ID, "previous", *prev.UpdatedAt, "current", now, "source", source)
		}
		out, err = tx.GetAnswer(ctx, prev.ID)
		return err
	})
	return out, reason, err
}

// FlagAnswer sets the review flag on a question of an in-progress attempt.
func (e *Engine) FlagAnswer(ctx context.Context, attemptID, studentID, questionID int64, flagged bool) (model.Answer, Reason, error) {
	var (
		out    model.Answer
		reason Reason
	)
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		a, _, _, err := e.openAnswerTarget(ctx, tx, attemptID, studentID, questionID, &reason)
		if err != nil || reason != ReasonNone {
			return err
		}
		ans, err := ensureAnswer(ctx, tx, a.ID, questionID)
		if err != nil {
			return err
		}
		if err := tx.SetAnswerFlag(ctx, ans.ID, flagged); err != nil {
			return fmt.Errorf("flag answer: %w", err)
		}
		out, err = tx.GetAnswer(ctx, ans.ID)
		return err
	})
	return out, reason, err
}

// openAnswerTarget loads an attempt that accepts answers for questionID and
// returns the question's allocation for the attempt's exam. When the attempt
// does not accept answers, *reason is set and the other results are zero.
func (e *Engine) openAnswerTarget(ctx context.Context, tx *store.Store, attemptID, studentID, questionID int64, reason *Reason) (model.Attempt, model.Exam, float64, error) {
	a, err := loadAttempt(ctx, tx, attemptID, studentID)
	if err != nil {
		return a, model.Exam{}, 0, err
	}
	ex, sc, err := resolveExam(ctx, tx, a)
	if err != nil {
		return a, ex, 0, err
	}
	now := e.now()
	if a.Status != model.AttemptInProgress {
		*reason = availability(&a, ex, sc, now, e.cfg.Location)
		return a, ex, 0, nil
	}
	if rem := timeRemaining(a, ex, sc, now, e.cfg.Location); rem != nil && *rem == 0 {
		*reason = ReasonExpired
		return a, ex, 0, nil
	}
	marks, ok, err := tx.GetAllocation(ctx, ex.ID, questionID)
	if err != nil {
		return a, ex, 0, fmt.Errorf("get allocation: %w", err)
	}
	if !ok {
		if _, err := tx.GetAnswerFor(ctx, a.ID, questionID); err != nil {
			return a, ex, 0, fmt.Errorf("question %d in exam %d: %w", questionID, ex.ID, ErrNotFound)
		}
		q, err := tx.GetQuestion(ctx, questionID)
		if err != nil {
			return a, ex, 0, notFound(err, "question", questionID)
		}
		marks = q.Marks
	}
	return a, ex, float64(marks), nil
}

// ensureAnswer returns the answer row of (attempt, question), appending one
// after the existing rows when missing.
func ensureAnswer(ctx context.Context, tx *store.Store, attemptID, questionID int64) (model.Answer, error) {
	ans, err := tx.GetAnswerFor(ctx, attemptID, questionID)
	if err == nil {
		return ans, nil
	}
	if !store.IsNotFound(err) {
		return ans, fmt.Errorf("get answer: %w", err)
	}
	existing, err := tx.ListAnswers(ctx, attemptID)
	if err != nil {
		return ans, fmt.Errorf("list answers: %w", err)
	}
	ans, err = tx.EnsureAnswer(ctx, attemptID, questionID, len(existing)+1, "")
	if err != nil {
		return ans, fmt.Errorf("create answer: %w", err)
	}
	return ans, nil
}

// autoGrade grades an objective answer against the question key. A cleared
// answer drops any earlier grade.
func autoGrade(ctx context.Context, tx *store.Store, answerID int64, q model.Question, text string, maxMarks float64) error {
	var (
		correct *bool
		marks   float64
	)
	if text != "" {
		ok := q.CheckAnswer(text)
		correct = &ok
		if ok {
			marks = maxMarks
		}
	}
	if err := tx.UpdateAnswerGrade(ctx, answerID, correct, marks); err != nil {
		return fmt.Errorf("grade answer: %w", err)
	}
	return nil
}

// ManualGrade records a teacher's marks for an answer, clamped to the
// question's allocation in the attempt's exam. When isCorrect is nil it is
// inferred from marks > 0. An objective answer given less than its
// allocation is recorded as not correct. Finished attempts are rescored.
func (e *Engine) ManualGrade(ctx context.Context, answerID int64, marks float64, isCorrect *bool) (model.Answer, error) {
	var out model.Answer
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		ans, err := tx.GetAnswer(ctx, answerID)
		if err != nil {
			return notFound(err, "answer", answerID)
		}
		a, err := tx.GetAttempt(ctx, ans.AttemptID)
		if err != nil {
			return notFound(err, "attempt", ans.AttemptID)
		}
		ex, _, err := resolveExam(ctx, tx, a)
		if err != nil {
			return err
		}
		maxMarks, err := maxMarksFor(ctx, tx, ex.ID, ans.QuestionID)
		if err != nil {
			return err
		}
		if math.IsNaN(marks) {
			marks = 0
		}
		q, err := tx.GetQuestion(ctx, ans.QuestionID)
		if err != nil {
			return notFound(err, "question", ans.QuestionID)
		}
		marks = math.Max(0, math.Min(marks, maxMarks))
		correct := marks > 0
		if isCorrect != nil {
			correct = *isCorrect
		}
		// Objective answers earn the full allocation when correct.
		if q.Type.Objective() && marks < maxMarks {
			correct = false
		}
		if err := tx.UpdateAnswerGrade(ctx, ans.ID, &correct, marks); err != nil {
			return fmt.Errorf("grade answer: %w", err)
		}
		slog.Info("answer graded", "answer_id", ans.ID, "attempt_id", a.ID, "marks", marks, "max_marks", maxMarks)
		if a.Status.Terminal() {
			if _, err := e.rescore(ctx, tx, a.ID, ex); err != nil {
				return err
			}
		}
		out, err = tx.GetAnswer(ctx, ans.ID)
		return err
	})
	return out, err
}

// Answer returns an answer with its question and maximum marks.
func (e *Engine) Answer(ctx context.Context, answerID int64) (model.PendingAnswer, error) {
	var p model.PendingAnswer
	ans, err := e.store.GetAnswer(ctx, answerID)
	if err != nil {
		return p, notFound(err, "answer", answerID)
	}
	a, err := e.store.GetAttempt(ctx, ans.AttemptID)
	if err != nil {
		return p, notFound(err, "attempt", ans.AttemptID)
	}
	q, err := e.store.GetQuestion(ctx, ans.QuestionID)
	if err != nil {
		return p, notFound(err, "question", ans.QuestionID)
	}
	ex, _, err := resolveExam(ctx, e.store, a)
	if err != nil {
		return p, err
	}
	maxMarks, err := maxMarksFor(ctx, e.store, ex.ID, ans.QuestionID)
	if err != nil {
		return p, err
	}
	return model.PendingAnswer{Answer: ans, Question: q, Attempt: a, MaxMarks: maxMarks}, nil
}

// MaxMarksForThisExam returns the marks an answer can earn in its attempt's exam.
func (e *Engine) MaxMarksForThisExam(ctx context.Context, answerID int64) (float64, error) {
	p, err := e.Answer(ctx, answerID)
	if err != nil {
		return 0, err
	}
	return p.MaxMarks, nil
}

// PendingManualGrading lists answered essay and fill-blank answers awaiting
// a grade. A zero examID lists all exams.
func (e *Engine) PendingManualGrading(ctx context.Context, examID int64) ([]model.PendingAnswer, error) {
	pending, err := e.store.ListUngradedSubjective(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list ungraded answers: %w", err)
	}
	for i := range pending {
		ex, _, err := resolveExam(ctx, e.store, pending[i].Attempt)
		if err != nil {
			return nil, err
		}
		pending[i].MaxMarks, err = maxMarksFor(ctx, e.store, ex.ID, pending[i].Answer.QuestionID)
		if err != nil {
			return nil, err
		}
	}
	return pending, nil
}

// maxMarksFor returns a question's allocation in an exam, falling back to
// the question's own marks when it is not attached.
func maxMarksFor(ctx context.Context, st *store.Store, examID, questionID int64) (float64, error) {
	marks, ok, err := st.GetAllocation(ctx, examID, questionID)
	if err != nil {
		return 0, fmt.Errorf("get allocation: %w", err)
	}
	if ok {
		return float64(marks), nil
	}
	q, err := st.GetQuestion(ctx, questionID)
	if err != nil {
		return 0, notFound(err, "question", questionID)
	}
	return float64(q.Marks), nil
}
