package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// CreateSchedule binds a published exam with questions to a classroom for
// one sitting. The schedule inherits the exam's term when none is given.
func (e *Engine) CreateSchedule(ctx context.Context, sc model.ExamSchedule) (model.ExamSchedule, error) {
	ex, err := e.Exam(ctx, sc.ExamID)
	if err != nil {
		return model.ExamSchedule{}, err
	}
	if !ex.CanBeScheduled() {
		return model.ExamSchedule{}, ErrExamNotSchedulable
	}
	if _, err := e.store.GetClassroom(ctx, sc.ClassroomID); err != nil {
		return model.ExamSchedule{}, notFound(err, "classroom", sc.ClassroomID)
	}
	if _, _, err := sc.Window(e.cfg.Location); err != nil {
		return model.ExamSchedule{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if sc.TermID == nil {
		sc.TermID = ex.TermID
	}
	id, err := e.store.CreateSchedule(ctx, sc)
	if err != nil {
		return model.ExamSchedule{}, fmt.Errorf("create schedule: %w", err)
	}
	slog.Info("schedule created", "schedule_id", id, "exam_id", sc.ExamID, "classroom_id", sc.ClassroomID,
		"date", sc.ScheduledDate, "start", sc.StartTime, "end", sc.EndTime)
	return e.store.GetSchedule(ctx, id)
}

// Schedule returns a schedule by ID.
func (e *Engine) Schedule(ctx context.Context, id int64) (model.ExamSchedule, error) {
	sc, err := e.store.GetSchedule(ctx, id)
	if err != nil {
		return sc, notFound(err, "schedule", id)
	}
	return sc, nil
}

// StartSchedule moves a due schedule to ongoing and creates the attempts of
// its roster. It is a no-op before the scheduled start.
func (e *Engine) StartSchedule(ctx context.Context, id int64) (model.ExamSchedule, error) {
	sc, err := e.Schedule(ctx, id)
	if err != nil {
		return sc, err
	}
	if !sc.CanStart(e.now(), e.cfg.Location) {
		return sc, nil
	}
	ok, err := e.store.TransitionSchedule(ctx, id, model.ScheduleScheduled, model.ScheduleOngoing)
	if err != nil {
		return sc, fmt.Errorf("start schedule: %w", err)
	}
	if ok {
		slog.Info("schedule started", "schedule_id", id, "exam_id", sc.ExamID)
		if _, err := e.CreateAttemptsForStudents(ctx, id); err != nil {
			return sc, err
		}
	}
	return e.store.GetSchedule(ctx, id)
}

// CompleteSchedule closes an ongoing schedule. Every attempt still in
// progress is auto-submitted with scoring and result projection, in the
// same transaction as the status change.
func (e *Engine) CompleteSchedule(ctx context.Context, id int64) (model.ExamSchedule, error) {
	sc, err := e.Schedule(ctx, id)
	if err != nil {
		return sc, err
	}
	if !sc.IsOngoing() {
		return sc, nil
	}
	var cascaded int
	err = e.store.InTx(ctx, func(tx *store.Store) error {
		ok, err := tx.TransitionSchedule(ctx, id, model.ScheduleOngoing, model.ScheduleCompleted)
		if err != nil || !ok {
			return err
		}
		attempts, err := tx.ListAttemptsForSchedule(ctx, id, model.AttemptInProgress)
		if err != nil {
			return fmt.Errorf("list in-progress attempts: %w", err)
		}
		for _, a := range attempts {
			if _, err := e.finishTx(ctx, tx, a, model.AttemptAutoSubmitted); err != nil {
				return fmt.Errorf("auto-submit attempt %d: %w", a.ID, err)
			}
			cascaded++
		}
		return nil
	})
	if err != nil {
		return sc, fmt.Errorf("complete schedule %d: %w", id, err)
	}
	slog.Info("schedule completed", "schedule_id", id, "auto_submitted", cascaded)
	return e.store.GetSchedule(ctx, id)
}

// CancelSchedule cancels a schedule that has not started.
func (e *Engine) CancelSchedule(ctx context.Context, id int64) (model.ExamSchedule, error) {
	sc, err := e.Schedule(ctx, id)
	if err != nil {
		return sc, err
	}
	if sc.Status != model.ScheduleScheduled {
		return sc, nil
	}
	if _, err := e.store.TransitionSchedule(ctx, id, model.ScheduleScheduled, model.ScheduleCancelled); err != nil {
		return sc, fmt.Errorf("cancel schedule: %w", err)
	}
	slog.Info("schedule cancelled", "schedule_id", id)
	return e.store.GetSchedule(ctx, id)
}

// CreateAttemptsForStudents creates a not_started attempt for every roster
// member of the schedule's classroom that has none for the exam. A
// not_started attempt left under a closed schedule moves here. It is safe to
// call repeatedly and returns the number of attempts created.
func (e *Engine) CreateAttemptsForStudents(ctx context.Context, scheduleID int64) (int, error) {
	sc, err := e.Schedule(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	if sc.IsClosed() {
		return 0, nil
	}
	students, err := e.roster.ListStudents(ctx, sc.ClassroomID)
	if err != nil {
		return 0, fmt.Errorf("list students of classroom %d: %w", sc.ClassroomID, err)
	}
	created := 0
	err = e.store.InTx(ctx, func(tx *store.Store) error {
		for _, st := range students {
			_, ok, err := scheduleAttempt(ctx, tx, sc, st.StudentID)
			if err != nil {
				return fmt.Errorf("create attempt for student %d: %w", st.StudentID, err)
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Info("attempts created", "schedule_id", scheduleID, "roster", len(students), "created", created)
	return created, nil
}

// ListSchedulesForExam returns the schedules of an exam.
func (e *Engine) ListSchedulesForExam(ctx context.Context, examID int64) ([]model.ExamSchedule, error) {
	return e.store.ListSchedulesForExam(ctx, examID)
}
