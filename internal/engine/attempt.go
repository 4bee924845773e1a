package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mssola/useragent"

	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// resolveExam returns the exam of an attempt in either addressing mode,
// and the schedule for schedule-bound attempts.
func resolveExam(ctx context.Context, st *store.Store, a model.Attempt) (model.Exam, *model.ExamSchedule, error) {
	switch {
	case a.ExamScheduleID != nil:
		sc, err := st.GetSchedule(ctx, *a.ExamScheduleID)
		if err != nil {
			return model.Exam{}, nil, notFound(err, "schedule", *a.ExamScheduleID)
		}
		ex, err := st.GetExam(ctx, sc.ExamID)
		if err != nil {
			return model.Exam{}, nil, notFound(err, "exam", sc.ExamID)
		}
		return ex, &sc, nil
	case a.ExamID != nil:
		ex, err := st.GetExam(ctx, *a.ExamID)
		if err != nil {
			return model.Exam{}, nil, notFound(err, "exam", *a.ExamID)
		}
		return ex, nil, nil
	}
	return model.Exam{}, nil, fmt.Errorf("attempt %d references no exam", a.ID)
}

// loadAttempt fetches an attempt and checks it belongs to studentID.
// A zero studentID skips the ownership check.
func loadAttempt(ctx context.Context, st *store.Store, id, studentID int64) (model.Attempt, error) {
	a, err := st.GetAttempt(ctx, id)
	if err != nil {
		return a, notFound(err, "attempt", id)
	}
	if studentID != 0 && a.StudentID != studentID {
		return a, ErrForbidden
	}
	return a, nil
}

// Attempt returns an attempt by ID.
func (e *Engine) Attempt(ctx context.Context, id int64) (model.Attempt, error) {
	return loadAttempt(ctx, e.store, id, 0)
}

// lookupAttempt finds the student's attempt at an exam and the schedule it
// runs under. A student holds one attempt per exam: a not_started attempt
// left under a closed schedule, or created directly, moves to the student's
// live schedule. When the student has none yet and create is set, one is
// made: bound to the live schedule when the exam is scheduled for their
// classroom, direct otherwise. The attempt is nil when none exists and none
// could be created.
func (e *Engine) lookupAttempt(ctx context.Context, studentID int64, ex model.Exam, create bool) (*model.Attempt, *model.ExamSchedule, error) {
	schedules, err := e.store.FindStudentSchedules(ctx, studentID, ex.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("find schedules: %w", err)
	}
	var live *model.ExamSchedule
	if len(schedules) > 0 && !schedules[0].IsClosed() {
		live = &schedules[0]
	}

	a, err := e.store.FindAttemptForExam(ctx, studentID, ex.ID)
	if err == nil {
		_, sc, err := resolveExam(ctx, e.store, a)
		if err != nil {
			return nil, nil, err
		}
		if live == nil || a.Status != model.AttemptNotStarted || (sc != nil && !sc.IsClosed()) {
			return &a, sc, nil
		}
		return e.bindToSchedule(ctx, *live, studentID)
	}
	if !store.IsNotFound(err) {
		return nil, nil, fmt.Errorf("find attempt: %w", err)
	}

	if len(schedules) > 0 {
		if !create || live == nil {
			return nil, &schedules[0], nil
		}
		return e.bindToSchedule(ctx, *live, studentID)
	}

	all, err := e.store.ListSchedulesForExam(ctx, ex.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list schedules: %w", err)
	}
	if len(all) > 0 {
		return nil, nil, ErrNotEnrolled
	}
	if !ex.IsPublished {
		return nil, nil, fmt.Errorf("exam %d: %w", ex.ID, ErrNotFound)
	}
	if !create {
		return nil, nil, nil
	}
	a, _, err = e.store.FirstOrCreateDirectAttempt(ctx, ex.ID, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("create attempt: %w", err)
	}
	return &a, nil, nil
}

func (e *Engine) bindToSchedule(ctx context.Context, sc model.ExamSchedule, studentID int64) (*model.Attempt, *model.ExamSchedule, error) {
	var a model.Attempt
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		var err error
		a, _, err = scheduleAttempt(ctx, tx, sc, studentID)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create attempt: %w", err)
	}
	return &a, &sc, nil
}

// scheduleAttempt returns the student's attempt at the schedule's exam,
// creating it under sc when the student has none. An existing not_started
// attempt moves to sc when it is direct or its schedule is closed. Any
// other existing attempt is returned where it is. created reports an insert.
func scheduleAttempt(ctx context.Context, tx *store.Store, sc model.ExamSchedule, studentID int64) (model.Attempt, bool, error) {
	a, err := tx.FindAttemptForExam(ctx, studentID, sc.ExamID)
	if store.IsNotFound(err) {
		return tx.FirstOrCreateScheduleAttempt(ctx, sc.ID, studentID)
	}
	if err != nil {
		return a, false, fmt.Errorf("find attempt: %w", err)
	}
	if a.Status != model.AttemptNotStarted || (a.ExamScheduleID != nil && *a.ExamScheduleID == sc.ID) {
		return a, false, nil
	}
	if a.ExamScheduleID != nil {
		cur, err := tx.GetSchedule(ctx, *a.ExamScheduleID)
		if err != nil {
			return a, false, notFound(err, "schedule", *a.ExamScheduleID)
		}
		if !cur.IsClosed() {
			return a, false, nil
		}
	}
	if _, err := tx.RebindAttempt(ctx, a.ID, sc.ID); err != nil {
		return a, false, fmt.Errorf("rebind attempt %d: %w", a.ID, err)
	}
	slog.Info("attempt moved to schedule", "attempt_id", a.ID, "student_id", studentID, "schedule_id", sc.ID)
	a, err = tx.GetAttempt(ctx, a.ID)
	return a, false, err
}

// StartExam creates the student's attempt at an exam if needed and starts
// it. An attempt already in progress is returned as is. When the attempt
// cannot start, the reason is returned with the attempt unchanged.
func (e *Engine) StartExam(ctx context.Context, studentID, examID int64, meta model.RequestMeta) (model.Attempt, Reason, error) {
	ex, err := e.Exam(ctx, examID)
	if err != nil {
		return model.Attempt{}, ReasonNone, err
	}
	a, sc, err := e.lookupAttempt(ctx, studentID, ex, true)
	if err != nil {
		return model.Attempt{}, ReasonNone, err
	}
	if a == nil {
		return model.Attempt{}, availability(nil, ex, sc, e.now(), e.cfg.Location), nil
	}
	return e.StartAttempt(ctx, a.ID, studentID, meta)
}

// StartAttempt moves a not_started attempt to in_progress, recording the
// request metadata and fixing the question order.
func (e *Engine) StartAttempt(ctx context.Context, attemptID, studentID int64, meta model.RequestMeta) (model.Attempt, Reason, error) {
	var (
		out    model.Attempt
		reason Reason
	)
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		a, err := loadAttempt(ctx, tx, attemptID, studentID)
		if err != nil {
			return err
		}
		out = a
		if a.Status == model.AttemptInProgress {
			return nil
		}
		ex, sc, err := resolveExam(ctx, tx, a)
		if err != nil {
			return err
		}
		now := e.now()
		if !canStart(a, ex, sc, now, e.cfg.Location) {
			reason = availability(&a, ex, sc, now, e.cfg.Location)
			return nil
		}
		ok, err := tx.MarkAttemptStarted(ctx, a.ID, now, meta.IP, meta.UserAgent, browserInfo(meta.UserAgent))
		if err != nil {
			return fmt.Errorf("start attempt: %w", err)
		}
		if ok {
			if err := e.ensureAnswerRows(ctx, tx, a.ID, ex); err != nil {
				return fmt.Errorf("create answer rows: %w", err)
			}
			slog.Info("attempt started", "attempt_id", a.ID, "student_id", a.StudentID, "exam_id", ex.ID, "ip", meta.IP)
		}
		out, err = tx.GetAttempt(ctx, a.ID)
		return err
	})
	return out, reason, err
}

// Submit finishes an in-progress attempt, scores it and projects the result.
// An attempt whose time has run out is recorded as auto_submitted.
func (e *Engine) Submit(ctx context.Context, attemptID, studentID int64) (model.Attempt, error) {
	return e.finish(ctx, attemptID, studentID, model.AttemptSubmitted)
}

// AutoSubmit is Submit for time expiry and schedule completion.
func (e *Engine) AutoSubmit(ctx context.Context, attemptID, studentID int64) (model.Attempt, error) {
	return e.finish(ctx, attemptID, studentID, model.AttemptAutoSubmitted)
}

func (e *Engine) finish(ctx context.Context, attemptID, studentID int64, status model.AttemptStatus) (model.Attempt, error) {
	var out model.Attempt
	err := e.store.InTx(ctx, func(tx *store.Store) error {
		a, err := loadAttempt(ctx, tx, attemptID, studentID)
		if err != nil {
			return err
		}
		if status == model.AttemptSubmitted && a.Status == model.AttemptInProgress {
			ex, sc, err := resolveExam(ctx, tx, a)
			if err != nil {
				return err
			}
			if rem := timeRemaining(a, ex, sc, e.now(), e.cfg.Location); rem != nil && *rem == 0 {
				status = model.AttemptAutoSubmitted
			}
		}
		out, err = e.finishTx(ctx, tx, a, status)
		return err
	})
	return out, err
}

// finishTx moves an attempt to a terminal status and scores it. Attempts
// not in progress are returned unchanged.
func (e *Engine) finishTx(ctx context.Context, tx *store.Store, a model.Attempt, status model.AttemptStatus) (model.Attempt, error) {
	if !a.CanSubmit() {
		return a, nil
	}
	now := e.now()
	taken := 0
	if a.StartTime != nil {
		taken = max(0, int(now.Sub(*a.StartTime)/time.Second))
	}
	ok, err := tx.MarkAttemptFinished(ctx, a.ID, status, now, taken)
	if err != nil {
		return a, fmt.Errorf("finish attempt: %w", err)
	}
	if !ok {
		return tx.GetAttempt(ctx, a.ID)
	}
	ex, _, err := resolveExam(ctx, tx, a)
	if err != nil {
		return a, err
	}
	out, err := e.rescore(ctx, tx, a.ID, ex)
	if err != nil {
		return a, err
	}
	slog.Info("attempt finished", "attempt_id", a.ID, "student_id", a.StudentID, "status", status,
		"total_score", out.TotalScore, "percentage", out.Percentage, "time_taken", taken)
	return out, nil
}

// RecordTabSwitch counts a tab switch on an in-progress attempt.
func (e *Engine) RecordTabSwitch(ctx context.Context, attemptID, studentID int64) (model.Attempt, error) {
	a, err := loadAttempt(ctx, e.store, attemptID, studentID)
	if err != nil {
		return a, err
	}
	if a.Status != model.AttemptInProgress {
		return a, nil
	}
	if err := e.store.IncrementTabSwitches(ctx, a.ID); err != nil {
		return a, fmt.Errorf("record tab switch: %w", err)
	}
	return e.store.GetAttempt(ctx, a.ID)
}

// TimeRemaining returns the seconds left in an attempt, or nil when it is
// not in progress.
func (e *Engine) TimeRemaining(ctx context.Context, a model.Attempt) (*int, error) {
	ex, sc, err := resolveExam(ctx, e.store, a)
	if err != nil {
		return nil, err
	}
	return timeRemaining(a, ex, sc, e.now(), e.cfg.Location), nil
}

// ExamView returns the student's view of an exam: the attempt, the time
// left and, once started, the questions in the student's order. Correct
// answers and marks stay hidden until the attempt is finished.
func (e *Engine) ExamView(ctx context.Context, studentID, examID int64) (model.AttemptView, Reason, error) {
	ex, err := e.Exam(ctx, examID)
	if err != nil {
		return model.AttemptView{}, ReasonNone, err
	}
	a, sc, err := e.lookupAttempt(ctx, studentID, ex, false)
	if err != nil {
		return model.AttemptView{}, ReasonNone, err
	}
	now := e.now()
	view := model.AttemptView{Exam: ex, Schedule: sc, Attempt: a}
	reason := availability(a, ex, sc, now, e.cfg.Location)
	if a == nil {
		return view, reason, nil
	}

	view.TimeRemaining = timeRemaining(*a, ex, sc, now, e.cfg.Location)
	if a.Status != model.AttemptNotStarted {
		eqs, err := e.store.ListExamQuestions(ctx, ex.ID)
		if err != nil {
			return view, reason, fmt.Errorf("list exam questions: %w", err)
		}
		answers, err := e.store.ListAnswers(ctx, a.ID)
		if err != nil {
			return view, reason, fmt.Errorf("list answers: %w", err)
		}
		view.Questions = e.attemptQuestions(ex, eqs, answers)
		if !a.Status.Terminal() {
			for i := range answers {
				answers[i].IsCorrect = nil
				answers[i].MarksObtained = 0
			}
		}
		view.Answers = answers
	}
	if a.Status.Terminal() {
		passed := a.IsPassed()
		view.Grade = a.Grade()
		view.Passed = &passed
	}
	return view, reason, nil
}

// ensureAnswerRows creates one answer row per exam question. With
// persisted ordering the shuffled question and option order is stored on
// the rows.
func (e *Engine) ensureAnswerRows(ctx context.Context, tx *store.Store, attemptID int64, ex model.Exam) error {
	eqs, err := tx.ListExamQuestions(ctx, ex.ID)
	if err != nil {
		return err
	}
	if e.cfg.PersistQuestionOrder && ex.RandomizeQuestions {
		e.shuffle(len(eqs), func(i, j int) { eqs[i], eqs[j] = eqs[j], eqs[i] })
	}
	for i, eq := range eqs {
		position, optionOrder := eq.QuestionOrder, ""
		if e.cfg.PersistQuestionOrder {
			position = i + 1
			if ex.RandomizeOptions && eq.Question.Type == model.QuestionMultipleChoice {
				optionOrder = e.shuffledKeys(eq.Question)
			}
		}
		if _, err := tx.EnsureAnswer(ctx, attemptID, eq.QuestionID, position, optionOrder); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) shuffledKeys(q model.Question) string {
	opts := optionsOf(q)
	if len(opts) == 0 {
		return ""
	}
	keys := make([]string, len(opts))
	for i, o := range opts {
		keys[i] = o.Key
	}
	e.shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	data, _ := json.Marshal(keys)
	return string(data)
}

// attemptQuestions orders the exam questions for an attempt. With persisted
// ordering the answer rows fix the order; questions attached after the
// attempt started follow in exam order.
func (e *Engine) attemptQuestions(ex model.Exam, eqs []model.ExamQuestion, answers []model.Answer) []model.QuestionView {
	if !e.cfg.PersistQuestionOrder {
		return e.freshViews(ex, eqs)
	}
	byQuestion := make(map[int64]model.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	ordered := append([]model.ExamQuestion(nil), eqs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ai, iok := byQuestion[ordered[i].QuestionID]
		aj, jok := byQuestion[ordered[j].QuestionID]
		switch {
		case iok && jok:
			return ai.Position < aj.Position
		case iok != jok:
			return iok
		}
		return ordered[i].QuestionOrder < ordered[j].QuestionOrder
	})

	views := make([]model.QuestionView, 0, len(ordered))
	for i, eq := range ordered {
		opts := optionsOf(eq.Question)
		if a, ok := byQuestion[eq.QuestionID]; ok && a.OptionOrder != "" {
			opts = reorderOptions(opts, a.OptionOrder)
		}
		views = append(views, questionView(eq, i+1, opts))
	}
	return views
}

// reorderOptions arranges opts by the stored key order. Options missing from
// the stored order keep their place at the end.
func reorderOptions(opts []model.Option, stored string) []model.Option {
	var keys []string
	if err := json.Unmarshal([]byte(stored), &keys); err != nil {
		return opts
	}
	byKey := make(map[string]model.Option, len(opts))
	for _, o := range opts {
		byKey[o.Key] = o
	}
	out := make([]model.Option, 0, len(opts))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if o, ok := byKey[k]; ok && !seen[k] {
			out = append(out, o)
			seen[k] = true
		}
	}
	for _, o := range opts {
		if !seen[o.Key] {
			out = append(out, o)
		}
	}
	return out
}

// browserInfo parses a user agent into the JSON stored on the attempt.
func browserInfo(ua string) string {
	if ua == "" {
		return ""
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	data, err := json.Marshal(model.BrowserInfo{
		Platform:       parsed.Platform(),
		OS:             parsed.OS(),
		Browser:        name,
		BrowserVersion: version,
		Mobile:         parsed.Mobile(),
	})
	if err != nil {
		return ""
	}
	return string(data)
}
