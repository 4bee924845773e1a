package store

import (
	"context"
	"testing"
	"time"

	"github.com/pavelanni/cbt/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestQuestion(t *testing.T, s *Store, text string, qt model.QuestionType, marks int) int64 {
	t.Helper()
	q := model.Question{
		SubjectID:  1,
		Text:       text,
		Type:       qt,
		Difficulty: model.DifficultyMedium,
		Marks:      marks,
	}
	if qt == model.QuestionMultipleChoice {
		q.Options = `{"A":"one","B":"two"}`
		q.CorrectAnswer = "A"
	}
	id, err := s.InsertQuestion(context.Background(), q)
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return id
}

func insertTestExam(t *testing.T, s *Store, published bool) model.Exam {
	t.Helper()
	ctx := context.Background()
	subject, term := int64(7), int64(3)
	id, err := s.CreateExam(ctx, model.Exam{
		Title:           "Midterm",
		SubjectID:       &subject,
		TermID:          &term,
		DurationMinutes: 30,
		IsPublished:     published,
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	e, err := s.GetExam(ctx, id)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	return e
}

func insertTestStudent(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		Username:     username,
		DisplayName:  "Student " + username,
		PasswordHash: "x",
		Role:         model.UserRoleStudent,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return id
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.QuestionCount(ctx)
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	id := insertTestQuestion(t, s, "Pick one", model.QuestionMultipleChoice, 2)
	q, err := s.GetQuestion(ctx, id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Text != "Pick one" || q.Type != model.QuestionMultipleChoice || q.Marks != 2 {
		t.Errorf("unexpected question %+v", q)
	}
	if opts := q.FormattedOptions(); len(opts) != 2 || opts[0].Key != "A" {
		t.Errorf("expected options A,B, got %v", opts)
	}

	_, err = s.GetQuestion(ctx, 9999)
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	insertTestQuestion(t, s, "Explain", model.QuestionEssay, 5)
	tests := []struct {
		name  string
		qt    model.QuestionType
		wantN int
	}{
		{"all", "", 2},
		{"essay", model.QuestionEssay, 1},
		{"true false", model.QuestionTrueFalse, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := s.ListQuestions(ctx, 0, tt.qt)
			if err != nil {
				t.Fatalf("ListQuestions: %v", err)
			}
			if len(qs) != tt.wantN {
				t.Errorf("expected %d questions, got %d", tt.wantN, len(qs))
			}
		})
	}
}

func TestExamQuestionsAndTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, false)

	q1 := insertTestQuestion(t, s, "Q1", model.QuestionTrueFalse, 1)
	q2 := insertTestQuestion(t, s, "Q2", model.QuestionEssay, 5)
	q3 := insertTestQuestion(t, s, "Q3", model.QuestionMultipleChoice, 2)

	for i, tc := range []struct {
		id    int64
		marks int
	}{{q1, 2}, {q2, 10}, {q3, 3}} {
		if err := s.AttachQuestion(ctx, exam.ID, tc.id, i+1, tc.marks); err != nil {
			t.Fatalf("AttachQuestion: %v", err)
		}
	}
	total, err := s.RecomputeTotalMarks(ctx, exam.ID)
	if err != nil {
		t.Fatalf("RecomputeTotalMarks: %v", err)
	}
	if total != 15 {
		t.Errorf("expected total 15, got %d", total)
	}

	// Re-attaching updates the weight in place.
	if err := s.AttachQuestion(ctx, exam.ID, q1, 1, 4); err != nil {
		t.Fatalf("AttachQuestion update: %v", err)
	}
	total, _ = s.RecomputeTotalMarks(ctx, exam.ID)
	if total != 17 {
		t.Errorf("expected total 17 after update, got %d", total)
	}

	removed, err := s.DetachQuestion(ctx, exam.ID, q2)
	if err != nil || !removed {
		t.Fatalf("DetachQuestion: removed=%v err=%v", removed, err)
	}
	removed, _ = s.DetachQuestion(ctx, exam.ID, q2)
	if removed {
		t.Error("expected second detach to be a no-op")
	}
	if err := s.ResequenceQuestions(ctx, exam.ID); err != nil {
		t.Fatalf("ResequenceQuestions: %v", err)
	}
	total, _ = s.RecomputeTotalMarks(ctx, exam.ID)
	if total != 7 {
		t.Errorf("expected total 7 after detach, got %d", total)
	}

	eqs, err := s.ListExamQuestions(ctx, exam.ID)
	if err != nil {
		t.Fatalf("ListExamQuestions: %v", err)
	}
	if len(eqs) != 2 {
		t.Fatalf("expected 2 exam questions, got %d", len(eqs))
	}
	for i, eq := range eqs {
		if eq.QuestionOrder != i+1 {
			t.Errorf("question %d: expected order %d, got %d", eq.QuestionID, i+1, eq.QuestionOrder)
		}
	}
	if eqs[1].QuestionID != q3 {
		t.Errorf("expected q3 second, got %d", eqs[1].QuestionID)
	}

	marks, ok, err := s.GetAllocation(ctx, exam.ID, q3)
	if err != nil || !ok || marks != 3 {
		t.Errorf("GetAllocation q3: marks=%d ok=%v err=%v", marks, ok, err)
	}
	_, ok, err = s.GetAllocation(ctx, exam.ID, q2)
	if err != nil || ok {
		t.Errorf("GetAllocation detached: ok=%v err=%v", ok, err)
	}

	got, _ := s.GetExam(ctx, exam.ID)
	if got.QuestionCount != 2 || got.TotalMarks != 7 {
		t.Errorf("expected 2 questions / 7 marks, got %d / %d", got.QuestionCount, got.TotalMarks)
	}
}

func TestFirstOrCreateAttemptIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, true)
	student := insertTestStudent(t, s, "alice")
	room, err := s.CreateClassroom(ctx, "JSS1")
	if err != nil {
		t.Fatalf("CreateClassroom: %v", err)
	}
	schedID, err := s.CreateSchedule(ctx, model.ExamSchedule{
		ExamID: exam.ID, ClassroomID: room, ScheduledDate: "2026-03-01", StartTime: "09:00", EndTime: "10:00",
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	a1, created, err := s.FirstOrCreateScheduleAttempt(ctx, schedID, student)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	a2, created, err := s.FirstOrCreateScheduleAttempt(ctx, schedID, student)
	if err != nil || created {
		t.Fatalf("second create: created=%v err=%v", created, err)
	}
	if a1.ID != a2.ID {
		t.Errorf("expected same attempt, got %d and %d", a1.ID, a2.ID)
	}
	if a1.Status != model.AttemptNotStarted {
		t.Errorf("expected not_started, got %s", a1.Status)
	}

	d1, created, err := s.FirstOrCreateDirectAttempt(ctx, exam.ID, student)
	if err != nil || !created {
		t.Fatalf("direct create: created=%v err=%v", created, err)
	}
	d2, _, _ := s.FirstOrCreateDirectAttempt(ctx, exam.ID, student)
	if d1.ID != d2.ID || d1.ID == a1.ID {
		t.Errorf("unexpected direct attempt IDs %d %d (schedule %d)", d1.ID, d2.ID, a1.ID)
	}

	found, err := s.FindAttemptForExam(ctx, student, exam.ID)
	if err != nil {
		t.Fatalf("FindAttemptForExam: %v", err)
	}
	if found.ID != d1.ID {
		t.Errorf("expected newest not_started attempt %d, got %d", d1.ID, found.ID)
	}

	// A begun attempt wins over any not_started one.
	if ok, err := s.MarkAttemptStarted(ctx, a1.ID, time.Now(), "", "", ""); err != nil || !ok {
		t.Fatalf("MarkAttemptStarted: ok=%v err=%v", ok, err)
	}
	found, _ = s.FindAttemptForExam(ctx, student, exam.ID)
	if found.ID != a1.ID {
		t.Errorf("expected started attempt %d, got %d", a1.ID, found.ID)
	}
}

func TestRebindAttempt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, true)
	student := insertTestStudent(t, s, "ama")
	room, err := s.CreateClassroom(ctx, "JSS1")
	if err != nil {
		t.Fatalf("CreateClassroom: %v", err)
	}
	schedID, err := s.CreateSchedule(ctx, model.ExamSchedule{
		ExamID: exam.ID, ClassroomID: room, ScheduledDate: "2026-03-01", StartTime: "09:00", EndTime: "10:00",
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	d, _, err := s.FirstOrCreateDirectAttempt(ctx, exam.ID, student)
	if err != nil {
		t.Fatalf("FirstOrCreateDirectAttempt: %v", err)
	}

	ok, err := s.RebindAttempt(ctx, d.ID, schedID)
	if err != nil || !ok {
		t.Fatalf("RebindAttempt: ok=%v err=%v", ok, err)
	}
	got, _ := s.GetAttempt(ctx, d.ID)
	if got.ExamScheduleID == nil || *got.ExamScheduleID != schedID || got.ExamID != nil {
		t.Errorf("expected attempt under schedule %d only, got schedule=%v exam=%v", schedID, got.ExamScheduleID, got.ExamID)
	}
	again, created, err := s.FirstOrCreateScheduleAttempt(ctx, schedID, student)
	if err != nil || created || again.ID != d.ID {
		t.Errorf("expected rebound attempt %d to be reused, got %d created=%v err=%v", d.ID, again.ID, created, err)
	}

	if _, err := s.MarkAttemptStarted(ctx, d.ID, time.Now(), "", "", ""); err != nil {
		t.Fatalf("MarkAttemptStarted: %v", err)
	}
	ok, err = s.RebindAttempt(ctx, d.ID, schedID)
	if err != nil || ok {
		t.Errorf("expected started attempt to stay put: ok=%v err=%v", ok, err)
	}
}

func TestAttemptTransitionsAreConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, true)
	student := insertTestStudent(t, s, "bob")
	a, _, err := s.FirstOrCreateDirectAttempt(ctx, exam.ID, student)
	if err != nil {
		t.Fatalf("FirstOrCreateDirectAttempt: %v", err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ok, err := s.MarkAttemptFinished(ctx, a.ID, model.AttemptSubmitted, now, 0)
	if err != nil || ok {
		t.Fatalf("finish before start: ok=%v err=%v", ok, err)
	}
	ok, err = s.MarkAttemptStarted(ctx, a.ID, now, "10.0.0.1", "curl/8", `{"mobile":false}`)
	if err != nil || !ok {
		t.Fatalf("start: ok=%v err=%v", ok, err)
	}
	ok, _ = s.MarkAttemptStarted(ctx, a.ID, now.Add(time.Minute), "", "", "")
	if ok {
		t.Error("expected second start to be refused")
	}
	ok, err = s.MarkAttemptFinished(ctx, a.ID, model.AttemptSubmitted, now.Add(10*time.Minute), 600)
	if err != nil || !ok {
		t.Fatalf("finish: ok=%v err=%v", ok, err)
	}
	ok, _ = s.MarkAttemptFinished(ctx, a.ID, model.AttemptAutoSubmitted, now.Add(20*time.Minute), 1200)
	if ok {
		t.Error("expected second finish to be refused")
	}

	got, err := s.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if got.Status != model.AttemptSubmitted || got.TimeTaken != 600 {
		t.Errorf("expected submitted/600, got %s/%d", got.Status, got.TimeTaken)
	}
	if got.StartTime == nil || !got.StartTime.Equal(now) {
		t.Errorf("expected start time %v, got %v", now, got.StartTime)
	}
	if got.IPAddress != "10.0.0.1" {
		t.Errorf("expected ip 10.0.0.1, got %q", got.IPAddress)
	}
}

func TestScheduleTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, true)
	room, _ := s.CreateClassroom(ctx, "JSS2")
	id, err := s.CreateSchedule(ctx, model.ExamSchedule{
		ExamID: exam.ID, ClassroomID: room, ScheduledDate: "2026-03-01", StartTime: "09:00", EndTime: "10:00",
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	tests := []struct {
		name     string
		from, to model.ScheduleStatus
		want     bool
	}{
		{"start", model.ScheduleScheduled, model.ScheduleOngoing, true},
		{"start again", model.ScheduleScheduled, model.ScheduleOngoing, false},
		{"complete", model.ScheduleOngoing, model.ScheduleCompleted, true},
		{"cancel completed", model.ScheduleOngoing, model.ScheduleCancelled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.TransitionSchedule(ctx, id, tt.from, tt.to)
			if err != nil {
				t.Fatalf("TransitionSchedule: %v", err)
			}
			if ok != tt.want {
				t.Errorf("expected %v, got %v", tt.want, ok)
			}
		})
	}

	sc, _ := s.GetSchedule(ctx, id)
	if sc.Status != model.ScheduleCompleted {
		t.Errorf("expected completed, got %s", sc.Status)
	}
}

func TestAnswersAndEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, true)
	student := insertTestStudent(t, s, "carol")
	q1 := insertTestQuestion(t, s, "Q1", model.QuestionEssay, 5)
	q2 := insertTestQuestion(t, s, "Q2", model.QuestionTrueFalse, 1)
	a, _, _ := s.FirstOrCreateDirectAttempt(ctx, exam.ID, student)

	if _, err := s.EnsureAnswer(ctx, a.ID, q2, 1, ""); err != nil {
		t.Fatalf("EnsureAnswer: %v", err)
	}
	ans, err := s.EnsureAnswer(ctx, a.ID, q1, 2, `["A","B"]`)
	if err != nil {
		t.Fatalf("EnsureAnswer: %v", err)
	}
	// A second ensure keeps the original position.
	again, err := s.EnsureAnswer(ctx, a.ID, q1, 9, "")
	if err != nil {
		t.Fatalf("EnsureAnswer again: %v", err)
	}
	if again.ID != ans.ID || again.Position != 2 || again.OptionOrder != `["A","B"]` {
		t.Errorf("expected original row, got %+v", again)
	}

	spent := 30
	if err := s.UpdateAnswerText(ctx, ans.ID, "Because.", &spent, time.Now()); err != nil {
		t.Fatalf("UpdateAnswerText: %v", err)
	}
	if err := s.UpdateAnswerText(ctx, ans.ID, "Because, really.", nil, time.Now()); err != nil {
		t.Fatalf("UpdateAnswerText: %v", err)
	}
	got, _ := s.GetAnswer(ctx, ans.ID)
	if got.AnswerText == nil || *got.AnswerText != "Because, really." {
		t.Errorf("unexpected answer text %v", got.AnswerText)
	}
	if got.TimeSpent == nil || *got.TimeSpent != 30 {
		t.Errorf("expected time spent kept at 30, got %v", got.TimeSpent)
	}

	answers, err := s.ListAnswers(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 2 || answers[0].QuestionID != q2 {
		t.Errorf("expected q2 first by position, got %+v", answers)
	}

	pending, err := s.ListUngradedSubjective(ctx, exam.ID)
	if err != nil {
		t.Fatalf("ListUngradedSubjective: %v", err)
	}
	if len(pending) != 1 || pending[0].Answer.ID != ans.ID || pending[0].Question.ID != q1 {
		t.Fatalf("expected one pending essay answer, got %+v", pending)
	}

	correct := true
	if err := s.UpdateAnswerGrade(ctx, ans.ID, &correct, 4); err != nil {
		t.Fatalf("UpdateAnswerGrade: %v", err)
	}
	pending, _ = s.ListUngradedSubjective(ctx, exam.ID)
	if len(pending) != 0 {
		t.Errorf("expected no pending answers after grading, got %d", len(pending))
	}

	for i := range 3 {
		ev := model.AnswerEvent{
			ID: "ev-" + string(rune('a'+i)), AttemptID: a.ID, QuestionID: q1, Source: "manual", SavedAt: time.Now(),
		}
		if err := s.RecordAnswerEvent(ctx, ev); err != nil {
			t.Fatalf("RecordAnswerEvent: %v", err)
		}
	}
	n, err := s.CountAnswerEvents(ctx, a.ID)
	if err != nil || n != 3 {
		t.Errorf("expected 3 events, got %d (%v)", n, err)
	}
}

func TestUpsertCBTResultKeepsCA(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	attemptID := int64(42)

	if err := s.SetCAScore(ctx, 1, 7, 3, 25); err != nil {
		t.Fatalf("SetCAScore: %v", err)
	}
	if err := s.UpsertCBTResult(ctx, model.Result{
		StudentID: 1, SubjectID: 7, TermID: 3, ExamScore: 50, CBTExamAttemptID: &attemptID,
	}); err != nil {
		t.Fatalf("UpsertCBTResult: %v", err)
	}
	r, err := s.GetResult(ctx, 1, 7, 3)
	if err != nil || r == nil {
		t.Fatalf("GetResult: %v %v", r, err)
	}
	if r.CAScore != 25 || r.ExamScore != 50 || r.TotalScore != 75 || !r.IsCBTExam {
		t.Errorf("unexpected result %+v", r)
	}

	// A second projection replaces the exam score and keeps a single row.
	if err := s.UpsertCBTResult(ctx, model.Result{
		StudentID: 1, SubjectID: 7, TermID: 3, ExamScore: 60, CBTExamAttemptID: &attemptID,
	}); err != nil {
		t.Fatalf("UpsertCBTResult again: %v", err)
	}
	r, _ = s.GetResult(ctx, 1, 7, 3)
	if r.TotalScore != 85 {
		t.Errorf("expected total 85, got %v", r.TotalScore)
	}
	n, _ := s.CountResults(ctx, 1)
	if n != 1 {
		t.Errorf("expected 1 result row, got %d", n)
	}

	if err := s.UpsertCBTResult(ctx, model.Result{StudentID: 2, SubjectID: 7, TermID: 3, ExamScore: 40}); err != nil {
		t.Fatalf("UpsertCBTResult fresh: %v", err)
	}
	r, _ = s.GetResult(ctx, 2, 7, 3)
	if r.CAScore != 0 || r.TotalScore != 40 {
		t.Errorf("expected fresh row 0+40, got %+v", r)
	}
}

func TestRosterAndStudentSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, true)
	alice := insertTestStudent(t, s, "alice")
	bob := insertTestStudent(t, s, "bob")

	room, _ := s.CreateClassroom(ctx, "SS1")
	same, _ := s.CreateClassroom(ctx, "SS1")
	if room != same {
		t.Errorf("expected CreateClassroom to be idempotent, got %d and %d", room, same)
	}
	for _, id := range []int64{alice, alice, bob} {
		if err := s.EnrollStudent(ctx, room, id); err != nil {
			t.Fatalf("EnrollStudent: %v", err)
		}
	}
	refs, err := s.ListStudents(ctx, room)
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 students, got %d", len(refs))
	}

	if err := s.ToggleUserActive(ctx, bob); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	refs, _ = s.ListStudents(ctx, room)
	if len(refs) != 1 || refs[0].StudentID != alice {
		t.Errorf("expected only alice, got %+v", refs)
	}

	for _, date := range []string{"2026-03-01", "2026-03-08"} {
		if _, err := s.CreateSchedule(ctx, model.ExamSchedule{
			ExamID: exam.ID, ClassroomID: room, ScheduledDate: date, StartTime: "09:00", EndTime: "10:00",
		}); err != nil {
			t.Fatalf("CreateSchedule: %v", err)
		}
	}
	scheds, err := s.FindStudentSchedules(ctx, alice, exam.ID)
	if err != nil {
		t.Fatalf("FindStudentSchedules: %v", err)
	}
	if len(scheds) != 2 || scheds[0].ScheduledDate != "2026-03-08" {
		t.Errorf("expected most recent schedule first, got %+v", scheds)
	}

	if err := s.UnenrollStudent(ctx, room, alice); err != nil {
		t.Fatalf("UnenrollStudent: %v", err)
	}
	scheds, _ = s.FindStudentSchedules(ctx, alice, exam.ID)
	if len(scheds) != 0 {
		t.Errorf("expected no schedules after unenroll, got %d", len(scheds))
	}
}

func TestInTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *Store) error {
		if _, err := tx.InsertQuestion(ctx, model.Question{Text: "Q", Type: model.QuestionEssay, Marks: 1}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err != context.Canceled {
		t.Fatalf("expected the callback error, got %v", err)
	}
	n, _ := s.QuestionCount(ctx)
	if n != 0 {
		t.Errorf("expected rollback, got %d questions", n)
	}

	err = s.InTx(ctx, func(tx *Store) error {
		return tx.InTx(ctx, func(inner *Store) error {
			_, err := inner.InsertQuestion(ctx, model.Question{Text: "Q", Type: model.QuestionEssay, Marks: 1})
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested InTx: %v", err)
	}
	n, _ = s.QuestionCount(ctx)
	if n != 1 {
		t.Errorf("expected 1 question after commit, got %d", n)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid := insertTestStudent(t, s, "dave")

	token, err := s.CreateAuthSession(ctx, uid)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char token, got %d", len(token))
	}
	sess, err := s.GetAuthSession(ctx, token)
	if err != nil || sess == nil || sess.UserID != uid {
		t.Fatalf("GetAuthSession: %+v %v", sess, err)
	}
	if err := s.DeleteAuthSession(ctx, token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, _ = s.GetAuthSession(ctx, token)
	if sess != nil {
		t.Error("expected nil session after delete")
	}

	u, err := s.GetUserByUsername(ctx, "dave")
	if err != nil || u == nil || u.ID != uid || u.Role != model.UserRoleStudent {
		t.Errorf("GetUserByUsername: %+v %v", u, err)
	}
	u, _ = s.GetUserByUsername(ctx, "nobody")
	if u != nil {
		t.Errorf("expected nil for unknown user, got %+v", u)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := s.GetImportedFileHash(ctx, "/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash(ctx, "/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash(ctx, "/some/path.json")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	if err := s.SetImportedFileHash(ctx, "/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash(ctx, "/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestExportSchedule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exam := insertTestExam(t, s, true)
	q := insertTestQuestion(t, s, "Q", model.QuestionTrueFalse, 1)
	if err := s.AttachQuestion(ctx, exam.ID, q, 1, 2); err != nil {
		t.Fatalf("AttachQuestion: %v", err)
	}
	s.RecomputeTotalMarks(ctx, exam.ID)
	student := insertTestStudent(t, s, "erin")
	room, _ := s.CreateClassroom(ctx, "SS2")
	schedID, _ := s.CreateSchedule(ctx, model.ExamSchedule{
		ExamID: exam.ID, ClassroomID: room, ScheduledDate: "2026-03-01", StartTime: "09:00", EndTime: "10:00",
	})
	a, _, _ := s.FirstOrCreateScheduleAttempt(ctx, schedID, student)
	ans, _ := s.EnsureAnswer(ctx, a.ID, q, 1, "")
	s.UpdateAnswerText(ctx, ans.ID, "True", nil, time.Now())
	s.UpdateAttemptScore(ctx, a.ID, 2, 100)

	exp, err := s.ExportSchedule(ctx, schedID)
	if err != nil {
		t.Fatalf("ExportSchedule: %v", err)
	}
	if exp.TotalMarks != 2 || exp.NumQuestions != 1 || len(exp.Results) != 1 {
		t.Fatalf("unexpected export %+v", exp)
	}
	r := exp.Results[0]
	if r.Username != "erin" || r.Grade != "A+" || !r.Passed {
		t.Errorf("unexpected student result %+v", r)
	}
	if len(r.Questions) != 1 || r.Questions[0].Answer != "True" || r.Questions[0].MarksAllocated != 2 {
		t.Errorf("unexpected question results %+v", r.Questions)
	}
}
