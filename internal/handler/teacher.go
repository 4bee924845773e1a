package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	appI18n "github.com/pavelanni/cbt/internal/i18n"
	"github.com/pavelanni/cbt/internal/model"
)

type questionRequest struct {
	SubjectID     int64              `json:"subject_id" validate:"gte=0"`
	Text          string             `json:"question_text" validate:"notblank"`
	Type          model.QuestionType `json:"type" validate:"required,oneof=multiple_choice true_false essay fill_blank"`
	Difficulty    model.Difficulty   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Marks         int                `json:"marks" validate:"required,gt=0"`
	TimeLimit     *int               `json:"time_limit" validate:"omitempty,gt=0"`
	Options       json.RawMessage    `json:"options"`
	CorrectAnswer string             `json:"correct_answer"`
	Explanation   string             `json:"explanation"`
}

// questionResponse shows a bank question with its decoded options.
type questionResponse struct {
	model.Question
	Options []model.Option `json:"options,omitempty"`
}

type examRequest struct {
	Title              string `json:"title" validate:"notblank,max=200"`
	SubjectID          *int64 `json:"subject_id" validate:"omitempty,gt=0"`
	TermID             *int64 `json:"term_id" validate:"omitempty,gt=0"`
	DurationMinutes    int    `json:"duration_minutes" validate:"required,gt=0,lte=1440"`
	RandomizeQuestions bool   `json:"randomize_questions"`
	RandomizeOptions   bool   `json:"randomize_options"`
	Publish            bool   `json:"publish"`
}

type attachRequest struct {
	QuestionID int64 `json:"question_id" validate:"required,gt=0"`
	Marks      int   `json:"marks" validate:"gte=0"`
	Order      int   `json:"order" validate:"gte=0"`
}

type publishRequest struct {
	Published *bool `json:"published" validate:"required"`
}

type scheduleRequest struct {
	ExamID        int64  `json:"exam_id" validate:"required,gt=0"`
	ClassroomID   int64  `json:"classroom_id" validate:"required,gt=0"`
	TermID        *int64 `json:"term_id" validate:"omitempty,gt=0"`
	ScheduledDate string `json:"scheduled_date" validate:"required,datetime=2006-01-02"`
	StartTime     string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime       string `json:"end_time" validate:"required,datetime=15:04"`
}

type classroomRequest struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

type enrollRequest struct {
	StudentIDs []int64 `json:"student_ids" validate:"required,min=1,dive,gt=0"`
}

type gradeRequest struct {
	Marks     *float64 `json:"marks" validate:"required"`
	IsCorrect *bool    `json:"is_correct"`
}

// examResponse is an exam with its attached questions in order.
type examResponse struct {
	Exam      model.Exam           `json:"exam"`
	Questions []model.ExamQuestion `json:"questions"`
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	subjectID, err := queryID(r, "subject_id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	qType := model.QuestionType(r.URL.Query().Get("type"))
	if qType != "" && !qType.Valid() {
		h.handleError(w, r, validationError("type", "is not a known question type"))
		return
	}
	questions, err := h.store.ListQuestions(r.Context(), subjectID, qType)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	out := make([]questionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, questionResponse{Question: q, Options: q.FormattedOptions()})
	}
	ok(w, out)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	q, err := h.engine.CreateQuestion(r.Context(), model.Question{
		SubjectID:     req.SubjectID,
		Text:          strings.TrimSpace(req.Text),
		Type:          req.Type,
		Difficulty:    req.Difficulty,
		Marks:         req.Marks,
		TimeLimit:     req.TimeLimit,
		Options:       string(req.Options),
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	created(w, questionResponse{Question: q, Options: q.FormattedOptions()})
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, exams)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	ex, err := h.engine.CreateExam(r.Context(), model.Exam{
		Title:              strings.TrimSpace(req.Title),
		SubjectID:          req.SubjectID,
		TermID:             req.TermID,
		DurationMinutes:    req.DurationMinutes,
		RandomizeQuestions: req.RandomizeQuestions,
		RandomizeOptions:   req.RandomizeOptions,
		IsPublished:        req.Publish,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	created(w, ex)
}

func (h *Handler) writeExam(w http.ResponseWriter, r *http.Request, ex model.Exam) {
	eqs, err := h.store.ListExamQuestions(r.Context(), ex.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, examResponse{Exam: ex, Questions: eqs})
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	ex, err := h.engine.Exam(r.Context(), examID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeExam(w, r, ex)
}

func (h *Handler) handleAttachQuestion(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	var req attachRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	ex, err := h.engine.AddQuestion(r.Context(), examID, req.QuestionID, req.Marks, req.Order)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeExam(w, r, ex)
}

func (h *Handler) handleDetachQuestion(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	questionID, found := idParam(w, r, "questionID")
	if !found {
		return
	}
	ex, err := h.engine.RemoveQuestion(r.Context(), examID, questionID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeExam(w, r, ex)
}

func (h *Handler) handlePublishExam(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	var req publishRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	ex, err := h.engine.PublishExam(r.Context(), examID, *req.Published)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, ex)
}

func (h *Handler) handlePreviewExam(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	views, err := h.engine.QuestionsForStudent(r.Context(), examID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, views)
}

func (h *Handler) handleExamStats(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	stats, err := h.engine.ExamStats(r.Context(), examID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, stats)
}

func (h *Handler) handleExamSchedules(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	schedules, err := h.engine.ListSchedulesForExam(r.Context(), examID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, schedules)
}

func (h *Handler) handleCreateClassroom(w http.ResponseWriter, r *http.Request) {
	var req classroomRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	id, err := h.store.CreateClassroom(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	created(w, model.Classroom{ID: id, Name: strings.TrimSpace(req.Name)})
}

func (h *Handler) handleEnrollStudents(w http.ResponseWriter, r *http.Request) {
	classroomID, found := idParam(w, r, "classroomID")
	if !found {
		return
	}
	var req enrollRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if _, err := h.store.GetClassroom(r.Context(), classroomID); err != nil {
		h.handleError(w, r, err)
		return
	}
	for _, id := range req.StudentIDs {
		u, err := h.store.GetUserByID(r.Context(), id)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		if u == nil || u.Role != model.UserRoleStudent {
			h.handleError(w, r, validationError("student_ids", "must reference student users"))
			return
		}
	}
	for _, id := range req.StudentIDs {
		if err := h.store.EnrollStudent(r.Context(), classroomID, id); err != nil {
			h.handleError(w, r, err)
			return
		}
	}
	students, err := h.store.ListStudents(r.Context(), classroomID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, students)
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	sc, err := h.engine.CreateSchedule(r.Context(), model.ExamSchedule{
		ExamID:        req.ExamID,
		ClassroomID:   req.ClassroomID,
		TermID:        req.TermID,
		ScheduledDate: req.ScheduledDate,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	created(w, sc)
}

func (h *Handler) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	h.scheduleAction(w, r, h.engine.Schedule)
}

func (h *Handler) handleStartSchedule(w http.ResponseWriter, r *http.Request) {
	h.scheduleAction(w, r, h.engine.StartSchedule)
}

func (h *Handler) handleCompleteSchedule(w http.ResponseWriter, r *http.Request) {
	h.scheduleAction(w, r, h.engine.CompleteSchedule)
}

func (h *Handler) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	h.scheduleAction(w, r, h.engine.CancelSchedule)
}

// scheduleAction runs a schedule operation and returns the schedule as it
// stands afterwards. Transitions whose precondition fails leave it unchanged.
func (h *Handler) scheduleAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, id int64) (model.ExamSchedule, error),
) {
	id, found := idParam(w, r, "scheduleID")
	if !found {
		return
	}
	sc, err := action(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, sc)
}

func (h *Handler) handleCreateAttempts(w http.ResponseWriter, r *http.Request) {
	id, found := idParam(w, r, "scheduleID")
	if !found {
		return
	}
	n, err := h.engine.CreateAttemptsForStudents(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Status:  "success",
		Message: appI18n.Tp(r.Context(), "AttemptsCreated", n),
		Data:    map[string]int{"created": n},
	})
}

func (h *Handler) handleExportSchedule(w http.ResponseWriter, r *http.Request) {
	id, found := idParam(w, r, "scheduleID")
	if !found {
		return
	}
	if _, err := h.engine.Schedule(r.Context(), id); err != nil {
		h.handleError(w, r, err)
		return
	}
	export, err := h.store.ExportSchedule(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, export)
}

func (h *Handler) handlePendingGrading(w http.ResponseWriter, r *http.Request) {
	examID, err := queryID(r, "exam_id")
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	pending, err := h.engine.PendingManualGrading(r.Context(), examID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if pending == nil {
		pending = []model.PendingAnswer{}
	}
	writeJSON(w, http.StatusOK, envelope{
		Status:  "success",
		Message: appI18n.Tp(r.Context(), "AnswersPending", len(pending)),
		Data:    pending,
	})
}

func (h *Handler) handleGradeAnswer(w http.ResponseWriter, r *http.Request) {
	answerID, found := idParam(w, r, "answerID")
	if !found {
		return
	}
	var req gradeRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	ans, err := h.engine.ManualGrade(r.Context(), answerID, *req.Marks, req.IsCorrect)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, ans)
}

func (h *Handler) handleSuggestGrade(w http.ResponseWriter, r *http.Request) {
	answerID, found := idParam(w, r, "answerID")
	if !found {
		return
	}
	if h.llm == nil {
		fail(w, r, http.StatusServiceUnavailable, "ErrAssistantDisabled")
		return
	}
	p, err := h.engine.Answer(r.Context(), answerID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var text string
	if p.Answer.AnswerText != nil {
		text = *p.Answer.AnswerText
	}
	s, err := h.llm.SuggestGrade(r.Context(), p.Question, text, p.MaxMarks)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, s)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	attemptID, found := idParam(w, r, "attemptID")
	if !found {
		return
	}
	a, err := h.engine.RecalculateAttempt(r.Context(), attemptID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, a)
}
