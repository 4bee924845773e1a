package handler

import (
	"context"
	"net/http"

	"github.com/pavelanni/cbt/internal/engine"
	appI18n "github.com/pavelanni/cbt/internal/i18n"
	"github.com/pavelanni/cbt/internal/model"
)

type saveAnswerRequest struct {
	QuestionID int64  `json:"question_id" validate:"required,gt=0"`
	Answer     string `json:"answer" validate:"max=20000"`
	TimeSpent  *int   `json:"time_spent" validate:"omitempty,gte=0"`
	Source     string `json:"source" validate:"omitempty,oneof=autosave manual"`
}

type flagRequest struct {
	QuestionID int64 `json:"question_id" validate:"required,gt=0"`
	Flagged    bool  `json:"flagged"`
}

// attemptResponse is an attempt with the seconds the student has left.
type attemptResponse struct {
	Attempt       model.Attempt `json:"attempt"`
	TimeRemaining *int          `json:"time_remaining"`
	Grade         string        `json:"grade,omitempty"`
	Passed        *bool         `json:"passed,omitempty"`
	Summary       string        `json:"summary,omitempty"`
}

func (h *Handler) attemptResponse(r *http.Request, a model.Attempt) (attemptResponse, error) {
	resp := attemptResponse{Attempt: a}
	rem, err := h.engine.TimeRemaining(r.Context(), a)
	if err != nil {
		return resp, err
	}
	resp.TimeRemaining = rem
	if a.Status.Terminal() {
		passed := a.IsPassed()
		resp.Grade = a.Grade()
		resp.Passed = &passed
		resp.Summary = appI18n.Td(r.Context(), "GradeSummary", map[string]any{
			"Grade":      resp.Grade,
			"Percentage": a.Percentage,
		})
	}
	return resp, nil
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	user := model.UserFromContext(r.Context())

	a, reason, err := h.engine.StartExam(r.Context(), user.ID, examID, requestMeta(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if reason != engine.ReasonNone {
		var data any
		if a.ID != 0 {
			data = a
		}
		reject(w, r, reason, data)
		return
	}
	resp, err := h.attemptResponse(r, a)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, resp)
}

func (h *Handler) handleExamView(w http.ResponseWriter, r *http.Request) {
	examID, found := idParam(w, r, "examID")
	if !found {
		return
	}
	user := model.UserFromContext(r.Context())

	view, reason, err := h.engine.ExamView(r.Context(), user.ID, examID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	body := envelope{Status: "success", Reason: reason, Data: view}
	if msgID, known := reasonMessages[reason]; known {
		body.Message = appI18n.T(r.Context(), msgID)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handleSaveAnswer(w http.ResponseWriter, r *http.Request) {
	attemptID, found := idParam(w, r, "attemptID")
	if !found {
		return
	}
	var req saveAnswerRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())

	ans, reason, err := h.engine.SaveAnswer(r.Context(), attemptID, user.ID, req.QuestionID, req.Answer, req.TimeSpent, req.Source)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if reason != engine.ReasonNone {
		reject(w, r, reason, nil)
		return
	}
	ok(w, hideGrading(ans))
}

func (h *Handler) handleFlag(w http.ResponseWriter, r *http.Request) {
	attemptID, found := idParam(w, r, "attemptID")
	if !found {
		return
	}
	var req flagRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())

	ans, reason, err := h.engine.FlagAnswer(r.Context(), attemptID, user.ID, req.QuestionID, req.Flagged)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if reason != engine.ReasonNone {
		reject(w, r, reason, nil)
		return
	}
	ok(w, hideGrading(ans))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.finishAttempt(w, r, h.engine.Submit)
}

func (h *Handler) handleAutoSubmit(w http.ResponseWriter, r *http.Request) {
	h.finishAttempt(w, r, h.engine.AutoSubmit)
}

// finishAttempt runs a terminal transition. Finishing an attempt that was
// never started is rejected; finishing a finished one returns it unchanged.
func (h *Handler) finishAttempt(w http.ResponseWriter, r *http.Request,
	finish func(ctx context.Context, attemptID, studentID int64) (model.Attempt, error),
) {
	attemptID, found := idParam(w, r, "attemptID")
	if !found {
		return
	}
	user := model.UserFromContext(r.Context())

	a, err := finish(r.Context(), attemptID, user.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if a.Status == model.AttemptNotStarted {
		reject(w, r, engine.ReasonNotYetAvailable, a)
		return
	}
	resp, err := h.attemptResponse(r, a)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, resp)
}

func (h *Handler) handleTabSwitch(w http.ResponseWriter, r *http.Request) {
	attemptID, found := idParam(w, r, "attemptID")
	if !found {
		return
	}
	user := model.UserFromContext(r.Context())

	a, err := h.engine.RecordTabSwitch(r.Context(), attemptID, user.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, map[string]any{"attempt_id": a.ID, "tab_switches": a.TabSwitches})
}

// hideGrading clears the grading fields of an answer shown to a student
// during an attempt.
func hideGrading(a model.Answer) model.Answer {
	a.IsCorrect = nil
	a.MarksObtained = 0
	return a
}
