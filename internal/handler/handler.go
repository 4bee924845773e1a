package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/cbt/internal/engine"
	appI18n "github.com/pavelanni/cbt/internal/i18n"
	"github.com/pavelanni/cbt/internal/llm"
	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine *engine.Engine
	store  *store.Store
	llm    *llm.Client // nil disables the grading assistant
	config model.ServerConfig
}

// New creates a new Handler.
func New(e *engine.Engine, s *store.Store, l *llm.Client, cfg model.ServerConfig) *Handler {
	return &Handler{engine: e, store: s, llm: l, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleStudent))
			r.Post("/exam/{examID}/start", h.handleStartExam)
			r.Get("/exam/{examID}", h.handleExamView)
			r.Route("/attempt/{attemptID}", func(r chi.Router) {
				r.Post("/answer", h.handleSaveAnswer)
				r.Post("/flag", h.handleFlag)
				r.Post("/submit", h.handleSubmit)
				r.Post("/auto-submit", h.handleAutoSubmit)
				r.Post("/tab-switch", h.handleTabSwitch)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))

			r.Get("/questions", h.handleListQuestions)
			r.Post("/questions", h.handleCreateQuestion)

			r.Get("/exams", h.handleListExams)
			r.Post("/exams", h.handleCreateExam)
			r.Route("/exams/{examID}", func(r chi.Router) {
				r.Get("/", h.handleGetExam)
				r.Post("/questions", h.handleAttachQuestion)
				r.Delete("/questions/{questionID}", h.handleDetachQuestion)
				r.Post("/publish", h.handlePublishExam)
				r.Get("/preview", h.handlePreviewExam)
				r.Get("/stats", h.handleExamStats)
				r.Get("/schedules", h.handleExamSchedules)
			})

			r.Post("/classrooms", h.handleCreateClassroom)
			r.Post("/classrooms/{classroomID}/students", h.handleEnrollStudents)
			r.Delete("/classrooms/{classroomID}/students/{studentID}", h.handleUnenrollStudent)

			r.Get("/results", h.handleGetResult)
			r.Post("/results/ca", h.handleSetCAScore)

			r.Post("/schedules", h.handleCreateSchedule)
			r.Route("/schedules/{scheduleID}", func(r chi.Router) {
				r.Get("/", h.handleGetSchedule)
				r.Post("/start", h.handleStartSchedule)
				r.Post("/complete", h.handleCompleteSchedule)
				r.Post("/cancel", h.handleCancelSchedule)
				r.Post("/attempts", h.handleCreateAttempts)
				r.Get("/export", h.handleExportSchedule)
			})

			r.Get("/grading/pending", h.handlePendingGrading)
			r.Post("/answers/{answerID}/grade", h.handleGradeAnswer)
			r.Post("/answers/{answerID}/suggest", h.handleSuggestGrade)
			r.Post("/attempts/{attemptID}/recalculate", h.handleRecalculate)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

// envelope is the body of every JSON response.
type envelope struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Reason  engine.Reason     `json:"reason,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Status: "success", Data: data})
}

func fail(w http.ResponseWriter, r *http.Request, code int, msgID string) {
	writeJSON(w, code, envelope{Status: "error", Message: appI18n.T(r.Context(), msgID)})
}

var reasonMessages = map[engine.Reason]string{
	engine.ReasonNotYetAvailable:  "ReasonNotYetAvailable",
	engine.ReasonInProgress:       "ReasonInProgress",
	engine.ReasonAlreadySubmitted: "ReasonAlreadySubmitted",
	engine.ReasonExpired:          "ReasonExpired",
	engine.ReasonCancelled:        "ReasonCancelled",
}

// reject answers a refused transition with 409, a localized message and the
// machine-readable reason. data carries the entity as it stands.
func reject(w http.ResponseWriter, r *http.Request, reason engine.Reason, data any) {
	writeJSON(w, http.StatusConflict, envelope{
		Status:  "rejected",
		Message: appI18n.T(r.Context(), reasonMessages[reason]),
		Reason:  reason,
		Data:    data,
	})
}

// handleError maps an error to its HTTP response.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs validator.ValidationErrors
		ferr  *fieldError
	)
	switch {
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Status:  "error",
			Message: appI18n.T(r.Context(), "ErrValidation"),
			Errors:  map[string]string{ferr.field: ferr.msg},
		})
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Status:  "error",
			Message: appI18n.T(r.Context(), "ErrValidation"),
			Errors:  fieldErrors(verrs),
		})
	case errors.Is(err, errBadBody):
		writeJSON(w, http.StatusBadRequest, envelope{
			Status:  "error",
			Message: appI18n.T(r.Context(), "ErrBadRequest"),
			Errors:  map[string]string{"body": err.Error()},
		})
	case errors.Is(err, engine.ErrNotFound), store.IsNotFound(err):
		fail(w, r, http.StatusNotFound, "ErrNotFound")
	case errors.Is(err, engine.ErrForbidden):
		fail(w, r, http.StatusForbidden, "ErrForbidden")
	case errors.Is(err, engine.ErrNotEnrolled):
		fail(w, r, http.StatusForbidden, "ErrNotEnrolled")
	case errors.Is(err, engine.ErrExamNotSchedulable):
		fail(w, r, http.StatusUnprocessableEntity, "ErrNotSchedulable")
	case errors.Is(err, engine.ErrInvalidQuestion):
		invalid(w, r, "ErrInvalidQuestion", err)
	case errors.Is(err, engine.ErrInvalidSchedule):
		invalid(w, r, "ErrInvalidSchedule", err)
	case errors.Is(err, llm.ErrNotSubjective):
		invalid(w, r, "ErrValidation", err)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		fail(w, r, http.StatusInternalServerError, "ErrInternal")
	}
}

func invalid(w http.ResponseWriter, r *http.Request, msgID string, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, envelope{
		Status:  "error",
		Message: appI18n.T(r.Context(), msgID),
		Errors:  map[string]string{"detail": err.Error()},
	})
}

// idParam parses a positive int64 URL parameter. It writes a 404 and
// returns false when the parameter is not an ID.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		fail(w, r, http.StatusNotFound, "ErrNotFound")
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive int64 query parameter; absent is 0.
func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, validationError(name, "must be a positive integer")
	}
	return id, nil
}

// fieldError is a single-field validation failure raised outside the validator.
type fieldError struct {
	field, msg string
}

func (e *fieldError) Error() string { return e.field + " " + e.msg }

func validationError(field, msg string) error {
	return &fieldError{field: field, msg: msg}
}
