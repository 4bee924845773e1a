package handler

import (
	"net/http"

	"github.com/pavelanni/cbt/internal/model"
)

type caScoreRequest struct {
	StudentID int64    `json:"student_id" validate:"required,gt=0"`
	SubjectID int64    `json:"subject_id" validate:"required,gt=0"`
	TermID    int64    `json:"term_id" validate:"required,gt=0"`
	CAScore   *float64 `json:"ca_score" validate:"required,gte=0"`
}

// handleGetResult returns the gradebook row of a student for a subject and term.
func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	var key [3]int64
	for i, name := range []string{"student_id", "subject_id", "term_id"} {
		id, err := queryID(r, name)
		if err == nil && id == 0 {
			err = validationError(name, "is required")
		}
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		key[i] = id
	}
	res, err := h.store.GetResult(r.Context(), key[0], key[1], key[2])
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if res == nil {
		fail(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	ok(w, res)
}

// handleSetCAScore records a continuous-assessment score. The result total
// follows as CA plus any CBT exam score already projected.
func (h *Handler) handleSetCAScore(w http.ResponseWriter, r *http.Request) {
	var req caScoreRequest
	if err := decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	u, err := h.store.GetUserByID(r.Context(), req.StudentID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if u == nil || u.Role != model.UserRoleStudent {
		h.handleError(w, r, validationError("student_id", "must reference a student user"))
		return
	}
	if err := h.store.SetCAScore(r.Context(), req.StudentID, req.SubjectID, req.TermID, *req.CAScore); err != nil {
		h.handleError(w, r, err)
		return
	}
	res, err := h.store.GetResult(r.Context(), req.StudentID, req.SubjectID, req.TermID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, res)
}

func (h *Handler) handleUnenrollStudent(w http.ResponseWriter, r *http.Request) {
	classroomID, found := idParam(w, r, "classroomID")
	if !found {
		return
	}
	studentID, found := idParam(w, r, "studentID")
	if !found {
		return
	}
	if err := h.store.UnenrollStudent(r.Context(), classroomID, studentID); err != nil {
		h.handleError(w, r, err)
		return
	}
	students, err := h.store.ListStudents(r.Context(), classroomID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ok(w, students)
}
