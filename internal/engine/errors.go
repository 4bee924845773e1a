package engine

import (
	"errors"
	"fmt"

	"github.com/pavelanni/cbt/internal/store"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExamNotSchedulable is returned when scheduling an unpublished or empty exam.
	ErrExamNotSchedulable = errors.New("exam is not published or has no questions")
	// ErrInvalidQuestion wraps question authoring violations.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidSchedule wraps malformed schedule windows.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrNotEnrolled is returned when a student has no access to an exam.
	ErrNotEnrolled = errors.New("student is not enrolled for this exam")
	// ErrForbidden is returned when a user acts on another student's attempt.
	ErrForbidden = errors.New("forbidden")
)

// notFound maps a missing row to ErrNotFound and wraps other errors.
func notFound(err error, what string, id int64) error {
	if store.IsNotFound(err) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}
