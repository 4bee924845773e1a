package engine

import (
	"time"

	"github.com/pavelanni/cbt/internal/model"
)

// Reason tells a student why an exam cannot be started or continued.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNotYetAvailable  Reason = "not_yet_available"
	ReasonInProgress       Reason = "in_progress"
	ReasonAlreadySubmitted Reason = "already_submitted"
	ReasonExpired          Reason = "expired"
	ReasonCancelled        Reason = "cancelled"
)

// availability classifies the student's access to an exam from the attempt
// and schedule state. a and sc may be nil.
func availability(a *model.Attempt, ex model.Exam, sc *model.ExamSchedule, now time.Time, loc *time.Location) Reason {
	if a != nil && a.Status.Terminal() {
		return ReasonAlreadySubmitted
	}
	if sc != nil && sc.Status == model.ScheduleCancelled {
		return ReasonCancelled
	}
	if a != nil && a.Status == model.AttemptInProgress {
		if rem := timeRemaining(*a, ex, sc, now, loc); rem != nil && *rem == 0 {
			return ReasonExpired
		}
		return ReasonInProgress
	}
	if sc == nil {
		if !ex.IsPublished {
			return ReasonNotYetAvailable
		}
		return ReasonNone
	}
	if sc.Status == model.ScheduleCompleted {
		return ReasonExpired
	}
	_, end, err := sc.Window(loc)
	if err == nil && !now.Before(end) {
		return ReasonExpired
	}
	if !sc.IsOngoing() || !sc.HasOpened(now, loc) {
		return ReasonNotYetAvailable
	}
	return ReasonNone
}

// canStart reports whether a not_started attempt may begin now. A
// schedule-bound attempt needs its schedule both marked ongoing and inside
// its window on the live clock.
func canStart(a model.Attempt, ex model.Exam, sc *model.ExamSchedule, now time.Time, loc *time.Location) bool {
	if a.Status != model.AttemptNotStarted {
		return false
	}
	if sc == nil {
		return ex.IsPublished
	}
	return sc.IsOngoing() && sc.HasOpened(now, loc)
}

// timeRemaining returns the seconds left in an attempt, or nil when it is
// not in progress. Elapsed time runs from the attempt's own start. A
// schedule-bound attempt is further limited by its schedule and has no time
// left once the schedule stops being ongoing.
func timeRemaining(a model.Attempt, ex model.Exam, sc *model.ExamSchedule, now time.Time, loc *time.Location) *int {
	if a.Status != model.AttemptInProgress {
		return nil
	}
	var elapsed time.Duration
	if a.StartTime != nil {
		elapsed = now.Sub(*a.StartTime)
	}
	secs := max(0, int((ex.Duration()-elapsed)/time.Second))
	if sc != nil {
		if left := sc.TimeRemaining(now, loc); left == nil {
			secs = 0
		} else {
			secs = min(secs, *left)
		}
	}
	return &secs
}
