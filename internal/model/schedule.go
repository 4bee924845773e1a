package model

import (
	"fmt"
	"time"
)

// ScheduleStatus is the state of an exam schedule.
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleOngoing   ScheduleStatus = "ongoing"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

const (
	// DateLayout is the storage format of ExamSchedule.ScheduledDate.
	DateLayout = "2006-01-02"
	// ClockLayout is the storage format of ExamSchedule start and end times.
	ClockLayout = "15:04"
)

// ExamSchedule binds an exam to a classroom for one sitting.
type ExamSchedule struct {
	ID            int64          `json:"id"`
	ExamID        int64          `json:"exam_id"`
	ClassroomID   int64          `json:"classroom_id"`
	TermID        *int64         `json:"term_id,omitempty"`
	ScheduledDate string         `json:"scheduled_date"`
	StartTime     string         `json:"start_time"`
	EndTime       string         `json:"end_time"`
	Status        ScheduleStatus `json:"status"`
}

// Window returns the start and end instants of the sitting in loc.
// An end time at or before the start time falls on the following day.
func (s ExamSchedule) Window(loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}
	start, err = time.ParseInLocation(DateLayout+" "+ClockLayout, s.ScheduledDate+" "+s.StartTime, loc)
	if err != nil {
		return start, end, fmt.Errorf("parse schedule start: %w", err)
	}
	end, err = time.ParseInLocation(DateLayout+" "+ClockLayout, s.ScheduledDate+" "+s.EndTime, loc)
	if err != nil {
		return start, end, fmt.Errorf("parse schedule end: %w", err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// IsOngoing reports whether the schedule status is ongoing.
func (s ExamSchedule) IsOngoing() bool {
	return s.Status == ScheduleOngoing
}

// IsClosed reports whether the schedule reached a terminal state.
func (s ExamSchedule) IsClosed() bool {
	return s.Status == ScheduleCompleted || s.Status == ScheduleCancelled
}

// HasOpened reports whether now lies inside the scheduled window, ignoring status.
func (s ExamSchedule) HasOpened(now time.Time, loc *time.Location) bool {
	start, end, err := s.Window(loc)
	if err != nil {
		return false
	}
	return !now.Before(start) && now.Before(end)
}

// CanStart reports whether the schedule may move from scheduled to ongoing.
func (s ExamSchedule) CanStart(now time.Time, loc *time.Location) bool {
	if s.Status != ScheduleScheduled {
		return false
	}
	start, _, err := s.Window(loc)
	if err != nil {
		return false
	}
	return !now.Before(start)
}

// ShouldAutoEnd reports whether an ongoing schedule has passed its end.
func (s ExamSchedule) ShouldAutoEnd(now time.Time, loc *time.Location) bool {
	if s.Status != ScheduleOngoing {
		return false
	}
	_, end, err := s.Window(loc)
	if err != nil {
		return false
	}
	return !now.Before(end)
}

// TimeRemaining returns the seconds left in an ongoing sitting, or nil when
// the schedule is not ongoing.
func (s ExamSchedule) TimeRemaining(now time.Time, loc *time.Location) *int {
	if s.Status != ScheduleOngoing {
		return nil
	}
	_, end, err := s.Window(loc)
	if err != nil {
		zero := 0
		return &zero
	}
	secs := max(0, int(end.Sub(now)/time.Second))
	return &secs
}
