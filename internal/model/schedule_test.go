package model

import (
	"testing"
	"time"
)

func TestScheduleWindow(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name             string
		start, end       string
		wantStart, wantE time.Time
	}{
		{"same day", "09:00", "10:30",
			time.Date(2026, 3, 1, 9, 0, 0, 0, loc), time.Date(2026, 3, 1, 10, 30, 0, 0, loc)},
		{"crosses midnight", "23:00", "01:00",
			time.Date(2026, 3, 1, 23, 0, 0, 0, loc), time.Date(2026, 3, 2, 1, 0, 0, 0, loc)},
		{"equal times", "09:00", "09:00",
			time.Date(2026, 3, 1, 9, 0, 0, 0, loc), time.Date(2026, 3, 2, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ExamSchedule{ScheduledDate: "2026-03-01", StartTime: tt.start, EndTime: tt.end}
			start, end, err := s.Window(loc)
			if err != nil {
				t.Fatalf("Window: %v", err)
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantE) {
				t.Errorf("got %v..%v, want %v..%v", start, end, tt.wantStart, tt.wantE)
			}
		})
	}

	if _, _, err := (ExamSchedule{ScheduledDate: "bad", StartTime: "09:00", EndTime: "10:00"}).Window(loc); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestSchedulePredicates(t *testing.T) {
	loc := time.UTC
	base := ExamSchedule{ScheduledDate: "2026-03-01", StartTime: "09:00", EndTime: "10:00"}
	before := time.Date(2026, 3, 1, 8, 59, 0, 0, loc)
	during := time.Date(2026, 3, 1, 9, 30, 0, 0, loc)
	after := time.Date(2026, 3, 1, 10, 0, 0, 0, loc)

	scheduled := base
	scheduled.Status = ScheduleScheduled
	ongoing := base
	ongoing.Status = ScheduleOngoing

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"can start before window", scheduled.CanStart(before, loc), false},
		{"can start at window", scheduled.CanStart(during, loc), true},
		{"ongoing cannot start", ongoing.CanStart(during, loc), false},
		{"auto end during", ongoing.ShouldAutoEnd(during, loc), false},
		{"auto end at end", ongoing.ShouldAutoEnd(after, loc), true},
		{"scheduled never auto ends", scheduled.ShouldAutoEnd(after, loc), false},
		{"opened during", scheduled.HasOpened(during, loc), true},
		{"opened after end", scheduled.HasOpened(after, loc), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestScheduleTimeRemaining(t *testing.T) {
	loc := time.UTC
	s := ExamSchedule{ScheduledDate: "2026-03-01", StartTime: "09:00", EndTime: "10:00", Status: ScheduleOngoing}

	if got := s.TimeRemaining(time.Date(2026, 3, 1, 9, 30, 0, 0, loc), loc); got == nil || *got != 1800 {
		t.Errorf("expected 1800s, got %v", got)
	}
	if got := s.TimeRemaining(time.Date(2026, 3, 1, 11, 0, 0, 0, loc), loc); got == nil || *got != 0 {
		t.Errorf("expected 0 after end, got %v", got)
	}
	s.Status = ScheduleScheduled
	if got := s.TimeRemaining(time.Date(2026, 3, 1, 9, 30, 0, 0, loc), loc); got != nil {
		t.Errorf("expected nil when not ongoing, got %v", *got)
	}
}
