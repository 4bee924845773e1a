package model

import (
	"math"
	"time"
)

// AttemptStatus represents the status of an exam attempt.
type AttemptStatus string

const (
	AttemptNotStarted    AttemptStatus = "not_started"
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
)

// Rank orders statuses along the attempt lifecycle. Both terminal statuses share a rank.
func (s AttemptStatus) Rank() int {
	switch s {
	case AttemptNotStarted:
		return 0
	case AttemptInProgress:
		return 1
	case AttemptSubmitted, AttemptAutoSubmitted:
		return 2
	}
	return -1
}

// Terminal reports whether no further transition is possible.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted
}

// PassPercentage is the percentage an attempt needs for IsPassed.
const PassPercentage = 60.0

// BrowserInfo is the parsed user agent captured at attempt start.
type BrowserInfo struct {
	Platform       string `json:"platform,omitempty"`
	OS             string `json:"os,omitempty"`
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	Mobile         bool   `json:"mobile"`
}

// Attempt is one student's sitting of one exam, either bound to a schedule
// or addressed directly through the exam.
type Attempt struct {
	ID             int64         `json:"id"`
	ExamScheduleID *int64        `json:"exam_schedule_id,omitempty"`
	ExamID         *int64        `json:"exam_id,omitempty"`
	StudentID      int64         `json:"student_id"`
	StartTime      *time.Time    `json:"start_time,omitempty"`
	EndTime        *time.Time    `json:"end_time,omitempty"`
	Status         AttemptStatus `json:"status"`
	TotalScore     float64       `json:"total_score"`
	Percentage     float64       `json:"percentage"`
	TimeTaken      int           `json:"time_taken"`
	TabSwitches    int           `json:"tab_switches"`
	IPAddress      string        `json:"ip_address,omitempty"`
	UserAgent      string        `json:"user_agent,omitempty"`
	BrowserInfo    string        `json:"browser_info,omitempty"`
}

// CanSubmit reports whether the attempt accepts submission.
func (a Attempt) CanSubmit() bool {
	return a.Status == AttemptInProgress
}

// Grade maps the attempt percentage to a letter grade.
func (a Attempt) Grade() string {
	return LetterGrade(a.Percentage)
}

// IsPassed reports whether the attempt percentage reaches PassPercentage.
func (a Attempt) IsPassed() bool {
	return a.Percentage >= PassPercentage
}

// LetterGrade maps a percentage to a letter grade on fixed thresholds.
func LetterGrade(pct float64) string {
	switch {
	case pct >= 90:
		return "A+"
	case pct >= 80:
		return "A"
	case pct >= 70:
		return "B+"
	case pct >= 60:
		return "B"
	case pct >= 50:
		return "C"
	case pct >= 40:
		return "D"
	default:
		return "F"
	}
}

// Percentage returns obtained/total*100 clamped to [0, 100] and rounded to
// two decimals. A zero total yields 0.
func Percentage(obtained, total float64) float64 {
	if total <= 0 {
		return 0
	}
	pct := obtained / total * 100
	pct = math.Max(0, math.Min(100, pct))
	return math.Round(pct*100) / 100
}

// Answer is a student's answer to one question of an attempt.
type Answer struct {
	ID            int64      `json:"id"`
	AttemptID     int64      `json:"attempt_id"`
	QuestionID    int64      `json:"question_id"`
	AnswerText    *string    `json:"answer_text,omitempty"`
	IsCorrect     *bool      `json:"is_correct,omitempty"`
	MarksObtained float64    `json:"marks_obtained"`
	TimeSpent     *int       `json:"time_spent,omitempty"`
	IsFlagged     bool       `json:"is_flagged"`
	Position      int        `json:"position"`
	OptionOrder   string     `json:"-"` // JSON list of option keys, empty when not fixed
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// IsAnswered reports whether the student entered a non-empty answer.
func (a Answer) IsAnswered() bool {
	return a.AnswerText != nil && *a.AnswerText != ""
}

// NeedsManualGrading reports whether a subjective answer awaits a teacher.
func (a Answer) NeedsManualGrading(qt QuestionType) bool {
	return a.IsAnswered() && (qt == QuestionEssay || qt == QuestionFillBlank) && a.IsCorrect == nil
}

// AnswerEvent records one save of an answer for later audit.
type AnswerEvent struct {
	ID         string    `json:"id"`
	AttemptID  int64     `json:"attempt_id"`
	QuestionID int64     `json:"question_id"`
	Source     string    `json:"source"`
	SavedAt    time.Time `json:"saved_at"`
}

// AttemptView is the student-facing state of an exam: the exam, the
// student's attempt and the questions in their presented order.
type AttemptView struct {
	Exam          Exam           `json:"exam"`
	Schedule      *ExamSchedule  `json:"schedule,omitempty"`
	Attempt       *Attempt       `json:"attempt,omitempty"`
	TimeRemaining *int           `json:"time_remaining"`
	Questions     []QuestionView `json:"questions,omitempty"`
	Answers       []Answer       `json:"answers,omitempty"`
	Grade         string         `json:"grade,omitempty"`
	Passed        *bool          `json:"passed,omitempty"`
}

// PendingAnswer is an answer awaiting manual grading.
type PendingAnswer struct {
	Answer   Answer   `json:"answer"`
	Question Question `json:"question"`
	Attempt  Attempt  `json:"attempt"`
	MaxMarks float64  `json:"max_marks"`
}
