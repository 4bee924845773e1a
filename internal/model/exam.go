package model

import "time"

// ExamStatus is the authoring status of an exam.
type ExamStatus string

const (
	ExamDraft    ExamStatus = "draft"
	ExamActive   ExamStatus = "active"
	ExamArchived ExamStatus = "archived"
)

// PassFraction is the share of total marks an attempt needs for the exam's
// pass-rate statistic. Attempt.IsPassed uses its own percentage threshold.
const PassFraction = 0.6

// Exam is a weighted, ordered set of questions for one subject and term.
type Exam struct {
	ID                 int64      `json:"id"`
	Title              string     `json:"title"`
	SubjectID          *int64     `json:"subject_id,omitempty"`
	TermID             *int64     `json:"term_id,omitempty"`
	TotalMarks         int        `json:"total_marks"`
	DurationMinutes    int        `json:"duration_minutes"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	RandomizeOptions   bool       `json:"randomize_options"`
	IsPublished        bool       `json:"is_published"`
	Status             ExamStatus `json:"status"`
	QuestionCount      int        `json:"question_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Duration returns the exam duration.
func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// CanBeScheduled reports whether the exam may be bound to a schedule.
func (e Exam) CanBeScheduled() bool {
	return e.IsPublished && e.QuestionCount > 0
}

// PassMark is the score needed to count as passed in exam statistics.
func (e Exam) PassMark() float64 {
	return float64(e.TotalMarks) * PassFraction
}

// ExamQuestion is a question attached to an exam with its per-exam weight.
type ExamQuestion struct {
	ExamID         int64    `json:"exam_id"`
	QuestionID     int64    `json:"question_id"`
	QuestionOrder  int      `json:"question_order"`
	MarksAllocated int      `json:"marks_allocated"`
	Question       Question `json:"question"`
}

// ExamStats summarizes the attempts of an exam.
type ExamStats struct {
	ExamID            int64   `json:"exam_id"`
	Attempts          int     `json:"attempts"`
	Completed         int     `json:"completed"`
	AverageScore      float64 `json:"average_score"`
	AveragePercentage float64 `json:"average_percentage"`
	Passed            int     `json:"passed"`
	PassRate          float64 `json:"pass_rate"`
}
