package model

import "time"

// ScheduleExport is the top-level JSON structure for exam result export.
type ScheduleExport struct {
	ScheduleID    int64           `json:"schedule_id"`
	ExamID        int64           `json:"exam_id"`
	ExamTitle     string          `json:"exam_title"`
	ClassroomID   int64           `json:"classroom_id"`
	ScheduledDate string          `json:"scheduled_date"`
	TotalMarks    int             `json:"total_marks"`
	NumQuestions  int             `json:"num_questions"`
	Results       []StudentResult `json:"results"`
}

// StudentResult holds one student's attempt data for export.
type StudentResult struct {
	StudentID   int64            `json:"student_id"`
	Username    string           `json:"username"`
	DisplayName string           `json:"display_name"`
	Status      AttemptStatus    `json:"status"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	SubmittedAt *time.Time       `json:"submitted_at,omitempty"`
	TimeTaken   int              `json:"time_taken"`
	TabSwitches int              `json:"tab_switches"`
	TotalScore  float64          `json:"total_score"`
	Percentage  float64          `json:"percentage"`
	Grade       string           `json:"grade"`
	Passed      bool             `json:"passed"`
	Questions   []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	QuestionID     int64        `json:"question_id"`
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	MarksAllocated int          `json:"marks_allocated"`
	Answer         string       `json:"answer"`
	IsCorrect      *bool        `json:"is_correct,omitempty"`
	MarksObtained  float64      `json:"marks_obtained"`
	Flagged        bool         `json:"flagged"`
}
