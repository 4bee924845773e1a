package model

import "time"

// Result is the academic gradebook row for a student, subject and term.
type Result struct {
	ID               int64     `json:"id"`
	StudentID        int64     `json:"student_id"`
	SubjectID        int64     `json:"subject_id"`
	TermID           int64     `json:"term_id"`
	CAScore          float64   `json:"ca_score"`
	ExamScore        float64   `json:"exam_score"`
	TotalScore       float64   `json:"total_score"`
	CBTExamAttemptID *int64    `json:"cbt_exam_attempt_id,omitempty"`
	IsCBTExam        bool      `json:"is_cbt_exam"`
	UpdatedAt        time.Time `json:"updated_at"`
}
