package model

import "encoding/json"

// Fixture is the JSON document loaded by the import command.
type Fixture struct {
	Users      []UserImport      `json:"users"`
	Classrooms []ClassroomImport `json:"classrooms"`
	Questions  []QuestionImport  `json:"questions"`
	Exams      []ExamImport      `json:"exams"`
	Schedules  []ScheduleImport  `json:"schedules"`
}

// UserImport is a user entry of a fixture. Students may name their classrooms.
type UserImport struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Password    string   `json:"password"`
	Role        UserRole `json:"role"`
	Classrooms  []string `json:"classrooms"`
}

// ClassroomImport is a classroom entry of a fixture.
type ClassroomImport struct {
	Name string `json:"name"`
}

// QuestionImport is a question entry of a fixture. Ref names the question
// for exams in the same file.
type QuestionImport struct {
	Ref           string          `json:"ref"`
	SubjectID     int64           `json:"subject_id"`
	Text          string          `json:"question_text"`
	Type          QuestionType    `json:"type"`
	Difficulty    Difficulty      `json:"difficulty"`
	Marks         int             `json:"marks"`
	TimeLimit     *int            `json:"time_limit"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
}

// Question converts the import entry to a bank question.
func (qi QuestionImport) Question() Question {
	q := Question{
		SubjectID:     qi.SubjectID,
		Text:          qi.Text,
		Type:          qi.Type,
		Difficulty:    qi.Difficulty,
		Marks:         qi.Marks,
		TimeLimit:     qi.TimeLimit,
		CorrectAnswer: qi.CorrectAnswer,
		Explanation:   qi.Explanation,
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if len(qi.Options) > 0 && string(qi.Options) != "null" {
		q.Options = string(qi.Options)
	}
	return q
}

// ExamImport is an exam entry of a fixture.
type ExamImport struct {
	Title              string               `json:"title"`
	SubjectID          *int64               `json:"subject_id"`
	TermID             *int64               `json:"term_id"`
	DurationMinutes    int                  `json:"duration_minutes"`
	RandomizeQuestions bool                 `json:"randomize_questions"`
	RandomizeOptions   bool                 `json:"randomize_options"`
	Publish            bool                 `json:"publish"`
	Questions          []ExamQuestionImport `json:"questions"`
}

// ExamQuestionImport attaches a fixture question to an exam. Zero marks use
// the question's default.
type ExamQuestionImport struct {
	Ref   string `json:"ref"`
	Marks int    `json:"marks"`
}

// ScheduleImport schedules a fixture exam, by title, for a classroom, by name.
type ScheduleImport struct {
	Exam          string `json:"exam"`
	Classroom     string `json:"classroom"`
	TermID        *int64 `json:"term_id"`
	ScheduledDate string `json:"scheduled_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}
