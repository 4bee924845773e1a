package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// QuestionType is the answer format of a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionEssay          QuestionType = "essay"
	QuestionFillBlank      QuestionType = "fill_blank"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionEssay, QuestionFillBlank:
		return true
	}
	return false
}

// Objective reports whether answers of this type are graded automatically.
func (t QuestionType) Objective() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Option is one selectable choice of a choice-style question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is an entry of the question bank.
type Question struct {
	ID            int64        `json:"id"`
	SubjectID     int64        `json:"subject_id"`
	Text          string       `json:"question_text"`
	Type          QuestionType `json:"type"`
	Difficulty    Difficulty   `json:"difficulty"`
	Marks         int          `json:"marks"`
	TimeLimit     *int         `json:"time_limit,omitempty"`
	Options       string       `json:"-"` // raw JSON as stored
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// ErrMalformedOptions is returned by ParseOptions for undecodable option data.
var ErrMalformedOptions = errors.New("malformed options")

// ParseOptions decodes option data in either the ordered-object form
// {"A":"...","B":"..."} or the list form [{"key":"A","text":"..."}].
// Object keys keep their document order.
func ParseOptions(raw string) ([]Option, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var opts []Option
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOptions, err)
		}
		return opts, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, ErrMalformedOptions
	}
	var opts []Option
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOptions, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, ErrMalformedOptions
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOptions, err)
		}
		opts = append(opts, Option{Key: key, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOptions, err)
	}
	return opts, nil
}

// EncodeOptions serializes options in list form.
func EncodeOptions(opts []Option) string {
	if len(opts) == 0 {
		return ""
	}
	data, _ := json.Marshal(opts)
	return string(data)
}

// FormattedOptions returns the ordered option list. Non-choice questions and
// malformed option data both yield an empty list.
func (q Question) FormattedOptions() []Option {
	if q.Type != QuestionMultipleChoice && q.Type != QuestionTrueFalse {
		return nil
	}
	opts, err := ParseOptions(q.Options)
	if err != nil {
		return nil
	}
	return opts
}

// CheckAnswer compares a submitted answer with the correct answer, ignoring
// case and surrounding whitespace. Essay and fill-blank answers are never
// correct here; they need manual grading.
func (q Question) CheckAnswer(submitted string) bool {
	if !q.Type.Objective() {
		return false
	}
	want := strings.TrimSpace(q.CorrectAnswer)
	if want == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(submitted), want)
}

// Validate checks the authoring invariants of a question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("question text is required")
	}
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if q.Marks <= 0 {
		return errors.New("marks must be positive")
	}
	switch q.Type {
	case QuestionMultipleChoice:
		opts, err := ParseOptions(q.Options)
		if err != nil {
			return err
		}
		if len(opts) < 2 {
			return errors.New("multiple choice questions need at least two options")
		}
		for _, o := range opts {
			if strings.EqualFold(o.Key, strings.TrimSpace(q.CorrectAnswer)) {
				return nil
			}
		}
		return fmt.Errorf("correct answer %q is not an option key", q.CorrectAnswer)
	case QuestionTrueFalse:
		ca := strings.TrimSpace(q.CorrectAnswer)
		if !strings.EqualFold(ca, "True") && !strings.EqualFold(ca, "False") {
			return fmt.Errorf("true/false correct answer must be True or False, got %q", q.CorrectAnswer)
		}
	}
	return nil
}

// QuestionView is a question as presented to a student during an attempt.
type QuestionView struct {
	ID             int64        `json:"id"`
	Order          int          `json:"order"`
	Text           string       `json:"question_text"`
	Type           QuestionType `json:"type"`
	MarksAllocated int          `json:"marks_allocated"`
	TimeLimit      *int         `json:"time_limit,omitempty"`
	Options        []Option     `json:"options,omitempty"`
}
