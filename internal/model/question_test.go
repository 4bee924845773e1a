package model

import (
	"errors"
	"testing"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKeys []string
		wantErr  bool
	}{
		{"empty", "", nil, false},
		{"null", "null", nil, false},
		{"object keeps document order", `{"C":"three","A":"one","B":"two"}`, []string{"C", "A", "B"}, false},
		{"list", `[{"key":"B","text":"two"},{"key":"A","text":"one"}]`, []string{"B", "A"}, false},
		{"malformed object", `{"A":`, nil, true},
		{"scalar", `42`, nil, true},
		{"non string value", `{"A":1}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseOptions(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedOptions) {
					t.Fatalf("expected ErrMalformedOptions, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOptions: %v", err)
			}
			if len(opts) != len(tt.wantKeys) {
				t.Fatalf("expected %d options, got %d", len(tt.wantKeys), len(opts))
			}
			for i, k := range tt.wantKeys {
				if opts[i].Key != k {
					t.Errorf("option %d: expected key %q, got %q", i, k, opts[i].Key)
				}
			}
		})
	}
}

func TestFormattedOptions(t *testing.T) {
	tests := []struct {
		name  string
		q     Question
		wantN int
	}{
		{"multiple choice", Question{Type: QuestionMultipleChoice, Options: `{"A":"x","B":"y"}`}, 2},
		{"true false", Question{Type: QuestionTrueFalse, Options: `{"True":"True","False":"False"}`}, 2},
		{"essay ignores options", Question{Type: QuestionEssay, Options: `{"A":"x"}`}, 0},
		{"malformed yields empty", Question{Type: QuestionMultipleChoice, Options: `{oops`}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.FormattedOptions(); len(got) != tt.wantN {
				t.Errorf("expected %d options, got %d", tt.wantN, len(got))
			}
		})
	}
}

func TestCheckAnswer(t *testing.T) {
	mc := Question{Type: QuestionMultipleChoice, CorrectAnswer: "B"}
	tf := Question{Type: QuestionTrueFalse, CorrectAnswer: "True"}
	essay := Question{Type: QuestionEssay, CorrectAnswer: "anything"}

	tests := []struct {
		name string
		q    Question
		in   string
		want bool
	}{
		{"exact", mc, "B", true},
		{"case insensitive", mc, "b", true},
		{"whitespace", mc, "  B\n", true},
		{"wrong", mc, "A", false},
		{"empty", mc, "", false},
		{"true false lower", tf, "true", true},
		{"true false wrong", tf, "False", false},
		{"essay never auto correct", essay, "anything", false},
		{"missing key", Question{Type: QuestionMultipleChoice}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.CheckAnswer(tt.in); got != tt.want {
				t.Errorf("CheckAnswer(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"valid mc", Question{Text: "Q", Type: QuestionMultipleChoice, Marks: 1, Options: `{"A":"x","B":"y"}`, CorrectAnswer: "A"}, false},
		{"mc answer not a key", Question{Text: "Q", Type: QuestionMultipleChoice, Marks: 1, Options: `{"A":"x","B":"y"}`, CorrectAnswer: "C"}, true},
		{"mc single option", Question{Text: "Q", Type: QuestionMultipleChoice, Marks: 1, Options: `{"A":"x"}`, CorrectAnswer: "A"}, true},
		{"valid tf", Question{Text: "Q", Type: QuestionTrueFalse, Marks: 1, CorrectAnswer: "False"}, false},
		{"tf bad answer", Question{Text: "Q", Type: QuestionTrueFalse, Marks: 1, CorrectAnswer: "Yes"}, true},
		{"valid essay", Question{Text: "Q", Type: QuestionEssay, Marks: 5}, false},
		{"no text", Question{Type: QuestionEssay, Marks: 5}, true},
		{"zero marks", Question{Text: "Q", Type: QuestionEssay}, true},
		{"unknown type", Question{Text: "Q", Type: "matching", Marks: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
