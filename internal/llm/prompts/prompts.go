package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/cbt/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

const maxAnswerRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict grades only precise and complete answers.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient rewards partial understanding.
	PromptLenient PromptVariant = "lenient"
)

var variants = []PromptVariant{PromptStrict, PromptStandard, PromptLenient}

var (
	loadOnce        sync.Once
	loadErr         error
	suggestTemplate map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if PromptVariant(v) == known {
			return true
		}
	}
	return false
}

// SuggestData holds template data for mark suggestion prompts.
type SuggestData struct {
	QuestionText   string
	QuestionType   model.QuestionType
	MaxMarks       string
	ExpectedAnswer string
	Explanation    string
	Answer         string
}

// Load parses the prompt templates from fsys. Only the first call has an
// effect; later calls return the first result.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		suggestTemplate = make(map[PromptVariant]*template.Template, len(variants))
		for _, v := range variants {
			name := "templates/suggest_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			suggestTemplate[v] = tmpl
		}
	})
	return loadErr
}

// LoadEmbedded parses the templates shipped with the binary.
func LoadEmbedded() error {
	return Load(templateFS)
}

// BuildSuggestPrompt renders the mark suggestion prompt for a student answer
// worth at most maxMarks.
func BuildSuggestPrompt(variant PromptVariant, q model.Question, answer string, maxMarks float64) (string, error) {
	if err := LoadEmbedded(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := suggestTemplate[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := SuggestData{
		QuestionText:   q.Text,
		QuestionType:   q.Type,
		MaxMarks:       strconv.FormatFloat(maxMarks, 'f', -1, 64),
		ExpectedAnswer: q.CorrectAnswer,
		Explanation:    q.Explanation,
		Answer:         sanitizeAnswer(answer),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeAnswer strips tags that could break out of the answer block and
// truncates very long answers.
func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
