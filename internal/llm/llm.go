// Package llm suggests marks for subjective answers through an
// OpenAI-compatible chat completion API. Suggestions are advisory: a
// teacher applies them through manual grading.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/cbt/internal/llm/prompts"
	"github.com/pavelanni/cbt/internal/model"
)

// ErrNotSubjective is returned when asked to grade an objective question.
var ErrNotSubjective = errors.New("only essay and fill-in-the-blank answers can be suggested")

// Suggestion is the assistant's proposed grade for one answer.
type Suggestion struct {
	Marks     float64 `json:"marks"`
	MaxMarks  float64 `json:"max_marks"`
	IsCorrect bool    `json:"is_correct"`
	Feedback  string  `json:"feedback"`
	Variant   string  `json:"variant"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client using the given prompt variant.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	if err := prompts.LoadEmbedded(); err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptVariant(variant),
	}, nil
}

// Ping checks that the endpoint answers a model listing.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// SuggestGrade asks the model for a mark for answer, out of maxMarks.
func (c *Client) SuggestGrade(ctx context.Context, q model.Question, answer string, maxMarks float64) (*Suggestion, error) {
	if q.Type != model.QuestionEssay && q.Type != model.QuestionFillBlank {
		return nil, ErrNotSubjective
	}
	prompt, err := prompts.BuildSuggestPrompt(c.variant, q, answer, maxMarks)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", q.ID, "raw", raw)

	s, err := parseSuggestion(raw, maxMarks)
	if err != nil {
		return nil, err
	}
	s.Variant = string(c.variant)
	return s, nil
}

// parseSuggestion decodes the model output and clamps the mark to [0, maxMarks].
func parseSuggestion(raw string, maxMarks float64) (*Suggestion, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	if math.IsNaN(s.Marks) || math.IsInf(s.Marks, 0) {
		s.Marks = 0
	}
	s.Marks = math.Max(0, math.Min(maxMarks, s.Marks))
	s.MaxMarks = maxMarks
	s.Feedback = strings.TrimSpace(s.Feedback)
	return &s, nil
}
