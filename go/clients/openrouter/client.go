// Package openrouter asks an OpenRouter chat model for multiple-choice questions.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/quizcoletivo/go/clients"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMissingAPIKey is returned when no credential is configured.
	ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY not set")
	// ErrBadResponse is returned when the model reply is not the expected JSON.
	ErrBadResponse = errors.New("invalid response from OpenRouter")
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-3.5-turbo"

	systemPrompt = "You are a helpful assistant designed to generate quiz questions in a strict JSON format."
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Referer string // sent as HTTP-Referer
	Title   string // sent as X-Title
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Model:   DefaultModel,
		BaseURL: DefaultBaseURL,
		Timeout: 60 * time.Second,
	}
}

type Client struct {
	base  *clients.BaseClient
	model string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	base := clients.NewBaseClient(strings.TrimRight(cfg.BaseURL, "/"))
	base.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	base.SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		base.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		base.SetHeader("X-Title", cfg.Title)
	}
	if cfg.Timeout > 0 {
		base.SetTimeout(cfg.Timeout)
	}
	return &Client{base: base, model: cfg.Model}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string         `json:"model"`
	ResponseFormat responseFormat `json:"response_format"`
	Messages       []message      `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type questionSet struct {
	Questions []models.GeneratedQuestion `json:"questions"`
}

// GenerateQuestions returns the questions the model produced. It only checks
// the reply's shape; counting and validating each question is left to the caller.
func (c *Client) GenerateQuestions(ctx context.Context, category string, n int) ([]models.GeneratedQuestion, error) {
	body, err := json.Marshal(completionRequest{
		Model:          c.model,
		ResponseFormat: responseFormat{Type: "json_object"},
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(category, n)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	raw, err := c.base.Post(ctx, "/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("OpenRouter API request failed: %w", err)
	}

	var resp completionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: no message content", ErrBadResponse)
	}

	var set questionSet
	if err := json.Unmarshal([]byte(stripFence(resp.Choices[0].Message.Content)), &set); err != nil {
		return nil, fmt.Errorf("%w: content is not JSON: %v", ErrBadResponse, err)
	}
	if set.Questions == nil {
		return nil, fmt.Errorf("%w: missing questions array", ErrBadResponse)
	}

	log.Info().
		Str("category", category).
		Int("requested", n).
		Int("received", len(set.Questions)).
		Dur("took", time.Since(start)).
		Msg("generated questions")
	return set.Questions, nil
}

// Prompt is the user message asking for n questions about category.
func Prompt(category string, n int) string {
	return fmt.Sprintf(`Generate exactly %d high-quality, challenging, and distinct multiple-choice quiz questions about the topic: "%s".

**Strict JSON Output Format:**
You must respond with ONLY a valid JSON object. Do not include any text, markdown, or explanations before or after the JSON object.
The JSON object must have a single key "questions", which is an array of question objects.

Each question object must have the following properties:
- "question": (string) The text of the question.
- "options": (array of 4 strings) The possible answers.
- "correctAnswer": (string) The correct answer, which must be an exact match to one of the items in the "options" array.

Example format:
{
  "questions": [
    {
      "question": "What is the capital of France?",
      "options": ["Berlin", "Madrid", "Paris", "Lisbon"],
      "correctAnswer": "Paris"
    }
  ]
}`, n, category)
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
