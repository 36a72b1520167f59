package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of choices on every question.
const OptionsPerQuestion = 4

var ErrInvalidQuestion = errors.New("invalid question")

// Question is one multiple-choice question in a game's play order.
type Question struct {
	ID            uuid.UUID `json:"id"`
	GameID        uuid.UUID `json:"game_id"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	OrderIndex    int       `json:"order_index"`
}

// GeneratedQuestion is a question as returned by a question source, before it belongs to a game.
type GeneratedQuestion struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Validate checks text is present, there are exactly four distinct options
// and the correct answer is one of them.
func (q GeneratedQuestion) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("%w: expected %d options, got %d", ErrInvalidQuestion, OptionsPerQuestion, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidQuestion, o)
		}
		seen[o] = struct{}{}
	}
	if _, ok := seen[q.CorrectAnswer]; !ok {
		return fmt.Errorf("%w: correct answer %q is not an option", ErrInvalidQuestion, q.CorrectAnswer)
	}
	return nil
}

// HasOption reports whether answer is one of the question's options.
func (q Question) HasOption(answer string) bool {
	for _, o := range q.Options {
		if o == answer {
			return true
		}
	}
	return false
}
