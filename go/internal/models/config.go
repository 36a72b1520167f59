package models

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidConfig is returned for a quiz configuration outside the allowed ranges.
var ErrInvalidConfig = errors.New("invalid quiz config")

const (
	MinQuestions     = 5
	MaxQuestions     = 20
	DefaultQuestions = 10
)

// Categories the question generator is asked about.
var Categories = []string{"Tecnologia", "Ciência", "História", "Geografia", "Cultura Pop"}

// QuizConfig is what the admin chooses before starting a game.
type QuizConfig struct {
	NumberOfQuestions int        `json:"number_of_questions"`
	Category          string     `json:"category"`
	TieBreaker        TieBreaker `json:"tie_breaker"`
}

// DefaultQuizConfig is used for fields a request leaves empty.
func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		NumberOfQuestions: DefaultQuestions,
		Category:          Categories[0],
		TieBreaker:        TieBreakerTime,
	}
}

// WithDefaults fills zero fields from DefaultQuizConfig.
func (c QuizConfig) WithDefaults() QuizConfig {
	d := DefaultQuizConfig()
	if c.NumberOfQuestions == 0 {
		c.NumberOfQuestions = d.NumberOfQuestions
	}
	if c.Category == "" {
		c.Category = d.Category
	}
	if c.TieBreaker == "" {
		c.TieBreaker = d.TieBreaker
	}
	return c
}

func (c QuizConfig) Validate() error {
	if c.NumberOfQuestions < MinQuestions || c.NumberOfQuestions > MaxQuestions {
		return fmt.Errorf("%w: number_of_questions must be between %d and %d, got %d",
			ErrInvalidConfig, MinQuestions, MaxQuestions, c.NumberOfQuestions)
	}
	if !slices.Contains(Categories, c.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidConfig, c.Category)
	}
	if c.TieBreaker != TieBreakerTime && c.TieBreaker != TieBreakerQuickQuestion {
		return fmt.Errorf("%w: unknown tie breaker %q", ErrInvalidConfig, c.TieBreaker)
	}
	return nil
}

// Config returns the game's quiz configuration.
func (g Game) Config() QuizConfig {
	return QuizConfig{
		NumberOfQuestions: g.ConfigNumberOfQuestions,
		Category:          g.ConfigCategory,
		TieBreaker:        g.ConfigTieBreaker,
	}
}
