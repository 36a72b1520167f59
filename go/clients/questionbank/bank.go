// Package questionbank serves questions from a fixed YAML bank. The server
// falls back to it when no OpenRouter key is configured.
package questionbank

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrNotEnough is returned when a category has fewer questions than asked for.
var ErrNotEnough = errors.New("not enough questions in bank")

//go:embed questions.yaml
var defaultBank []byte

type entry struct {
	Question string   `yaml:"question"`
	Options  []string `yaml:"options"`
	Answer   string   `yaml:"answer"`
}

type Bank struct {
	questions map[string][]models.GeneratedQuestion

	mu  sync.Mutex
	rnd *rand.Rand
}

// Default returns the bank shipped with the server.
func Default() (*Bank, error) {
	return Parse(defaultBank)
}

// Load reads a bank from a YAML file mapping category to questions.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	return Parse(data)
}

// Parse decodes a bank and drops questions that would not pass validation.
func Parse(data []byte) (*Bank, error) {
	var raw map[string][]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}

	questions := make(map[string][]models.GeneratedQuestion, len(raw))
	for category, entries := range raw {
		for _, e := range entries {
			q := models.GeneratedQuestion{Text: e.Question, Options: e.Options, CorrectAnswer: e.Answer}
			if err := q.Validate(); err != nil {
				log.Warn().Err(err).Str("category", category).Str("question", e.Question).Msg("skipping bank question")
				continue
			}
			questions[category] = append(questions[category], q)
		}
	}
	return New(questions, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))), nil
}

func New(questions map[string][]models.GeneratedQuestion, rnd *rand.Rand) *Bank {
	return &Bank{questions: questions, rnd: rnd}
}

// Categories lists the categories with at least one question.
func (b *Bank) Categories() []string {
	out := make([]string, 0, len(b.questions))
	for c := range b.questions {
		out = append(out, c)
	}
	return out
}

// GenerateQuestions picks n distinct questions of category in random order.
func (b *Bank) GenerateQuestions(ctx context.Context, category string, n int) ([]models.GeneratedQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := b.questions[category]
	if len(pool) < n {
		return nil, fmt.Errorf("%w: %q has %d, need %d", ErrNotEnough, category, len(pool), n)
	}

	b.mu.Lock()
	perm := b.rnd.Perm(len(pool))
	b.mu.Unlock()

	out := make([]models.GeneratedQuestion, n)
	for i := range out {
		out[i] = pool[perm[i]]
	}
	log.Debug().Str("category", category).Int("count", n).Msg("picked questions from bank")
	return out, nil
}
