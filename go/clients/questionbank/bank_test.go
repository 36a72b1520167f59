package questionbank

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBankCoversEveryCategory(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	for _, c := range models.Categories {
		qs, err := b.GenerateQuestions(context.Background(), c, models.DefaultQuestions)
		require.NoError(t, err, c)
		assert.Len(t, qs, models.DefaultQuestions)
		for _, q := range qs {
			assert.NoError(t, q.Validate())
		}
	}
}

func TestGenerateQuestionsDistinct(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	b.rnd = rand.New(rand.NewPCG(1, 2))

	qs, err := b.GenerateQuestions(context.Background(), "Geografia", 7)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, q := range qs {
		assert.False(t, seen[q.Text], q.Text)
		seen[q.Text] = true
	}
}

func TestGenerateQuestionsNotEnough(t *testing.T) {
	b := New(map[string][]models.GeneratedQuestion{}, rand.New(rand.NewPCG(1, 2)))
	_, err := b.GenerateQuestions(context.Background(), "Geografia", 5)
	assert.ErrorIs(t, err, ErrNotEnough)
}

func TestLoadSkipsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
Geografia:
  - question: Capital da Itália?
    options: [Roma, Milão, Turim, Nápoles]
    answer: Roma
  - question: Três opções só
    options: [A, B, C]
    answer: A
  - question: Resposta fora
    options: [A, B, C, D]
    answer: E
`), 0o600))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Geografia"}, b.Categories())
	_, err = b.GenerateQuestions(context.Background(), "Geografia", 2)
	assert.ErrorIs(t, err, ErrNotEnough)
}

func TestGenerateQuestionsHonoursContext(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.GenerateQuestions(ctx, "Geografia", 5)
	assert.ErrorIs(t, err, context.Canceled)
}
