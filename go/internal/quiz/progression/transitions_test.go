package progression

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:            uuid.New(),
			Text:          "q",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: []string{"a", "b", "c", "d"}[i%4],
			OrderIndex:    i,
		}
	}
	return qs
}

func TestAdvanceCountdownToQuestion(t *testing.T) {
	g := models.Game{Status: models.GameStatusCountdown, Countdown: 1}

	upd, ok := Advance(g, questions(3))
	require.True(t, ok)
	assert.Equal(t, models.GameStatusCountdown, upd.Status)
	assert.Equal(t, 0, upd.Countdown)
	assert.False(t, upd.ClearAnswers)

	g = upd.Apply(g)
	upd, ok = Advance(g, questions(3))
	require.True(t, ok)
	assert.Equal(t, models.GameStatusQuestion, upd.Status)
	assert.Equal(t, models.QuestionSeconds, upd.Countdown)
	assert.True(t, upd.ClearAnswers)
	assert.Nil(t, upd.CurrentCorrectAnswer)
}

func TestAdvanceQuestionToRoundEndRecordsAnswer(t *testing.T) {
	qs := questions(3)
	g := models.Game{Status: models.GameStatusQuestion, Countdown: 0, CurrentQuestionIndex: 1}

	upd, ok := Advance(g, qs)
	require.True(t, ok)
	assert.Equal(t, models.GameStatusRoundEnd, upd.Status)
	assert.Equal(t, models.RoundEndSeconds, upd.Countdown)
	require.NotNil(t, upd.CurrentCorrectAnswer)
	assert.Equal(t, qs[1].CorrectAnswer, *upd.CurrentCorrectAnswer)
}

func TestAdvanceRoundEndNextQuestion(t *testing.T) {
	answer := "a"
	g := models.Game{Status: models.GameStatusRoundEnd, Countdown: 0, CurrentQuestionIndex: 0, CurrentCorrectAnswer: &answer}

	upd, ok := Advance(g, questions(3))
	require.True(t, ok)
	assert.Equal(t, models.GameStatusCountdown, upd.Status)
	assert.Equal(t, models.CountdownSeconds, upd.Countdown)
	assert.Equal(t, 1, upd.CurrentQuestionIndex)
	assert.True(t, upd.ClearAnswers)
	assert.Nil(t, upd.CurrentCorrectAnswer)
}

func TestAdvanceRoundEndLastQuestionEndsGame(t *testing.T) {
	g := models.Game{Status: models.GameStatusRoundEnd, Countdown: 0, CurrentQuestionIndex: 2}

	upd, ok := Advance(g, questions(3))
	require.True(t, ok)
	assert.Equal(t, models.GameStatusGameEnd, upd.Status)
	assert.Equal(t, 2, upd.CurrentQuestionIndex)
}

func TestAdvanceRoundEndKeepsAnswerWhileTicking(t *testing.T) {
	answer := "c"
	g := models.Game{Status: models.GameStatusRoundEnd, Countdown: 4, CurrentCorrectAnswer: &answer}

	upd, ok := Advance(g, questions(1))
	require.True(t, ok)
	assert.Equal(t, 3, upd.Countdown)
	require.NotNil(t, upd.CurrentCorrectAnswer)
	assert.Equal(t, "c", *upd.CurrentCorrectAnswer)
}

func TestAdvanceIgnoresUntimedStatuses(t *testing.T) {
	for _, s := range []models.GameStatus{
		models.GameStatusConfig, models.GameStatusWaiting, models.GameStatusPaused, models.GameStatusGameEnd,
	} {
		_, ok := Advance(models.Game{Status: s, Countdown: 3}, questions(2))
		assert.False(t, ok, s)
	}
}

func TestAdvanceGuardsOnSnapshot(t *testing.T) {
	g := models.Game{Status: models.GameStatusQuestion, Countdown: 7, CurrentQuestionIndex: 1}
	upd, _ := Advance(g, questions(2))
	assert.Equal(t, g.Progress(), upd.From)
}

func TestPauseResumeRestoresExactStatus(t *testing.T) {
	for _, s := range []models.GameStatus{
		models.GameStatusQuestion, models.GameStatusRoundEnd, models.GameStatusCountdown, models.GameStatusConfig,
	} {
		t.Run(string(s), func(t *testing.T) {
			g := models.Game{Status: s, Countdown: 9, CurrentQuestionIndex: 1}

			pause, err := Pause(g)
			require.NoError(t, err)
			paused := pause.Apply(g)
			assert.Equal(t, models.GameStatusPaused, paused.Status)
			assert.Equal(t, 9, paused.Countdown)

			resume, err := Resume(paused)
			require.NoError(t, err)
			resumed := resume.Apply(paused)
			assert.Equal(t, s, resumed.Status)
			assert.Equal(t, 9, resumed.Countdown)
			assert.Nil(t, resumed.PreviousStatus)
		})
	}
}

func TestPauseRejected(t *testing.T) {
	_, err := Pause(models.Game{Status: models.GameStatusGameEnd})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	prev := models.GameStatusQuestion
	_, err = Pause(models.Game{Status: models.GameStatusPaused, PreviousStatus: &prev})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResumeRejected(t *testing.T) {
	_, err := Resume(models.Game{Status: models.GameStatusQuestion})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Resume(models.Game{Status: models.GameStatusPaused})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	bogus := models.GameStatus("LOBBY")
	_, err = Resume(models.Game{Status: models.GameStatusPaused, PreviousStatus: &bogus})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStart(t *testing.T) {
	upd, err := Start(models.Game{Status: models.GameStatusConfig, CurrentQuestionIndex: 4}, 3)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCountdown, upd.Status)
	assert.Equal(t, models.CountdownSeconds, upd.Countdown)
	assert.Equal(t, 0, upd.CurrentQuestionIndex)
	assert.True(t, upd.ResetScores)

	_, err = Start(models.Game{Status: models.GameStatusWaiting}, 3)
	assert.NoError(t, err)

	_, err = Start(models.Game{Status: models.GameStatusConfig}, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Start(models.Game{Status: models.GameStatusQuestion}, 3)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPrepareAndRestore(t *testing.T) {
	g := models.Game{Status: models.GameStatusConfig}
	upd, err := Prepare(g)
	require.NoError(t, err)
	waiting := upd.Apply(g)
	assert.Equal(t, models.GameStatusWaiting, waiting.Status)

	back := Restore(waiting, models.GameStatusConfig)
	assert.Equal(t, models.GameStatusConfig, back.Status)
	assert.Equal(t, models.GameStatusWaiting, back.From.Status)

	_, err = Prepare(models.Game{Status: models.GameStatusQuestion})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEndFromAnyStatus(t *testing.T) {
	prev := models.GameStatusQuestion
	for _, g := range []models.Game{
		{Status: models.GameStatusConfig},
		{Status: models.GameStatusQuestion, Countdown: 12},
		{Status: models.GameStatusPaused, PreviousStatus: &prev},
	} {
		upd := End(g)
		assert.Equal(t, models.GameStatusGameEnd, upd.Status)
		assert.Equal(t, 0, upd.Countdown)
		assert.Nil(t, upd.PreviousStatus)
	}
}

func TestReset(t *testing.T) {
	answer := "x"
	upd := Reset(models.Game{Status: models.GameStatusGameEnd, CurrentQuestionIndex: 2, CurrentCorrectAnswer: &answer})
	assert.Equal(t, models.GameStatusConfig, upd.Status)
	assert.Equal(t, 0, upd.CurrentQuestionIndex)
	assert.Nil(t, upd.CurrentCorrectAnswer)
	assert.True(t, upd.ClearQuestions)
	assert.True(t, upd.ClearAnswers)
	assert.True(t, upd.ResetScores)
}
