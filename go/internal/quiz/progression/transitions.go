// Package progression drives a game through countdown, question and reveal phases.
package progression

import (
	"errors"
	"fmt"

	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

var ErrInvalidTransition = errors.New("invalid transition")

// base carries every progression field over unchanged.
func base(g models.Game) models.GameUpdate {
	return models.GameUpdate{
		From:                 g.Progress(),
		Status:               g.Status,
		PreviousStatus:       g.PreviousStatus,
		Countdown:            g.Countdown,
		CurrentQuestionIndex: g.CurrentQuestionIndex,
		CurrentCorrectAnswer: g.CurrentCorrectAnswer,
	}
}

// Timed reports whether the status counts down on its own.
func Timed(s models.GameStatus) bool {
	return s == models.GameStatusCountdown || s == models.GameStatusQuestion || s == models.GameStatusRoundEnd
}

// Advance computes the automatic step for one tick. A positive countdown is
// decremented; a zero countdown moves the game into its next phase.
// Statuses that do not count down yield no update.
func Advance(g models.Game, questions []models.Question) (models.GameUpdate, bool) {
	if !Timed(g.Status) {
		return models.GameUpdate{}, false
	}

	upd := base(g)
	if g.Countdown > 0 {
		upd.Countdown = g.Countdown - 1
		return upd, true
	}

	switch g.Status {
	case models.GameStatusCountdown:
		upd.Status = models.GameStatusQuestion
		upd.Countdown = models.QuestionSeconds
		upd.CurrentCorrectAnswer = nil
		upd.ClearAnswers = true

	case models.GameStatusQuestion:
		upd.Status = models.GameStatusRoundEnd
		upd.Countdown = models.RoundEndSeconds
		upd.CurrentCorrectAnswer = nil
		if q, ok := questionAt(questions, g.CurrentQuestionIndex); ok {
			answer := q.CorrectAnswer
			upd.CurrentCorrectAnswer = &answer
		}

	case models.GameStatusRoundEnd:
		if g.CurrentQuestionIndex+1 < len(questions) {
			upd.Status = models.GameStatusCountdown
			upd.Countdown = models.CountdownSeconds
			upd.CurrentQuestionIndex = g.CurrentQuestionIndex + 1
			upd.CurrentCorrectAnswer = nil
			upd.ClearAnswers = true
		} else {
			upd.Status = models.GameStatusGameEnd
			upd.Countdown = 0
		}
	}
	return upd, true
}

// Prepare marks a configured game as getting ready while its questions are produced.
func Prepare(g models.Game) (models.GameUpdate, error) {
	if g.Status != models.GameStatusConfig && g.Status != models.GameStatusWaiting {
		return models.GameUpdate{}, fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, g.Status)
	}
	upd := base(g)
	upd.Status = models.GameStatusWaiting
	upd.Countdown = 0
	return upd, nil
}

// Restore puts a game back into status, undoing an optimistic write.
func Restore(g models.Game, status models.GameStatus) models.GameUpdate {
	upd := base(g)
	upd.Status = status
	return upd
}

// Start opens the first countdown once questionCount questions are ready.
func Start(g models.Game, questionCount int) (models.GameUpdate, error) {
	if g.Status != models.GameStatusConfig && g.Status != models.GameStatusWaiting {
		return models.GameUpdate{}, fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, g.Status)
	}
	if questionCount <= 0 {
		return models.GameUpdate{}, fmt.Errorf("%w: no questions", ErrInvalidTransition)
	}
	return models.GameUpdate{
		From:                 g.Progress(),
		Status:               models.GameStatusCountdown,
		Countdown:            models.CountdownSeconds,
		CurrentQuestionIndex: 0,
		ClearAnswers:         true,
		ResetScores:          true,
	}, nil
}

// Pause freezes the game and remembers the status it interrupted.
func Pause(g models.Game) (models.GameUpdate, error) {
	if g.Status == models.GameStatusGameEnd || g.Status == models.GameStatusPaused {
		return models.GameUpdate{}, fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, g.Status)
	}
	upd := base(g)
	prev := g.Status
	upd.Status = models.GameStatusPaused
	upd.PreviousStatus = &prev
	return upd, nil
}

// Resume restores exactly the status that was paused.
func Resume(g models.Game) (models.GameUpdate, error) {
	if g.Status != models.GameStatusPaused {
		return models.GameUpdate{}, fmt.Errorf("%w: game is not paused", ErrInvalidTransition)
	}
	if g.PreviousStatus == nil || !g.PreviousStatus.Valid() || *g.PreviousStatus == models.GameStatusPaused {
		return models.GameUpdate{}, fmt.Errorf("%w: no status to resume to", ErrInvalidTransition)
	}
	upd := base(g)
	upd.Status = *g.PreviousStatus
	upd.PreviousStatus = nil
	return upd, nil
}

// End finishes the game from any status.
func End(g models.Game) models.GameUpdate {
	upd := base(g)
	upd.Status = models.GameStatusGameEnd
	upd.PreviousStatus = nil
	upd.Countdown = 0
	return upd
}

// Reset returns the room to CONFIG, keeping players but zeroing their scores
// and dropping questions and answers.
func Reset(g models.Game) models.GameUpdate {
	return models.GameUpdate{
		From:           g.Progress(),
		Status:         models.GameStatusConfig,
		ClearAnswers:   true,
		ClearQuestions: true,
		ResetScores:    true,
	}
}

func questionAt(questions []models.Question, index int) (models.Question, bool) {
	for _, q := range questions {
		if q.OrderIndex == index {
			return q, true
		}
	}
	return models.Question{}, false
}
