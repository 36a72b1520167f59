package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/scoring"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
)

const topPlayers = 5

// screen renders what a shared room display would show for s.
func screen(s state.State, countdown int) string {
	g := s.Game
	if g == nil {
		return "room closed"
	}

	var b strings.Builder
	switch g.Status {
	case models.GameStatusConfig:
		fmt.Fprintf(&b, "Join with code %s (%d players)", g.RoomCode, len(s.Players))
		for _, p := range s.Players {
			fmt.Fprintf(&b, "\n  %s%s", p.Name, offline(p))
		}
	case models.GameStatusWaiting:
		b.WriteString("Preparing questions...")
	case models.GameStatusCountdown:
		fmt.Fprintf(&b, "Starting in %d", countdown)
	case models.GameStatusQuestion:
		q, ok := s.CurrentQuestion()
		if !ok {
			b.WriteString("Loading question...")
			break
		}
		fmt.Fprintf(&b, "Question %d/%d [%ds]\n%s", g.CurrentQuestionIndex+1, g.ConfigNumberOfQuestions, countdown, q.Text)
		for i, opt := range q.Options {
			fmt.Fprintf(&b, "\n  %c) %s", 'A'+i, opt)
		}
		fmt.Fprintf(&b, "\n%d/%d answered", answered(s, q.ID), len(s.Players))
	case models.GameStatusRoundEnd:
		if g.CurrentCorrectAnswer != nil {
			fmt.Fprintf(&b, "Answer: %s\n", *g.CurrentCorrectAnswer)
		}
		writeRanking(&b, s.Players, topPlayers)
	case models.GameStatusPaused:
		b.WriteString("Paused")
	case models.GameStatusGameEnd:
		if w, ok := scoring.Winner(s.Players); ok {
			fmt.Fprintf(&b, "Winner: %s with %d points\n", w.Name, w.Score)
		}
		writeRanking(&b, s.Players, len(s.Players))
	}
	return b.String()
}

func writeRanking(b *strings.Builder, players []models.Player, limit int) {
	for i, r := range scoring.Rank(players) {
		if i == limit {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "%2d. %-20s %5d", r.Position, r.Player.Name, r.Player.Score)
	}
}

func answered(s state.State, questionID uuid.UUID) int {
	n := 0
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			n++
		}
	}
	return n
}

func offline(p models.Player) string {
	if p.IsOnline {
		return ""
	}
	return " (offline)"
}
