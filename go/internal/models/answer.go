package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerAnswer is a player's single submission for one question.
// AnswerChosen is nil when the player did not answer before the timer ran out.
type PlayerAnswer struct {
	ID               uuid.UUID `json:"id"`
	GameID           uuid.UUID `json:"game_id"`
	PlayerID         uuid.UUID `json:"player_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	AnswerChosen     *string   `json:"answer_chosen,omitempty"`
	TimeTakenSeconds float64   `json:"time_taken_seconds"`
	IsCorrect        bool      `json:"is_correct"`
	ScoreAwarded     int       `json:"score_awarded"`
	CreatedAt        time.Time `json:"created_at"`
}
