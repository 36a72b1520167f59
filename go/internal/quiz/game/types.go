package game

import (
	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

// CreateGameRequest carries the quiz settings. Zero values fall back to the defaults.
type CreateGameRequest struct {
	NumberOfQuestions int               `json:"number_of_questions" validate:"omitempty,min=5,max=20"`
	Category          string            `json:"category" validate:"omitempty,max=64"`
	TieBreaker        models.TieBreaker `json:"tie_breaker" validate:"omitempty,oneof=time quick_question"`
}

func (r CreateGameRequest) config() models.QuizConfig {
	return models.QuizConfig{
		NumberOfQuestions: r.NumberOfQuestions,
		Category:          r.Category,
		TieBreaker:        r.TieBreaker,
	}.WithDefaults()
}

type JoinRequest struct {
	Name string `json:"name" validate:"required,max=40"`
	// SessionID identifies the device. When set, a second join to the same room
	// resumes the player it joined as before.
	SessionID string `json:"-"`
}

type AnswerRequest struct {
	PlayerID   uuid.UUID `json:"player_id" validate:"required"`
	QuestionID uuid.UUID `json:"question_id" validate:"required"`
	// Answer is nil when the timer ran out before the player chose.
	Answer           *string `json:"answer"`
	TimeTakenSeconds float64 `json:"time_taken_seconds"`
}

// JoinInfo is what the admin screen shows to invite players.
type JoinInfo struct {
	RoomCode string `json:"room_code"`
	URL      string `json:"url"`
}
