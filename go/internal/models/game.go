package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the phase a game is in.
type GameStatus string

const (
	GameStatusConfig    GameStatus = "CONFIG"
	GameStatusWaiting   GameStatus = "WAITING"
	GameStatusCountdown GameStatus = "COUNTDOWN"
	GameStatusQuestion  GameStatus = "QUESTION"
	GameStatusRoundEnd  GameStatus = "ROUND_END"
	GameStatusPaused    GameStatus = "PAUSED"
	GameStatusGameEnd   GameStatus = "GAME_END"
)

var (
	// ErrUnknownStatus is returned when a status value is not one of the known phases.
	ErrUnknownStatus = errors.New("unknown game status")
	// ErrStaleState is returned when a guarded game update finds the row has already moved on.
	ErrStaleState = errors.New("game state changed since update was computed")
)

// Valid reports whether s is one of the seven known statuses.
func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusConfig, GameStatusWaiting, GameStatusCountdown, GameStatusQuestion,
		GameStatusRoundEnd, GameStatusPaused, GameStatusGameEnd:
		return true
	default:
		return false
	}
}

// ParseGameStatus converts a raw store value into a GameStatus.
func ParseGameStatus(raw string) (GameStatus, error) {
	s := GameStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// TieBreaker names the configured tie-break mode for equal scores.
type TieBreaker string

const (
	TieBreakerTime          TieBreaker = "time"
	TieBreakerQuickQuestion TieBreaker = "quick_question"
)

// Phase durations in seconds.
const (
	CountdownSeconds = 5
	QuestionSeconds  = 20
	RoundEndSeconds  = 5
)

// Game represents one quiz room.
type Game struct {
	ID                      uuid.UUID   `json:"id"`
	RoomCode                string      `json:"room_code"`
	Status                  GameStatus  `json:"status"`
	PreviousStatus          *GameStatus `json:"previous_status,omitempty"`
	CurrentQuestionIndex    int         `json:"current_question_index"`
	Countdown               int         `json:"countdown"`
	CurrentCorrectAnswer    *string     `json:"current_correct_answer,omitempty"`
	ConfigNumberOfQuestions int         `json:"config_number_of_questions"`
	ConfigCategory          string      `json:"config_category"`
	ConfigTieBreaker        TieBreaker  `json:"config_tie_breaker"`
	AdminID                 *uuid.UUID  `json:"admin_id,omitempty"`
	Version                 int64       `json:"version"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

// Progress returns the fields a compare-and-set write is guarded by.
func (g Game) Progress() GameProgress {
	return GameProgress{
		Status:               g.Status,
		Countdown:            g.Countdown,
		CurrentQuestionIndex: g.CurrentQuestionIndex,
	}
}

// GameProgress is the (status, countdown, index) triple a state-advancing write was computed from.
type GameProgress struct {
	Status               GameStatus `json:"status"`
	Countdown            int        `json:"countdown"`
	CurrentQuestionIndex int        `json:"current_question_index"`
}

// GameUpdate is a complete set of progression fields written as one row update.
type GameUpdate struct {
	From GameProgress

	Status               GameStatus
	PreviousStatus       *GameStatus
	Countdown            int
	CurrentQuestionIndex int
	CurrentCorrectAnswer *string

	// Side effects applied in the same transaction.
	ClearAnswers   bool
	ClearQuestions bool
	ResetScores    bool
}

// Apply returns g with the update's fields written over it.
func (u GameUpdate) Apply(g Game) Game {
	g.Status = u.Status
	g.PreviousStatus = u.PreviousStatus
	g.Countdown = u.Countdown
	g.CurrentQuestionIndex = u.CurrentQuestionIndex
	g.CurrentCorrectAnswer = u.CurrentCorrectAnswer
	return g
}
