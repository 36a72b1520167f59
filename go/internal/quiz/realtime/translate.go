package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
)

// Translate turns one change into exactly one reducer action.
// A game row with an unrecognised status yields an error wrapping models.ErrUnknownStatus.
func Translate(c Change) (state.Action, error) {
	switch c.Collection {
	case CollectionGames:
		if c.Op == OpDelete {
			return state.SetGame{Game: nil}, nil
		}
		var g models.Game
		if err := decodeRow(c, &g); err != nil {
			return nil, err
		}
		if _, err := models.ParseGameStatus(string(g.Status)); err != nil {
			return nil, err
		}
		return state.SetGame{Game: &g}, nil

	case CollectionPlayers:
		if c.Op == OpDelete {
			id, err := deletedID(c)
			if err != nil {
				return nil, err
			}
			return state.RemovePlayer{PlayerID: id}, nil
		}
		var p models.Player
		if err := decodeRow(c, &p); err != nil {
			return nil, err
		}
		if c.Op == OpInsert {
			return state.AddPlayer{Player: p}, nil
		}
		return state.UpdatePlayer{Player: p}, nil

	case CollectionQuestions:
		if c.Op == OpDelete {
			id, err := deletedID(c)
			if err != nil {
				return nil, err
			}
			return state.RemoveQuestion{QuestionID: id}, nil
		}
		var q models.Question
		if err := decodeRow(c, &q); err != nil {
			return nil, err
		}
		if c.Op == OpInsert {
			return state.AddQuestion{Question: q}, nil
		}
		return state.UpdateQuestion{Question: q}, nil

	case CollectionAnswers:
		if c.Op == OpDelete {
			id, err := deletedID(c)
			if err != nil {
				return nil, err
			}
			return state.RemovePlayerAnswer{AnswerID: id}, nil
		}
		var a models.PlayerAnswer
		if err := decodeRow(c, &a); err != nil {
			return nil, err
		}
		if c.Op == OpInsert {
			return state.AddPlayerAnswer{Answer: a}, nil
		}
		return state.UpdatePlayerAnswer{Answer: a}, nil
	}
	return nil, fmt.Errorf("%w: collection %q", ErrUnknownChange, c.Collection)
}

func decodeRow(c Change, dst any) error {
	if c.Op != OpInsert && c.Op != OpUpdate {
		return fmt.Errorf("%w: op %q", ErrUnknownChange, c.Op)
	}
	if len(c.New) == 0 {
		return fmt.Errorf("%w: %s %s without new row", ErrUnknownChange, c.Op, c.Collection)
	}
	if err := json.Unmarshal(c.New, dst); err != nil {
		return fmt.Errorf("failed to decode %s row: %w", c.Collection, err)
	}
	return nil
}

func deletedID(c Change) (uuid.UUID, error) {
	var row struct {
		ID uuid.UUID `json:"id"`
	}
	if len(c.Old) == 0 {
		return uuid.Nil, fmt.Errorf("%w: delete on %s without old row", ErrUnknownChange, c.Collection)
	}
	if err := json.Unmarshal(c.Old, &row); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode deleted %s row: %w", c.Collection, err)
	}
	return row.ID, nil
}
