// Package state holds the local view of one room and the reducer that evolves it.
package state

import (
	"slices"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

// State is the local, read-mostly copy of a room.
// Reduce never mutates a State it is given; slices are replaced, not edited.
type State struct {
	Game                 *models.Game
	Players              []models.Player
	Questions            []models.Question
	Answers              []models.PlayerAnswer
	IsAdminAuthenticated bool
	LocalPlayerID        *uuid.UUID
}

// Reduce applies a single action. It never fails: unknown actions, games
// carrying an unrecognised status and out-of-date game images leave the state as it was.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetGame:
		if a.Game == nil {
			s.Game = nil
			return s
		}
		if !a.Game.Status.Valid() {
			return s
		}
		// Row images carry a version; an older image of the same game arriving late is ignored.
		if s.Game != nil && s.Game.ID == a.Game.ID && a.Game.Version < s.Game.Version {
			return s
		}
		g := *a.Game
		s.Game = &g
	case SetPlayers:
		s.Players = slices.Clone(a.Players)
	case SetQuestions:
		s.Questions = sortQuestions(slices.Clone(a.Questions))
	case SetPlayerAnswers:
		s.Answers = slices.Clone(a.Answers)

	case AddPlayer:
		if indexOf(s.Players, a.Player.ID, playerID) >= 0 {
			return s
		}
		s.Players = append(slices.Clip(s.Players), a.Player)
	case UpdatePlayer:
		s.Players = upsert(s.Players, a.Player, playerID)
	case RemovePlayer:
		s.Players = remove(s.Players, a.PlayerID, playerID)

	case AddQuestion:
		if indexOf(s.Questions, a.Question.ID, questionID) >= 0 {
			return s
		}
		s.Questions = sortQuestions(append(slices.Clone(s.Questions), a.Question))
	case UpdateQuestion:
		s.Questions = sortQuestions(upsert(s.Questions, a.Question, questionID))
	case RemoveQuestion:
		s.Questions = remove(s.Questions, a.QuestionID, questionID)

	case AddPlayerAnswer:
		if indexOf(s.Answers, a.Answer.ID, answerID) >= 0 {
			return s
		}
		s.Answers = append(slices.Clip(s.Answers), a.Answer)
	case UpdatePlayerAnswer:
		s.Answers = upsert(s.Answers, a.Answer, answerID)
	case RemovePlayerAnswer:
		s.Answers = remove(s.Answers, a.AnswerID, answerID)

	case AdminLogin:
		s.IsAdminAuthenticated = true
	case SetLocalPlayerID:
		id := a.PlayerID
		s.LocalPlayerID = &id
	}
	return s
}

// CurrentQuestion returns the question at the game's current index.
func (s State) CurrentQuestion() (models.Question, bool) {
	if s.Game == nil {
		return models.Question{}, false
	}
	for _, q := range s.Questions {
		if q.OrderIndex == s.Game.CurrentQuestionIndex {
			return q, true
		}
	}
	return models.Question{}, false
}

// AnswerFor returns the answer a player submitted for a question, if any.
func (s State) AnswerFor(playerID, questionID uuid.UUID) (models.PlayerAnswer, bool) {
	for _, a := range s.Answers {
		if a.PlayerID == playerID && a.QuestionID == questionID {
			return a, true
		}
	}
	return models.PlayerAnswer{}, false
}

// Player looks up a player by id.
func (s State) Player(id uuid.UUID) (models.Player, bool) {
	if i := indexOf(s.Players, id, playerID); i >= 0 {
		return s.Players[i], true
	}
	return models.Player{}, false
}

func playerID(p models.Player) uuid.UUID { return p.ID }
func questionID(q models.Question) uuid.UUID { return q.ID }
func answerID(a models.PlayerAnswer) uuid.UUID { return a.ID }

func indexOf[T any](items []T, id uuid.UUID, key func(T) uuid.UUID) int {
	return slices.IndexFunc(items, func(item T) bool { return key(item) == id })
}

func upsert[T any](items []T, item T, key func(T) uuid.UUID) []T {
	i := indexOf(items, key(item), key)
	if i < 0 {
		return append(slices.Clip(items), item)
	}
	out := slices.Clone(items)
	out[i] = item
	return out
}

func remove[T any](items []T, id uuid.UUID, key func(T) uuid.UUID) []T {
	if indexOf(items, id, key) < 0 {
		return items
	}
	return slices.DeleteFunc(slices.Clone(items), func(item T) bool { return key(item) == id })
}

func sortQuestions(qs []models.Question) []models.Question {
	slices.SortStableFunc(qs, func(a, b models.Question) int { return a.OrderIndex - b.OrderIndex })
	return qs
}
