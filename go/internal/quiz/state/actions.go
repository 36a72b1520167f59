package state

import (
	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

// Action is one input to Reduce. Actions come from local gestures or from
// translated change notifications.
type Action interface {
	actionName() string
}

// SetGame replaces the game. A nil Game means the game was deleted or ended remotely.
type SetGame struct{ Game *models.Game }

// SetPlayers replaces the whole roster.
type SetPlayers struct{ Players []models.Player }

// SetQuestions replaces the question list.
type SetQuestions struct{ Questions []models.Question }

// SetPlayerAnswers replaces the answer list.
type SetPlayerAnswers struct{ Answers []models.PlayerAnswer }

// AddPlayer appends a player unless one with the same id is present.
type AddPlayer struct{ Player models.Player }

// UpdatePlayer replaces the player with the same id, inserting it if absent.
type UpdatePlayer struct{ Player models.Player }

// RemovePlayer drops the player with the given id.
type RemovePlayer struct{ PlayerID uuid.UUID }

type AddQuestion struct{ Question models.Question }

type UpdateQuestion struct{ Question models.Question }

type RemoveQuestion struct{ QuestionID uuid.UUID }

type AddPlayerAnswer struct{ Answer models.PlayerAnswer }

type UpdatePlayerAnswer struct{ Answer models.PlayerAnswer }

type RemovePlayerAnswer struct{ AnswerID uuid.UUID }

// AdminLogin marks this instance as driven by an authenticated admin.
type AdminLogin struct{}

// SetLocalPlayerID records which player this instance is playing as.
type SetLocalPlayerID struct{ PlayerID uuid.UUID }

func (SetGame) actionName() string { return "SetGame" }
func (SetPlayers) actionName() string { return "SetPlayers" }
func (SetQuestions) actionName() string { return "SetQuestions" }
func (SetPlayerAnswers) actionName() string { return "SetPlayerAnswers" }
func (AddPlayer) actionName() string { return "AddPlayer" }
func (UpdatePlayer) actionName() string { return "UpdatePlayer" }
func (RemovePlayer) actionName() string { return "RemovePlayer" }
func (AddQuestion) actionName() string { return "AddQuestion" }
func (UpdateQuestion) actionName() string { return "UpdateQuestion" }
func (RemoveQuestion) actionName() string { return "RemoveQuestion" }
func (AddPlayerAnswer) actionName() string { return "AddPlayerAnswer" }
func (UpdatePlayerAnswer) actionName() string { return "UpdatePlayerAnswer" }
func (RemovePlayerAnswer) actionName() string { return "RemovePlayerAnswer" }
func (AdminLogin) actionName() string { return "AdminLogin" }
func (SetLocalPlayerID) actionName() string { return "SetLocalPlayerID" }

// Name returns a printable action name for logging.
func Name(a Action) string {
	if a == nil {
		return "<nil>"
	}
	return a.actionName()
}
