package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
)

var (
	// ErrSynchronization is returned when the bulk fetch of a room fails.
	ErrSynchronization = errors.New("synchronization failed")
	// ErrUnknownChange is returned for a change on an unknown collection or with an unknown op.
	ErrUnknownChange = errors.New("unknown change")
)

// Collection names a watched table.
type Collection string

const (
	CollectionGames     Collection = "games"
	CollectionPlayers   Collection = "players"
	CollectionQuestions Collection = "questions"
	CollectionAnswers   Collection = "player_answers"
)

// Collections lists every collection a room subscribes to.
var Collections = []Collection{CollectionGames, CollectionPlayers, CollectionQuestions, CollectionAnswers}

func (c Collection) Valid() bool {
	switch c {
	case CollectionGames, CollectionPlayers, CollectionQuestions, CollectionAnswers:
		return true
	}
	return false
}

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change is one row-level notification with its old and new row images.
type Change struct {
	ID         int64           `json:"change_id"`
	GameID     uuid.UUID       `json:"game_id"`
	Collection Collection      `json:"collection"`
	Op         Op              `json:"op"`
	Old        json.RawMessage `json:"old,omitempty"`
	New        json.RawMessage `json:"new,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Fetcher loads everything a room needs in one consistent read.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, roomCode string) (*models.Snapshot, error)
}

// Subscription is an ordered stream of changes for one collection of one game.
type Subscription interface {
	Changes() <-chan Change
	Close() error
}

// ChangeFeed opens per-collection subscriptions. Reconnects fires after the
// transport recovered from a loss, meaning changes may have been missed.
type ChangeFeed interface {
	Subscribe(ctx context.Context, gameID uuid.UUID, collection Collection) (Subscription, error)
	Reconnects() <-chan struct{}
}
