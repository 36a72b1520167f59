package state

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestStoreDispatchNotifiesSubscribers(t *testing.T) {
	store := NewStore(State{})

	var got []string
	unsubscribe := store.Subscribe(func(s State, a Action) {
		got = append(got, Name(a))
	})

	store.Dispatch(AddPlayer{Player: models.Player{ID: uuid.New()}})
	store.Dispatch(AdminLogin{})
	unsubscribe()
	store.Dispatch(AdminLogin{})

	assert.Equal(t, []string{"AddPlayer", "AdminLogin"}, got)
	assert.Len(t, store.State().Players, 1)
	assert.True(t, store.State().IsAdminAuthenticated)
}

func TestStoreDispatchAll(t *testing.T) {
	store := NewStore(State{})
	var seen int
	store.Subscribe(func(State, Action) { seen++ })

	g := &models.Game{ID: uuid.New(), Status: models.GameStatusConfig}
	final := store.DispatchAll(
		SetGame{Game: g},
		SetPlayers{Players: []models.Player{{ID: uuid.New()}, {ID: uuid.New()}}},
		SetQuestions{},
		SetPlayerAnswers{},
	)

	assert.Equal(t, 4, seen)
	assert.Equal(t, g.ID, final.Game.ID)
	assert.Len(t, store.State().Players, 2)
}

func TestStoreConcurrentDispatch(t *testing.T) {
	store := NewStore(State{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Dispatch(AddPlayer{Player: models.Player{ID: uuid.New()}})
		}()
	}
	wg.Wait()
	assert.Len(t, store.State().Players, 50)
}
