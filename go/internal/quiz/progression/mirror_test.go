package progression

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
	"github.com/stretchr/testify/assert"
)

func TestMirrorPredictsAndReconciles(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)
	assert.Equal(t, 0, m.Countdown())

	id := uuid.New()
	m.Observe(&models.Game{ID: id, Status: models.GameStatusQuestion, Countdown: 20, Version: 4})
	clock.Advance(3500 * time.Millisecond)
	assert.Equal(t, 17, m.Countdown())

	// A fresher remote value wins over the local prediction even if it disagrees.
	m.Observe(&models.Game{ID: id, Status: models.GameStatusQuestion, Countdown: 18, Version: 5})
	assert.Equal(t, 18, m.Countdown())

	clock.Advance(time.Minute)
	assert.Equal(t, 0, m.Countdown())
}

func TestMirrorDoesNotTickUntimedStatuses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)
	prev := models.GameStatusQuestion
	m.Observe(&models.Game{Status: models.GameStatusPaused, PreviousStatus: &prev, Countdown: 9})

	clock.Advance(5 * time.Second)
	assert.Equal(t, 9, m.Countdown())
}

func TestMirrorListener(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)
	store := state.NewStore(state.State{})
	store.Subscribe(m.Listener())

	store.Dispatch(state.SetGame{Game: &models.Game{Status: models.GameStatusCountdown, Countdown: 5}})
	clock.Advance(2 * time.Second)
	g, ok := m.Game()
	assert.True(t, ok)
	assert.Equal(t, 3, g.Countdown)

	store.Dispatch(state.SetGame{Game: nil})
	_, ok = m.Game()
	assert.False(t, ok)
}

func TestMirrorIgnoresStaleImages(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMirror(clock)
	store := state.NewStore(state.State{})
	store.Subscribe(m.Listener())

	id := uuid.New()
	store.Dispatch(state.SetGame{Game: &models.Game{ID: id, Status: models.GameStatusQuestion, Countdown: 10, Version: 5}})
	clock.Advance(3 * time.Second)
	assert.Equal(t, 7, m.Countdown())

	store.Dispatch(state.SetGame{Game: &models.Game{ID: id, Status: models.GameStatusQuestion, Countdown: 11, Version: 4}})
	assert.Equal(t, 7, m.Countdown(), "older version")

	store.Dispatch(state.SetGame{Game: &models.Game{ID: id, Status: models.GameStatusQuestion, Countdown: 10, Version: 5}})
	assert.Equal(t, 7, m.Countdown(), "same version echoed again")

	other := uuid.New()
	store.Dispatch(state.SetGame{Game: &models.Game{ID: other, Status: models.GameStatusCountdown, Countdown: 5, Version: 1}})
	assert.Equal(t, 5, m.Countdown(), "another game replaces the prediction")
}
