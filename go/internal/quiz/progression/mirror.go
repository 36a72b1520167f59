package progression

import (
	"sync"
	"time"

	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
)

// Mirror predicts what an observer should display between remote updates.
// The countdown it shows is only a redraw cue: every remote game image replaces it.
type Mirror struct {
	clock Clock

	mu         sync.RWMutex
	game       *models.Game
	receivedAt time.Time
}

func NewMirror(clock Clock) *Mirror {
	return &Mirror{clock: clock}
}

// Observe records a remote game image. Only a newer version of the same game,
// or a different game, restarts the prediction; a repeated or late image is ignored.
func (m *Mirror) Observe(g *models.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g == nil {
		m.game = nil
		return
	}
	if m.game != nil && m.game.ID == g.ID && g.Version <= m.game.Version {
		return
	}
	cp := *g
	m.game = &cp
	m.receivedAt = m.clock.Now()
}

// Listener returns a store listener that observes every game change.
func (m *Mirror) Listener() state.Listener {
	return func(s state.State, a state.Action) {
		if _, ok := a.(state.SetGame); ok {
			m.Observe(s.Game)
		}
	}
}

// Game returns the last remote game with its countdown predicted for now.
func (m *Mirror) Game() (models.Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.game == nil {
		return models.Game{}, false
	}
	g := *m.game
	if Timed(g.Status) {
		elapsed := int(m.clock.Now().Sub(m.receivedAt) / time.Second)
		g.Countdown = max(0, g.Countdown-elapsed)
	}
	return g, true
}

// Countdown is the predicted remaining seconds of the current phase.
func (m *Mirror) Countdown() int {
	g, ok := m.Game()
	if !ok {
		return 0
	}
	return g.Countdown
}
