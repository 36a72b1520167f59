package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Store is the local state the controller reads snapshots from and writes confirmed rows back into.
type Store interface {
	State() state.State
	Dispatch(a state.Action) state.State
}

// GameWriter applies a guarded update and returns the row as written.
// It returns models.ErrStaleState when the row no longer matches update.From.
type GameWriter interface {
	ApplyGameUpdate(ctx context.Context, gameID uuid.UUID, update models.GameUpdate) (*models.Game, error)
}

type ControllerConfig struct {
	TickInterval time.Duration
	// Authoritative controllers write transitions. Others only evaluate them.
	Authoritative bool
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		TickInterval:  time.Second,
		Authoritative: true,
	}
}

// Controller runs the one-second tick for a single game.
type Controller struct {
	store  Store
	writer GameWriter
	clock  Clock
	cfg    ControllerConfig
}

// NewController creates a controller on the real clock.
func NewController(store Store, writer GameWriter, cfg ControllerConfig) *Controller {
	return NewControllerWithClock(store, writer, cfg, clockwork.NewRealClock())
}

func NewControllerWithClock(store Store, writer GameWriter, cfg ControllerConfig, clock Clock) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Controller{
		store:  store,
		writer: writer,
		clock:  clock,
		cfg:    cfg,
	}
}

// Run ticks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	log.Info().
		Dur("tick_interval", c.cfg.TickInterval).
		Bool("authoritative", c.cfg.Authoritative).
		Msg("progression controller started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("progression controller stopping")
			return nil
		case <-ticker.Chan():
			if _, err := c.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("progression tick failed")
			}
		}
	}
}

// Tick evaluates the latest snapshot once. A decrement that reaches zero is
// followed immediately by the phase change it unlocks. It returns the game as
// it stands after the tick.
func (c *Controller) Tick(ctx context.Context) (*models.Game, error) {
	snap := c.store.State()
	if snap.Game == nil {
		return nil, nil
	}

	game, err := c.step(ctx, *snap.Game, snap.Questions)
	if err != nil || game == nil {
		return game, err
	}
	if Timed(game.Status) && game.Countdown == 0 {
		return c.step(ctx, *game, snap.Questions)
	}
	return game, nil
}

func (c *Controller) step(ctx context.Context, g models.Game, questions []models.Question) (*models.Game, error) {
	upd, ok := Advance(g, questions)
	if !ok {
		return &g, nil
	}
	if !c.cfg.Authoritative {
		next := upd.Apply(g)
		return &next, nil
	}

	written, err := c.writer.ApplyGameUpdate(ctx, g.ID, upd)
	if errors.Is(err, models.ErrStaleState) {
		// Someone else moved the game on; the next snapshot reconciles us.
		log.Debug().
			Str("game_id", g.ID.String()).
			Str("status", string(g.Status)).
			Int("countdown", g.Countdown).
			Msg("skipped stale progression step")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply progression step: %w", err)
	}

	c.store.Dispatch(state.SetGame{Game: written})
	if written.Status != g.Status {
		log.Info().
			Str("game_id", g.ID.String()).
			Str("from", string(g.Status)).
			Str("to", string(written.Status)).
			Int("question_index", written.CurrentQuestionIndex).
			Msg("game advanced")
	}
	return written, nil
}
