// Package realtime keeps a local state.Store in step with a room's rows:
// one bulk fetch, then per-collection change streams applied in arrival order.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
	"github.com/rs/zerolog/log"
)

// Dispatcher is the part of state.Store the adapter writes into.
type Dispatcher interface {
	Dispatch(a state.Action) state.State
	DispatchAll(actions ...state.Action) state.State
}

// Adapter binds one room to one store. It is started once and closed once;
// following another room means closing this adapter and starting a new one.
type Adapter struct {
	roomCode string
	fetcher  Fetcher
	feed     ChangeFeed
	store    Dispatcher

	mu      sync.Mutex
	gameID  uuid.UUID
	subs    map[Collection]Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewAdapter(roomCode string, fetcher Fetcher, feed ChangeFeed, store Dispatcher) *Adapter {
	return &Adapter{
		roomCode: roomCode,
		fetcher:  fetcher,
		feed:     feed,
		store:    store,
		subs:     make(map[Collection]Subscription, len(Collections)),
	}
}

// Start locates the room, opens its subscriptions, then applies a fresh read
// and begins streaming changes. A failed fetch leaves the store untouched.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("adapter for room %s already started", a.roomCode)
	}
	a.started = true
	a.mu.Unlock()

	located, err := a.fetch(ctx)
	if err != nil {
		return err
	}
	a.gameID = located.Game.ID

	runCtx, cancel := context.WithCancel(ctx)
	for _, c := range Collections {
		sub, err := a.feed.Subscribe(runCtx, a.gameID, c)
		if err != nil {
			cancel()
			a.closeSubs()
			return fmt.Errorf("failed to subscribe to %s: %w", c, err)
		}
		a.subs[c] = sub
	}

	// Subscriptions only see changes published after they open. Rows committed
	// before that are in this second read; anything later waits in the
	// subscription buffers and replays on top of it.
	snap, err := a.fetch(ctx)
	if err == nil && snap.Game.ID != a.gameID {
		err = fmt.Errorf("%w: room %s now belongs to game %s", ErrSynchronization, a.roomCode, snap.Game.ID)
	}
	if err != nil {
		cancel()
		a.closeSubs()
		return err
	}
	a.applySnapshot(snap)

	a.mu.Lock()
	a.cancel = cancel
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.run(runCtx)

	log.Info().
		Str("room_code", a.roomCode).
		Str("game_id", a.gameID.String()).
		Msg("realtime sync started")
	return nil
}

// GameID is the id of the synced game, known once Start succeeded.
func (a *Adapter) GameID() uuid.UUID {
	return a.gameID
}

// Close stops the consumer loop and releases every subscription. No action is
// dispatched once Close returns.
func (a *Adapter) Close() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return a.closeSubs()
}

func (a *Adapter) closeSubs() error {
	var errs []error
	for c, sub := range a.subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s subscription: %w", c, err))
		}
		delete(a.subs, c)
	}
	return errors.Join(errs...)
}

func (a *Adapter) fetch(ctx context.Context) (*models.Snapshot, error) {
	snap, err := a.fetcher.FetchSnapshot(ctx, a.roomCode)
	if err != nil {
		return nil, fmt.Errorf("%w: room %s: %v", ErrSynchronization, a.roomCode, err)
	}
	if !snap.Game.Status.Valid() {
		return nil, fmt.Errorf("%w: room %s: %w", ErrSynchronization, a.roomCode, models.ErrUnknownStatus)
	}
	return snap, nil
}

func (a *Adapter) applySnapshot(snap *models.Snapshot) {
	g := snap.Game
	a.store.DispatchAll(
		state.SetGame{Game: &g},
		state.SetPlayers{Players: snap.Players},
		state.SetQuestions{Questions: snap.Questions},
		state.SetPlayerAnswers{Answers: snap.Answers},
	)
}

// run is the single consumer: each collection has its own channel, so order
// within a collection is exactly arrival order.
func (a *Adapter) run(ctx context.Context) {
	defer close(a.done)

	games := a.subs[CollectionGames].Changes()
	players := a.subs[CollectionPlayers].Changes()
	questions := a.subs[CollectionQuestions].Changes()
	answers := a.subs[CollectionAnswers].Changes()

	for {
		var (
			change Change
			ok     bool
		)
		select {
		case <-ctx.Done():
			return
		case <-a.feed.Reconnects():
			a.resync(ctx)
			continue
		case change, ok = <-games:
			if !ok {
				games = a.lost(CollectionGames)
				continue
			}
		case change, ok = <-players:
			if !ok {
				players = a.lost(CollectionPlayers)
				continue
			}
		case change, ok = <-questions:
			if !ok {
				questions = a.lost(CollectionQuestions)
				continue
			}
		case change, ok = <-answers:
			if !ok {
				answers = a.lost(CollectionAnswers)
				continue
			}
		}
		a.apply(ctx, change)
	}
}

func (a *Adapter) lost(c Collection) <-chan Change {
	log.Warn().
		Str("room_code", a.roomCode).
		Str("collection", string(c)).
		Msg("change stream closed")
	return nil
}

func (a *Adapter) apply(ctx context.Context, c Change) {
	if ctx.Err() != nil {
		return
	}
	if c.GameID != a.gameID {
		log.Debug().
			Str("room_code", a.roomCode).
			Str("change_game_id", c.GameID.String()).
			Msg("dropping change for another game")
		return
	}

	action, err := Translate(c)
	if errors.Is(err, models.ErrUnknownStatus) {
		log.Warn().
			Err(err).
			Str("room_code", a.roomCode).
			Int64("change_id", c.ID).
			Msg("dropping game update with unknown status")
		return
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("room_code", a.roomCode).
			Int64("change_id", c.ID).
			Str("collection", string(c.Collection)).
			Msg("failed to translate change")
		return
	}
	a.store.Dispatch(action)
}

// resync re-runs the bulk fetch after a transport loss, since changes from the
// gap cannot be replayed.
func (a *Adapter) resync(ctx context.Context) {
	snap, err := a.fetch(ctx)
	if err != nil {
		log.Error().Err(err).Str("room_code", a.roomCode).Msg("resync after reconnect failed, keeping last state")
		return
	}
	if ctx.Err() != nil {
		return
	}
	a.applySnapshot(snap)
	log.Info().Str("room_code", a.roomCode).Msg("resynced after reconnect")
}
