// Package session runs the authoritative progression clock for every game
// that is in play. Each session owns a local store kept in sync through the
// realtime adapter, and a controller ticking against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/progression"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/realtime"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/state"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("session manager closed")

// Repository is what a session reads and writes games through.
type Repository interface {
	realtime.Fetcher
	progression.GameWriter
	ListActiveGames(ctx context.Context) ([]models.Game, error)
}

// Feed is a change feed owned by a single session.
type Feed interface {
	realtime.ChangeFeed
	Close()
}

type session struct {
	roomCode string
	store    *state.Store
	adapter  *realtime.Adapter
	feed     Feed
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager keeps at most one session per room.
type Manager struct {
	repo    Repository
	newFeed func() Feed
	cfg     progression.ControllerConfig
	clock   clockwork.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

func NewManager(repo Repository, newFeed func() Feed, cfg progression.ControllerConfig) *Manager {
	return NewManagerWithClock(repo, newFeed, cfg, clockwork.NewRealClock())
}

func NewManagerWithClock(repo Repository, newFeed func() Feed, cfg progression.ControllerConfig, clock clockwork.Clock) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:     repo,
		newFeed:  newFeed,
		cfg:      cfg,
		clock:    clock,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
}

// Ensure starts a session for roomCode unless one is running.
func (m *Manager) Ensure(ctx context.Context, roomCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.sessions[roomCode]; ok {
		return nil
	}

	store := state.NewStore(state.State{})
	feed := m.newFeed()
	adapter := realtime.NewAdapter(roomCode, m.repo, feed, store)

	// Sessions outlive the request that started them.
	runCtx, cancel := context.WithCancel(m.ctx)
	startCtx, stopStart := context.WithCancel(runCtx)
	stopOnCaller := context.AfterFunc(ctx, stopStart)
	err := adapter.Start(startCtx)
	stopOnCaller()
	if err != nil {
		cancel()
		feed.Close()
		return fmt.Errorf("failed to start session for room %s: %w", roomCode, err)
	}

	s := &session{
		roomCode: roomCode,
		store:    store,
		adapter:  adapter,
		feed:     feed,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.sessions[roomCode] = s
	go m.run(runCtx, s)

	log.Info().Str("room_code", roomCode).Msg("progression session started")
	return nil
}

func (m *Manager) run(ctx context.Context, s *session) {
	defer close(s.done)

	finished := make(chan struct{}, 1)
	unsubscribe := s.store.Subscribe(func(st state.State, _ state.Action) {
		if over(st.Game) {
			signal(finished)
		}
	})
	defer unsubscribe()
	if over(s.store.State().Game) {
		signal(finished)
	}

	controller := progression.NewControllerWithClock(s.store, m.repo, m.cfg, m.clock)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := controller.Run(ctx); err != nil {
			log.Error().Err(err).Str("room_code", s.roomCode).Msg("progression controller failed")
		}
	}()

	select {
	case <-ctx.Done():
	case <-finished:
		log.Info().Str("room_code", s.roomCode).Msg("game no longer in play")
		go m.retire(s)
		<-ctx.Done()
	}
	<-runDone
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// over reports whether g no longer needs a clock.
func over(g *models.Game) bool {
	return g == nil || g.Status == models.GameStatusGameEnd || g.Status == models.GameStatusConfig
}

// Stop ends the session for roomCode, if any, and waits for it to finish.
func (m *Manager) Stop(roomCode string) {
	m.mu.Lock()
	s, ok := m.sessions[roomCode]
	if ok {
		delete(m.sessions, roomCode)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.stop(s)
	log.Info().Str("room_code", roomCode).Msg("progression session stopped")
}

// retire stops s unless it was already replaced or stopped.
func (m *Manager) retire(s *session) {
	m.mu.Lock()
	current, ok := m.sessions[s.roomCode]
	if ok && current == s {
		delete(m.sessions, s.roomCode)
	}
	m.mu.Unlock()
	if ok && current == s {
		m.stop(s)
		log.Info().Str("room_code", s.roomCode).Msg("progression session finished")
	}
}

func (m *Manager) stop(s *session) {
	s.cancel()
	<-s.done
	if err := s.adapter.Close(); err != nil {
		log.Warn().Err(err).Str("room_code", s.roomCode).Msg("failed to close realtime adapter")
	}
	s.feed.Close()
}

// Running reports whether roomCode has a session.
func (m *Manager) Running(roomCode string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[roomCode]
	return ok
}

// Len returns the number of running sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ResumeActive starts sessions for games left in play by a previous process.
// Games stuck in WAITING are left for the admin to start again.
func (m *Manager) ResumeActive(ctx context.Context) error {
	games, err := m.repo.ListActiveGames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active games: %w", err)
	}
	var errs []error
	for _, g := range games {
		if g.Status == models.GameStatusWaiting {
			continue
		}
		if err := m.Ensure(ctx, g.RoomCode); err != nil {
			errs = append(errs, err)
		}
	}
	log.Info().Int("games", len(games)).Int("sessions", m.Len()).Msg("resumed active games")
	return errors.Join(errs...)
}

// GameStarted implements game.Lifecycle.
func (m *Manager) GameStarted(ctx context.Context, g *models.Game) {
	if err := m.Ensure(ctx, g.RoomCode); err != nil {
		log.Error().Err(err).Str("room_code", g.RoomCode).Msg("failed to start progression session")
	}
}

// GameStopped implements game.Lifecycle.
func (m *Manager) GameStopped(g *models.Game) {
	m.Stop(g.RoomCode)
}

// Shutdown stops every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	m.cancel()
	for _, s := range sessions {
		m.stop(s)
	}
	log.Info().Int("sessions", len(sessions)).Msg("session manager shut down")
}
