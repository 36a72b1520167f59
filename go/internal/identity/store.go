// Package identity remembers which player a device joined each room as, so a
// reload resumes the same player instead of creating a new one.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizcoletivo/go/internal/models"
	"github.com/mcdev12/quizcoletivo/go/internal/quiz/roomcode"
)

var ErrNotFound = errors.New("identity not found")

// DefaultTTL bounds how long an idle identity is remembered.
const DefaultTTL = 12 * time.Hour

// Store holds identities per (session, room). A session can hold independent
// identities in different rooms at the same time.
type Store interface {
	Get(ctx context.Context, sessionID, roomCode string) (*models.PlayerIdentity, error)
	Set(ctx context.Context, sessionID, roomCode string, id models.PlayerIdentity) error
	Delete(ctx context.Context, sessionID, roomCode string) error
}

type key struct {
	session string
	room    string
}

type entry struct {
	identity models.PlayerIdentity
	expires  time.Time
}

// MemoryStore keeps identities in process memory. Entries expire after ttl.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[key]entry
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return NewMemoryStoreWithClock(ttl, clockwork.NewRealClock())
}

func NewMemoryStoreWithClock(ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[key]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, roomCode string) (*models.PlayerIdentity, error) {
	k := key{sessionID, roomcode.Normalize(roomCode)}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.clock.Now().Before(e.expires) {
		delete(s.entries, k)
		return nil, ErrNotFound
	}
	id := e.identity
	return &id, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, roomCode string, id models.PlayerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key{sessionID, roomcode.Normalize(roomCode)}] = entry{
		identity: id,
		expires:  s.clock.Now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key{sessionID, roomcode.Normalize(roomCode)})
	return nil
}

// Session is one device's view of a Store.
type Session struct {
	store Store
	id    string
}

func NewSession(store Store, sessionID string) *Session {
	return &Session{store: store, id: sessionID}
}

// Get returns the identity remembered for roomCode, or ErrNotFound.
func (s *Session) Get(ctx context.Context, roomCode string) (*models.PlayerIdentity, error) {
	return s.store.Get(ctx, s.id, roomCode)
}

func (s *Session) Set(ctx context.Context, roomCode string, id models.PlayerIdentity) error {
	return s.store.Set(ctx, s.id, roomCode, id)
}
