package state

import (
	"sync"
)

// Listener is called after every dispatched action with the resulting state.
type Listener func(s State, a Action)

// Store owns one State and serialises every Dispatch through Reduce.
// Each process creates its own Store and hands it to whatever needs it.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
}

// NewStore creates a store seeded with initial.
func NewStore(initial State) *Store {
	return &Store{
		state:     initial,
		listeners: make(map[int]Listener),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces a into the current state and notifies listeners.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next, a)
	}
	return next
}

// DispatchAll applies actions in order under a single lock so no reader sees
// a partially applied batch. Listeners are notified once per action.
func (s *Store) DispatchAll(actions ...Action) State {
	s.mu.Lock()
	states := make([]State, len(actions))
	next := s.state
	for i, a := range actions {
		next = Reduce(next, a)
		states[i] = next
	}
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for i, a := range actions {
		for _, l := range listeners {
			l(states[i], a)
		}
	}
	return next
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
