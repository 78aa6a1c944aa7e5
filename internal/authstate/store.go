// Package authstate is the single in-memory source of truth for the
// authentication state, broadcasting a fresh snapshot to subscribers on
// every transition.
package authstate

import (
	"log/slog"
	"sync"

	"github.com/tasksuite/addin-auth/internal/models"
)

// Store holds the current state and the subscriber set. Notifications
// are delivered synchronously, in subscriber-registration order, for a
// single triggering event.
type Store struct {
	logger *slog.Logger

	mu      sync.Mutex
	state   models.AuthState
	nextID  int
	order   []int
	subs    map[int]func(models.AuthState)
}

// NewStore creates a store in the signed-out state.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		subs:   make(map[int]func(models.AuthState)),
	}
}

// Current returns a snapshot of the state. The account is copied so
// callers cannot mutate engine-owned data.
func (s *Store) Current() models.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.AuthState {
	snap := s.state
	if s.state.Account != nil {
		acct := *s.state.Account
		snap.Account = &acct
	}

	return snap
}

// Set replaces the state and notifies every subscriber.
func (s *Store) Set(state models.AuthState) {
	s.mu.Lock()
	s.state = state
	snap := s.snapshotLocked()

	subs := make([]func(models.AuthState), 0, len(s.order))
	for _, id := range s.order {
		if cb, ok := s.subs[id]; ok {
			subs = append(subs, cb)
		}
	}
	s.mu.Unlock()

	// Called outside the lock so a subscriber may re-enter the store.
	for _, cb := range subs {
		s.invoke(cb, snap)
	}
}

// Subscribe registers cb and fires it once immediately with the current
// state. The returned unsubscribe function is idempotent and safe to
// call multiple times.
func (s *Store) Subscribe(cb func(models.AuthState)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = cb
	s.order = append(s.order, id)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.invoke(cb, snap)

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			for i, oid := range s.order {
				if oid == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
}

// invoke isolates one subscriber call: a panicking subscriber is logged
// and must not prevent the rest of the set from being notified.
func (s *Store) invoke(cb func(models.AuthState), state models.AuthState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auth state subscriber panicked", slog.Any("panic", r))
		}
	}()

	cb(state)
}
