// Package state holds the single current AuthState and fans changes out to
// observers.
//
// Reads are lock-free snapshots. Writes are serialized so observers see
// states in write order. Observers run synchronously inside Set but outside
// the registry lock: they may subscribe or unsubscribe (themselves or others)
// but must not call Set.
package state

import (
	"sync"
	"sync/atomic"

	"calorie/internal/auth/models"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/platform/sentinel"
)

// Observer receives every state written to the store.
type Observer func(models.AuthState)

type observer struct {
	fn     Observer
	active atomic.Bool

	mu        sync.Mutex
	delivered bool
	seq       uint64
}

// deliver calls fn unless the observer was removed or already saw a state
// at least as new as seq.
func (o *observer) deliver(st models.AuthState, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active.Load() || (o.delivered && seq <= o.seq) {
		return
	}
	o.delivered = true
	o.seq = seq
	o.fn(st)
}

// Store is the session store. The zero value is not usable; call New.
type Store struct {
	current atomic.Pointer[models.AuthState]

	// writeMu orders Set calls end to end, notifications included.
	writeMu sync.Mutex

	mu        sync.Mutex
	seq       uint64
	observers []*observer
}

// New returns a store in the bootstrapping state: not ready, no session.
func New() *Store {
	s := &Store{}
	s.current.Store(&models.AuthState{})
	return s
}

// Get returns the current snapshot. It never blocks.
func (s *Store) Get() models.AuthState {
	return *s.current.Load()
}

// Set replaces the whole state and notifies observers.
// It rejects states that pair an identity with no session (or the reverse)
// and any attempt to move Ready from true back to false.
func (s *Store) Set(next models.AuthState) error {
	if err := next.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidStateTransition, "identity and session must be present together")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.current.Load().Ready && !next.Ready {
		s.mu.Unlock()
		return dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeInvalidStateTransition, "ready cannot revert to false")
	}
	snapshot := next
	s.current.Store(&snapshot)
	s.seq++
	seq := s.seq
	targets := append([]*observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range targets {
		o.deliver(snapshot, seq)
	}
	return nil
}

// Subscribe registers fn for every future Set and delivers the current
// snapshot to it before returning. The returned func unsubscribes; calling it
// more than once, or from inside an observer, is harmless.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	o := &observer{fn: fn}
	o.active.Store(true)

	s.mu.Lock()
	s.observers = append(s.observers, o)
	snapshot := *s.current.Load()
	seq := s.seq
	s.mu.Unlock()

	o.deliver(snapshot, seq)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.active.Store(false)
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, v := range s.observers {
				if v == o {
					s.observers = append(s.observers[:i], s.observers[i+1:]...)
					break
				}
			}
		})
	}
}
