// Package gateway defines the contract of the remote identity provider the
// session core depends on. Implementations live in sub-packages.
package gateway

//go:generate mockgen -source=gateway.go -destination=mocks/mocks.go -package=mocks Gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"calorie/internal/auth/models"
)

// Gateway is the identity provider. Every method is a network round trip (or
// its local equivalent) and may block until ctx is done.
//
// Errors wrap the sentinel package: ErrInvalidCredentials for rejected
// credentials, ErrExpired for an unusable refresh token, ErrUnavailable for
// everything the caller cannot act on.
type Gateway interface {
	// FetchCurrentSession returns the provider's current session, nil if none.
	FetchCurrentSession(ctx context.Context) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	// SignUp returns a nil session when the provider requires email verification.
	SignUp(ctx context.Context, email, password string, metadata models.Metadata) (*models.Session, error)
	// SignOut succeeds when no session is held.
	SignOut(ctx context.Context) error
	RefreshSession(ctx context.Context) (*models.Session, error)
	// UpdateUser replaces the signed-in user's metadata.
	UpdateUser(ctx context.Context, metadata models.Metadata) (*models.Identity, error)
	OnSessionChanged(listener Listener) Subscription
}

// Error is a gateway failure carrying the provider's own message. Kind is a
// sentinel error so callers can classify it with errors.Is.
type Error struct {
	Kind    error
	Message string
	Status  int
}

// NewError builds a gateway error of the given kind.
func NewError(kind error, status int, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Status: status}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Message returns the provider's message for err, or err's text.
func Message(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Error()
	}
	return err.Error()
}

// Listener receives session change events. It is called from the gateway's
// goroutine and must not call back into the gateway; releasing its own
// Subscription is allowed.
type Listener func(models.SessionEvent)

// Subscription is a registered listener.
type Subscription interface {
	Unsubscribe()
}

// Listeners is a registry implementations embed to fan events out.
// Listeners are called outside the registry lock, so a listener may
// unsubscribe itself or others while an event is being delivered.
type Listeners struct {
	// emitMu serializes Emit so listeners observe events in emission order.
	emitMu sync.Mutex

	mu        sync.Mutex
	nextID    int
	listeners map[int]*listenerEntry
	order     []int
}

type listenerEntry struct {
	fn     Listener
	active atomic.Bool
}

// Add registers l and returns its subscription.
func (ls *Listeners) Add(l Listener) Subscription {
	e := &listenerEntry{fn: l}
	e.active.Store(true)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.listeners == nil {
		ls.listeners = make(map[int]*listenerEntry)
	}
	id := ls.nextID
	ls.nextID++
	ls.listeners[id] = e
	ls.order = append(ls.order, id)
	return &subscription{owner: ls, id: id}
}

// Emit delivers event to every registered listener in registration order.
func (ls *Listeners) Emit(event models.SessionEvent) {
	ls.emitMu.Lock()
	defer ls.emitMu.Unlock()

	ls.mu.Lock()
	targets := make([]*listenerEntry, 0, len(ls.order))
	for _, id := range ls.order {
		targets = append(targets, ls.listeners[id])
	}
	ls.mu.Unlock()

	for _, e := range targets {
		if !e.active.Load() {
			continue
		}
		e.fn(models.SessionEvent{Kind: event.Kind, Session: event.Session.Clone()})
	}
}

// Len returns the number of registered listeners.
func (ls *Listeners) Len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.listeners)
}

type subscription struct {
	owner *Listeners
	id    int
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		defer s.owner.mu.Unlock()
		if e, ok := s.owner.listeners[s.id]; ok {
			e.active.Store(false)
			delete(s.owner.listeners, s.id)
		}
		for i, id := range s.owner.order {
			if id == s.id {
				s.owner.order = append(s.owner.order[:i], s.owner.order[i+1:]...)
				break
			}
		}
	})
}
