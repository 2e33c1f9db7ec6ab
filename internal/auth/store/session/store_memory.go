package session

import (
	"context"
	"fmt"
	"sync"

	"calorie/internal/auth/models"
	"calorie/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in process memory for tests and dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// New constructs an empty in-memory session store.
func New() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *InMemoryStore) Load(_ context.Context, key string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[key]; ok {
		return session.Clone(), nil
	}
	return nil, fmt.Errorf("session %q not found: %w", key, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Save(_ context.Context, key string, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("save session %q: nil session", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = session.Clone()
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}
