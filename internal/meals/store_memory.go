package meals

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore keeps meals in memory for tests and dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]Meal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byUser: make(map[string][]Meal)}
}

func (s *InMemoryStore) Insert(_ context.Context, meal Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[meal.UserID] = append(s.byUser[meal.UserID], meal)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]Meal, error) {
	s.mu.RLock()
	out := slices.Clone(s.byUser[userID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Meal) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if out == nil {
		out = []Meal{}
	}
	return out, nil
}
