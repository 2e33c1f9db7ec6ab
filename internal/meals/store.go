package meals

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

import "context"

// Store persists meals.
type Store interface {
	Insert(ctx context.Context, meal Meal) error
	// ListByUser returns the user's meals, newest first.
	ListByUser(ctx context.Context, userID string) ([]Meal, error)
}
