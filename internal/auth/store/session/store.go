// Package session persists the provider session between process restarts,
// the way a client SDK keeps it in device storage.
package session

import (
	"context"

	"calorie/internal/auth/models"
)

// Store holds at most one session per key.
//
// Error Contract:
// - Load returns sentinel.ErrNotFound when nothing is stored under key
// - Clear is a no-op for missing keys
// - infrastructure failures are returned wrapped with context
type Store interface {
	Load(ctx context.Context, key string) (*models.Session, error)
	Save(ctx context.Context, key string, session *models.Session) error
	Clear(ctx context.Context, key string) error
}
