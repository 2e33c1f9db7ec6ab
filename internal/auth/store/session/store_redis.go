package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"calorie/internal/auth/models"
	"calorie/pkg/platform/sentinel"
)

const keyPrefix = "calorie:auth:session:"

// RedisStore keeps sessions in Redis so several server instances share
// one signed-in device.
type RedisStore struct {
	client *redis.Client
	// ttl bounds how long an idle session survives; zero keeps it forever.
	ttl time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires stored sessions after ttl.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context, key string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %q not found: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", key, err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", key, err)
	}
	return &session, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("save session %q: nil session", key)
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", key, err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear session %q: %w", key, err)
	}
	return nil
}
