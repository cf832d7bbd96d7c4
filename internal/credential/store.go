package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aircall-sync/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Store persists credentials across restarts. It is an optimization only:
// a Cache works without one and treats every Store error as a miss.
type Store interface {
	Load(ctx context.Context, backend string) (domain.Credential, bool, error)
	Save(ctx context.Context, backend string, cred domain.Credential) error
	Delete(ctx context.Context, backend string) error
}

// RedisStore keeps one JSON-encoded credential per backend, expiring with the token.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed credential store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "aircall-sync:credential:",
	}
}

func (s *RedisStore) key(backend string) string {
	return s.prefix + backend
}

// Load returns the persisted credential for backend, if any.
func (s *RedisStore) Load(ctx context.Context, backend string) (domain.Credential, bool, error) {
	raw, err := s.client.Get(ctx, s.key(backend)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Credential{}, false, nil
	}
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("failed to load credential: %w", err)
	}

	var cred domain.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return domain.Credential{}, false, fmt.Errorf("failed to decode credential: %w", err)
	}
	return cred, true, nil
}

// Save persists cred until its expiry. Already expired credentials are not stored.
func (s *RedisStore) Save(ctx context.Context, backend string, cred domain.Credential) error {
	ttl := time.Until(cred.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	if err := s.client.Set(ctx, s.key(backend), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete removes the persisted credential for backend.
func (s *RedisStore) Delete(ctx context.Context, backend string) error {
	if err := s.client.Del(ctx, s.key(backend)).Err(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
