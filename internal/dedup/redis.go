package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
)

const keyPrefix = "aircall-sync:event:"

// RedisGuard drops webhook redeliveries by remembering event ids for a TTL.
type RedisGuard struct {
	client     *redis.Client
	ttl        time.Duration
	duplicates metric.Int64Counter
}

// NewRedisGuard creates a guard. duplicates may be nil.
func NewRedisGuard(client *redis.Client, ttl time.Duration, duplicates metric.Int64Counter) *RedisGuard {
	return &RedisGuard{
		client:     client,
		ttl:        ttl,
		duplicates: duplicates,
	}
}

func (g *RedisGuard) key(eventID string) string {
	return keyPrefix + eventID
}

// Claim marks eventID as seen. It returns false when the id was already
// claimed within the TTL.
func (g *RedisGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(eventID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}

	if !ok && g.duplicates != nil {
		g.duplicates.Add(ctx, 1)
	}
	return ok, nil
}

// Release forgets eventID so a later redelivery is processed again.
// Used when a claimed event could not be queued.
func (g *RedisGuard) Release(ctx context.Context, eventID string) error {
	if err := g.client.Del(ctx, g.key(eventID)).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", eventID, err)
	}
	return nil
}
