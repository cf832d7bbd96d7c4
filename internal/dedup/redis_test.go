package dedup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGuard(t *testing.T) *RedisGuard {
	t.Helper()
	if os.Getenv("REDIS_URL") == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisGuard(client, time.Minute, nil)
}

func TestRedisGuard_ClaimOnce(t *testing.T) {
	guard := setupGuard(t)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { _ = guard.Release(ctx, id) })

	first, err := guard.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := guard.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, second, "redelivery must be detected")
}

func TestRedisGuard_ReleaseAllowsReclaim(t *testing.T) {
	guard := setupGuard(t)
	ctx := context.Background()
	id := uuid.NewString()

	ok, err := guard.Claim(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, guard.Release(ctx, id))

	ok, err = guard.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, guard.Release(ctx, id))
}
