package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests against a live Redis. Run with:
//
//	TEST_REDIS_ADDR=localhost:6379 go test ./ratelimit/...
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 9})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestRedisLimiterWindow(t *testing.T) {
	client := redisTestClient(t)
	l := NewRedisLimiter(client, Table{"award": {MaxRequests: 3, Window: 2 * time.Second}})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := l.Check(ctx, 42, "award")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should pass", i+1)
	}

	d, err := l.Check(ctx, 42, "award")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	time.Sleep(2100 * time.Millisecond)
	d, err = l.Check(ctx, 42, "award")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "window should have slid past the old requests")
}

func TestRedisLimiterConcurrent(t *testing.T) {
	client := redisTestClient(t)
	const max = 10
	l := NewRedisLimiter(client, Table{"award": {MaxRequests: max, Window: time.Minute}})

	ctx := context.Background()
	results := make(chan bool, max*3)
	for i := 0; i < max*3; i++ {
		go func() {
			d, err := l.Check(ctx, 7, "award")
			results <- err == nil && d.Allowed
		}()
	}

	allowed := 0
	for i := 0; i < max*3; i++ {
		if <-results {
			allowed++
		}
	}
	assert.Equal(t, max, allowed, "exactly the window limit must be admitted under concurrency")
}

func TestRedisLimiterSweep(t *testing.T) {
	client := redisTestClient(t)
	l := NewRedisLimiter(client, Table{"award": {MaxRequests: 5, Window: time.Second}})

	ctx := context.Background()
	_, err := l.Check(ctx, 1, "award")
	require.NoError(t, err)

	// live record survives
	removed, err := l.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	// after its last activity ages out, the record goes
	time.Sleep(1100 * time.Millisecond)
	removed, err = l.Sweep(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, err := client.Keys(ctx, redisKeyPrefix+"*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisLimiterBackendErrorSurfaces(t *testing.T) {
	// Unroutable address: the limiter must report the backend failure so
	// the middleware can apply the endpoint's fail-open/fail-closed policy.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	l := NewRedisLimiter(client, Table{})

	_, err := l.Check(context.Background(), 1, "award")
	assert.Error(t, err)
	fmt.Println("backend error (expected):", err)
}
