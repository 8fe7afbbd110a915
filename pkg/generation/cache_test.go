package generation

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyIsStableAndSeparatesParts(t *testing.T) {
	assert.Equal(t, cacheKey("a", "b"), cacheKey("a", "b"))
	assert.NotEqual(t, cacheKey("a", "b"), cacheKey("a", "c"))

	// "ab"+"" and "a"+"b" must not collide.
	assert.NotEqual(t, cacheKey("ab", ""), cacheKey("a", "b"))

	assert.Contains(t, cacheKey("a", "b"), "slidesmith:generation:")
}

func testRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis cache tests")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestCachedClientReadThrough(t *testing.T) {
	rdb := testRedisClient(t)
	ctx := context.Background()

	calls := 0
	inner := NewCannedClient(func(string, string) (string, error) {
		calls++

		return "generated", nil
	})

	cached := NewCachedClient(inner, rdb, time.Minute, slog.Default())

	// Unique prompt per run so earlier test data cannot satisfy the read.
	prompt := "topic " + uuid.New().String()

	text, err := cached.Generate(ctx, "sys", prompt)
	require.NoError(t, err)
	assert.Equal(t, "generated", text)
	assert.Equal(t, 1, calls)

	text, err = cached.Generate(ctx, "sys", prompt)
	require.NoError(t, err)
	assert.Equal(t, "generated", text)
	assert.Equal(t, 1, calls, "second call should be served from cache")
}

func TestCachedClientDoesNotCacheFailures(t *testing.T) {
	rdb := testRedisClient(t)
	ctx := context.Background()

	calls := 0
	inner := NewCannedClient(func(string, string) (string, error) {
		calls++
		if calls == 1 {
			return "", &Error{Kind: Transient, Err: assert.AnError}
		}

		return "recovered", nil
	})

	cached := NewCachedClient(inner, rdb, time.Minute, slog.Default())
	prompt := "topic " + uuid.New().String()

	_, err := cached.Generate(ctx, "sys", prompt)
	require.Error(t, err)

	text, err := cached.Generate(ctx, "sys", prompt)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, calls)
}
