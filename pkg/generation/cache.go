package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Hour

// CachedClient is a read-through Redis cache around another Client. Cache
// failures degrade to a miss; they never fail a generation call.
type CachedClient struct {
	inner  Client
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedClient wraps inner with a Redis result cache.
func NewCachedClient(inner Client, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &CachedClient{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With("module", "generation_cache"),
	}
}

func cacheKey(systemInstruction, contextText string) string {
	sum := sha256.Sum256([]byte(systemInstruction + "\x00" + contextText))

	return "slidesmith:generation:" + hex.EncodeToString(sum[:])
}

func (c *CachedClient) Generate(ctx context.Context, systemInstruction, contextText string) (string, error) {
	key := cacheKey(systemInstruction, contextText)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "Cache read failed, falling through", "error", err)
	}

	text, err := c.inner.Generate(ctx, systemInstruction, contextText)
	if err != nil {
		return "", err
	}

	err = c.client.Set(ctx, key, text, c.ttl).Err()
	if err != nil {
		c.logger.WarnContext(ctx, "Cache write failed", "error", err)
	}

	return text, nil
}

func (c *CachedClient) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}
