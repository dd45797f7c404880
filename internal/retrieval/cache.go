package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "curador:emb:"

// CachedEmbedder memoizes embeddings in Redis keyed by model and text hash.
// Cache errors are logged and bypassed; only the wrapped embedder can fail a call.
type CachedEmbedder struct {
	next  TextEmbedder
	rdb   redis.UniversalClient
	model string
	ttl   time.Duration
}

// NewCachedEmbedder wraps next. model namespaces the keys so switching models
// never serves stale vectors. A zero ttl keeps entries forever.
func NewCachedEmbedder(next TextEmbedder, rdb redis.UniversalClient, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, rdb: rdb, model: model, ttl: ttl}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	blob, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, derr := decodeFloat32s(blob); derr == nil && len(vec) > 0 {
			return vec, nil
		}
		slog.Warn("embedding cache: corrupt entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		slog.Warn("embedding cache: get failed", "error", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, encodeFloat32s(vec), c.ttl).Err(); err != nil {
		slog.Warn("embedding cache: set failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}
