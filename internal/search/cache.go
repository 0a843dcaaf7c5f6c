package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	loggerPkg "github.com/deppfellow/countstore/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CacheKeyPrefix namespaces cached counts in redis.
const CacheKeyPrefix = "countstore:count:"

// CachedCounter serves counts from redis and falls back to the wrapped
// Counter on a miss. Redis failures are logged and skipped.
type CachedCounter struct {
	next   Counter
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zerolog.Logger
}

var _ Counter = (*CachedCounter)(nil)

// NewCachedCounter wraps next with a redis cache. Entries expire after ttl;
// a zero ttl keeps them forever.
func NewCachedCounter(next Counter, rdb redis.Cmdable, ttl time.Duration, logger *zerolog.Logger) *CachedCounter {
	if logger == nil {
		logger = loggerPkg.Nop()
	}
	cacheLogger := logger.With().Str("component", "search_cache").Logger()
	return &CachedCounter{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: &cacheLogger,
	}
}

// CacheKey is the redis key for a query and its filters.
func CacheKey(query string, filters []Filter) string {
	h := sha256.New()
	h.Write([]byte(query))
	for _, f := range filters {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}
	return CacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedCounter) Count(ctx context.Context, query string, filters ...Filter) (int64, error) {
	key := CacheKey(query, filters)

	n, err := c.rdb.Get(ctx, key).Int64()
	switch {
	case err == nil:
		c.logger.Debug().Str("query", query).Int64("count", n).Msg("count cache hit")
		return n, nil
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("count cache read failed")
	}

	n, err = c.next.Count(ctx, query, filters...)
	if err != nil {
		return 0, err
	}

	if err := c.rdb.Set(ctx, key, n, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("count cache write failed")
	}

	return n, nil
}
