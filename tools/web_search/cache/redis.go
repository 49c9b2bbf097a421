// Package cache memoizes search results in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/uniqa/tools/web_search/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "search:"

// Searcher is the subset of web_search.WebSearcher the cache wraps.
type Searcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

// Client is the subset of redis commands the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached is a Searcher decorator. Redis failures never fail a search; the call goes
// straight to the wrapped provider.
type Cached struct {
	next   Searcher
	client Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewCached(next Searcher, client Client, ttl time.Duration, log zerolog.Logger) *Cached {
	return &Cached{next: next, client: client, ttl: ttl, log: log}
}

// NewRedisClient builds a client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Key derives the cache key for a query and result count.
func Key(q string, k int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", k, strings.ToLower(strings.TrimSpace(q)))))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (c *Cached) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	key := Key(q, k)
	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached []models.Result
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			c.log.Debug().Str("key", key).Msg("search cache hit")
			return cached, nil
		}
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Msg("search cache read failed")
	}

	results, err := c.next.Discover(ctx, q, k)
	if err != nil {
		return nil, err
	}
	// Empty result sets are not cached so a transient miss is retried next time.
	if len(results) == 0 {
		return results, nil
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return results, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("search cache write failed")
	}
	return results, nil
}
