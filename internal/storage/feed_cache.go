package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FeedCache memoizes ranked feed pages in Redis. Every key carries the
// user's state version, so a version bump makes stale entries unreachable
// and they expire on TTL with no active eviction sweep.
type FeedCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewFeedCache creates a feed page cache with the given page TTL.
func NewFeedCache(redisCache *RedisCache, ttl time.Duration) *FeedCache {
	return &FeedCache{redis: redisCache, ttl: ttl}
}

// PageKey builds the cache key for one ranked feed page.
// Format: feed:<user>:<offset>:<limit>:v<version>
func (c *FeedCache) PageKey(userID string, offset, limit int, version uint64) string {
	return fmt.Sprintf("feed:%s:%d:%d:v%d", userID, offset, limit, version)
}

// GetPage loads a cached page into dest. A missing key is a cache miss,
// not an error.
func (c *FeedCache) GetPage(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached page: %w", err)
	}
	return true, nil
}

// SetPage stores a page under the versioned key with the configured TTL.
func (c *FeedCache) SetPage(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal page: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Entries counts live feed page entries. Dashboard use only.
func (c *FeedCache) Entries(ctx context.Context) (int, error) {
	keys, err := c.redis.Keys(ctx, "feed:*")
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// TTL returns the configured page TTL.
func (c *FeedCache) TTL() time.Duration {
	return c.ttl
}
