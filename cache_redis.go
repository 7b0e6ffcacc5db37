package restkit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis-backed Cache. TTL expiry is delegated to Redis key
// expiration and capacity bounding to the server's maxmemory policy
// (allkeys-lru recommended), so Cleanup is a no-op.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ctx       context.Context
}

// NewRedisCache creates a Cache on the given Redis client. All keys are
// stored under prefix to keep Clear scoped to this cache.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "restkit:cache:"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: prefix,
		ctx:       context.Background(),
	}
}

// Get implements Cache.
func (c *RedisCache) Get(key string) (*CacheEntry, bool) {
	data, err := c.client.Get(c.ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt payload; drop it so the next Set starts clean.
		c.client.Del(c.ctx, c.keyPrefix+key)
		return nil, false
	}
	if entry.expired(time.Now()) {
		c.client.Del(c.ctx, c.keyPrefix+key)
		return nil, false
	}
	return &entry, true
}

// Set implements Cache.
func (c *RedisCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	now := time.Now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(ttl)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	c.client.Set(c.ctx, c.keyPrefix+key, data, ttl)
}

// Has implements Cache.
func (c *RedisCache) Has(key string) bool {
	n, err := c.client.Exists(c.ctx, c.keyPrefix+key).Result()
	return err == nil && n > 0
}

// Delete implements Cache.
func (c *RedisCache) Delete(key string) bool {
	n, err := c.client.Del(c.ctx, c.keyPrefix+key).Result()
	return err == nil && n > 0
}

// Clear implements Cache. It scans the cache's key prefix rather than
// flushing the whole database.
func (c *RedisCache) Clear() {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(c.ctx, cursor, c.keyPrefix+"*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			c.client.Del(c.ctx, keys...)
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Cleanup implements Cache. Redis expires keys server-side, so there is
// nothing to sweep.
func (c *RedisCache) Cleanup() int {
	return 0
}
