package ai

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brilliox/brilliox/pkg/logger"
)

// DefaultCacheTTL is how long a generated reply stays reusable.
const DefaultCacheTTL = time.Hour

// Cache stores generated replies by key. Implementations swallow backend
// errors and report them as misses.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, text string)
}

// CacheKey derives the cache slot for a prompt under a variant.
func CacheKey(v Variant, prompt string) string {
	sum := md5.Sum([]byte(string(v) + ":" + prompt))
	return hex.EncodeToString(sum[:])
}

type cachedReply struct {
	text      string
	createdAt time.Time
}

// MemoryCache is a process-local cache. Entries are never swept; an entry
// older than the TTL is dropped when it is next read.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedReply
}

// NewMemoryCache creates a MemoryCache. A non-positive ttl uses DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedReply),
	}
}

// Get returns the cached text for key if it has not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.createdAt) >= c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return entry.text, true
}

// Set stores text under key, replacing any previous entry.
func (c *MemoryCache) Set(_ context.Context, key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedReply{text: text, createdAt: c.now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache keeps replies in Redis so they are shared between instances.
// Expiry is delegated to the key TTL.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisCache creates a RedisCache writing keys under prefix.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration, log logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: log}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	text, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("ai cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	return text, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key, text string) {
	if err := c.client.Set(ctx, c.prefix+key, text, c.ttl).Err(); err != nil {
		c.logger.Warn("ai cache write failed", "key", key, "error", err)
	}
}
