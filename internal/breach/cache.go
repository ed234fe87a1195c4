package breach

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores reports per normalized email address. Caches built with a
// non-positive TTL store nothing.
type Cache interface {
	Get(ctx context.Context, email string) (*Report, bool, error)
	Set(ctx context.Context, email string, r *Report) error
}

type CacheStats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"max_size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

type cacheEntry struct {
	report    Report
	expiresAt time.Time
}

// MemoryCache is a bounded in-process TTL cache. Expired entries are dropped
// when read; when full the entry closest to expiry is evicted.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
	now     func() time.Time
}

func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &MemoryCache{
		items:   make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, email string) (*Report, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[email]
	if ok && c.now().After(entry.expiresAt) {
		delete(c.items, email)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false, nil
	}
	c.hits++
	r := entry.report
	return &r, true, nil
}

func (c *MemoryCache) Set(_ context.Context, email string, r *Report) error {
	if r == nil || c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[email]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[email] = cacheEntry{report: *r, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: len(c.items), MaxSize: c.maxSize, Hits: c.hits, Misses: c.misses}
}

func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, entry := range c.items {
		if first || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}

// RedisOptions configures the Redis backed cache.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	// KeyPrefix namespaces cache keys. Defaults to "cyberguard:breach:".
	KeyPrefix string
}

// RedisCache stores reports as JSON under a hashed key so raw addresses do
// not appear in the keyspace.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache opens a client for opts. The connection is established lazily
// by go-redis; use Ping to verify it.
func NewRedisCache(opts RedisOptions, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisCacheWithClient(client, opts.KeyPrefix, ttl)
}

func NewRedisCacheWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "cyberguard:breach:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(email string) string {
	sum := sha256.Sum256([]byte(email))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, email string) (*Report, bool, error) {
	ba, err := c.client.Get(ctx, c.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var r Report
	if err := json.Unmarshal(ba, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached report: %w", err)
	}
	return &r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, email string, r *Report) error {
	// go-redis treats a zero expiration as "keep forever"
	if r == nil || c.ttl <= 0 {
		return nil
	}
	ba, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, c.key(email), ba, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
