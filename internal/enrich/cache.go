package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// SiteInfo is what a website inspection yields.
type SiteInfo struct {
	Links  int      `json:"links"`
	Emails []string `json:"emails,omitempty"`
}

// Cache stores website inspections keyed by URL. Get returns (nil, nil) on a
// miss.
type Cache interface {
	Get(ctx context.Context, key string) (*SiteInfo, error)
	Set(ctx context.Context, key string, info *SiteInfo, ttl time.Duration) error
}

type memoryEntry struct {
	info    SiteInfo
	expires time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), nowFunc: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*SiteInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !c.nowFunc().Before(e.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	info := e.info
	return &info, nil
}

// Set implements Cache. A ttl <= 0 never expires.
func (c *MemoryCache) Set(_ context.Context, key string, info *SiteInfo, ttl time.Duration) error {
	if info == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{info: *info}
	if ttl > 0 {
		e.expires = c.nowFunc().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache is a Cache shared across processes through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "redis: ping %s", cfg.Addr)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "leads:"
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) key(k string) string { return c.prefix + "site:" + k }

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*SiteInfo, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "redis: get site info")
	}
	var info SiteInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, eris.Wrap(err, "redis: decode site info")
	}
	return &info, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, info *SiteInfo, ttl time.Duration) error {
	if info == nil {
		return nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return eris.Wrap(err, "redis: encode site info")
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return eris.Wrap(err, "redis: set site info")
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
