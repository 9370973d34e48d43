package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"applysharp/internal/config"
	"applysharp/internal/errors"
)

// Cache holds search results in two tiers: L1 in memory and an optional
// L2 in Redis that survives restarts. It only ever stores public search
// results, never user documents.
type Cache struct {
	l1         sync.Map // key -> *cacheEntry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
	stopChan   chan struct{}
	stopOnce   sync.Once
	logger     *errors.Logger
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCache creates the cache. An empty or unreachable Redis URL disables L2.
func NewCache(cfg config.CacheConfig, logger *errors.Logger) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	c := &Cache{
		ttl:        ttl,
		maxEntries: cfg.MaxEntries,
		stopChan:   make(chan struct{}),
		logger:     logger,
	}

	if cfg.RedisURL != "" {
		c.rdb = connectRedis(cfg.RedisURL, logger)
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go c.cleanupLoop(interval)

	if logger != nil {
		logger.Info("Search cache initialized", "ttl", ttl, "redis", c.rdb != nil, "max_entries", cfg.MaxEntries)
	}
	return c
}

func connectRedis(redisURL string, logger *errors.Logger) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid redis URL, L2 search cache disabled", "error", err)
		}
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		if logger != nil {
			logger.Warn("Redis unreachable, L2 search cache disabled", "error", err)
		}
		_ = rdb.Close()
		return nil
	}
	if logger != nil {
		logger.Info("L2 search cache connected", "addr", opts.Addr)
	}
	return rdb
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("as:search:%x", hash[:12])
}

// Get tries L1, then L2. An L2 hit repopulates L1.
func (c *Cache) Get(ctx context.Context, key string) ([]Result, bool) {
	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			var out []Result
			if json.Unmarshal(entry.data, &out) == nil {
				c.hits.Add(1)
				return out, true
			}
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var out []Result
			if json.Unmarshal(data, &out) == nil {
				c.hits.Add(1)
				c.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})
				return out, true
			}
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores results in both tiers.
func (c *Cache) Set(ctx context.Context, key string, results []Result) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}

	c.evictIfNeeded()
	c.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.Debug("L2 search cache set failed", "error", err)
		}
	}
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the cleanup loop and releases the Redis connection.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stopChan) })
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// evictIfNeeded drops expired entries, then the oldest ones, while L1 is full.
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(c.ttl + time.Hour)
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		case <-c.stopChan:
			return
		}
	}
}

// CachedSearcher serves repeated queries from the cache.
type CachedSearcher struct {
	next  Searcher
	cache *Cache
}

// NewCachedSearcher wraps next with cache. A nil cache disables caching.
func NewCachedSearcher(next Searcher, cache *Cache) Searcher {
	if cache == nil {
		return next
	}
	return &CachedSearcher{next: next, cache: cache}
}

// Search returns cached results when present. Failures are never cached.
func (s *CachedSearcher) Search(ctx context.Context, q Query) ([]Result, error) {
	key := CacheKey(strings.ToLower(strings.TrimSpace(q.Text)), fmt.Sprint(q.MaxResults), strings.Join(q.IncludeDomains, ","))
	if results, ok := s.cache.Get(ctx, key); ok {
		return results, nil
	}

	results, err := s.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, results)
	return results, nil
}
