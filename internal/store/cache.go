package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// RecordCache fronts the records store for the duplicate gate:
// L1 in-memory plus optional L2 Redis, so repeated submissions of a
// hot URL skip the database entirely. L1 is lost on restart; L2
// survives it.
type RecordCache struct {
	l1              sync.Map // key → *cacheEntry
	rdb             *redis.Client
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewRecordCache builds the cache. redisURL may be empty to run L1-only.
func NewRecordCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) *RecordCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	c := &RecordCache{ttl: ttl, maxEntries: maxEntries, cleanupInterval: cleanupInterval}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	go c.cleanupLoop()
	return c
}

// cacheKey hashes a normalized URL into a short namespaced key.
func cacheKey(normalizedURL string) string {
	hash := sha256.Sum256([]byte(normalizedURL))
	return fmt.Sprintf("dg:rec:%x", hash[:12])
}

// Get tries L1, then L2. On an L2 hit, repopulates L1.
func (c *RecordCache) Get(ctx context.Context, normalizedURL string) (*Record, bool) {
	key := cacheKey(normalizedURL)

	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			var rec Record
			if json.Unmarshal(entry.data, &rec) == nil {
				engine.IncrCacheHits()
				return &rec, true
			}
		}
		c.l1.Delete(key) // expired or corrupt
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var rec Record
			if json.Unmarshal(data, &rec) == nil {
				engine.IncrCacheHits()
				c.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})
				return &rec, true
			}
		}
	}

	engine.IncrCacheMisses()
	return nil, false
}

// Set stores the record in both tiers.
func (c *RecordCache) Set(ctx context.Context, rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	key := cacheKey(rec.NormalizedURL)

	c.evictIfNeeded()
	c.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Invalidate drops a URL from both tiers, used on force reprocess.
func (c *RecordCache) Invalidate(ctx context.Context, normalizedURL string) {
	key := cacheKey(normalizedURL)
	c.l1.Delete(key)
	if c.rdb != nil {
		c.rdb.Del(ctx, key)
	}
}

// evictIfNeeded removes entries when L1 exceeds maxEntries: expired
// entries first, then the oldest.
func (c *RecordCache) evictIfNeeded() {
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
	if count < c.maxEntries {
		return
	}

	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := time.Now().Add(time.Hour)
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

// cleanupLoop periodically removes expired L1 entries.
func (c *RecordCache) cleanupLoop() {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
				c.l1.Delete(key)
			}
			return true
		})
	}
}
