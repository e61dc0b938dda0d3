// Package cache is the analysis result cache: Redis when reachable, an
// in-process map otherwise. Every operation is best-effort; backend
// failures degrade to misses and never surface to callers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldscope/locus/internal/analysis"
)

const keyPrefix = "analysis:"

// Config selects the backend. An empty Addr skips Redis entirely.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type localEntry struct {
	payload  []byte
	storedAt time.Time
}

// ResultCache stores completed analyses keyed by normalized address and
// radius. client is nil when running on the in-process fallback.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]localEntry

	hits   atomic.Int64
	misses atomic.Int64
}

// New connects to Redis and falls back to the in-process map when the
// address is unset or the initial ping fails. The service always starts.
func New(cfg Config) *ResultCache {
	c := &ResultCache{ttl: cfg.TTL, local: make(map[string]localEntry)}
	if c.ttl <= 0 {
		c.ttl = 24 * time.Hour
	}

	if cfg.Addr == "" {
		slog.Info("result cache using in-memory fallback", "reason", "no redis address configured")
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, result cache using in-memory fallback", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return c
	}

	c.client = client
	slog.Info("result cache connected to redis", "addr", cfg.Addr, "ttl", c.ttl.String())
	return c
}

// Key derives the storage key. The prefix stays outside the digest so
// pattern deletes can match every stored key.
func Key(address string, radiusMiles float64) string {
	norm := analysis.NormalizeAddress(address)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.1f", norm, radiusMiles)))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached result for the address/radius pair, or false on
// any miss, expiry, backend failure, or decode failure.
func (c *ResultCache) Get(ctx context.Context, address string, radiusMiles float64) (*analysis.Result, bool) {
	key := Key(address, radiusMiles)

	payload, ok := c.fetch(ctx, key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	var res analysis.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		slog.Warn("discarding undecodable cache entry", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &res, true
}

func (c *ResultCache) fetch(ctx context.Context, key string) ([]byte, bool) {
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				slog.Warn("cache read failed", "key", key, "error", err)
			}
			return nil, false
		}
		return payload, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.local[key]
	if !ok {
		return nil, false
	}
	// A stale entry is indistinguishable from a miss.
	if time.Since(e.storedAt) > c.ttl {
		delete(c.local, key)
		return nil, false
	}
	return e.payload, true
}

// Set stores the result with the configured TTL. Failures are logged and
// swallowed; callers never wait on cache health.
func (c *ResultCache) Set(ctx context.Context, address string, radiusMiles float64, res *analysis.Result) {
	payload, err := json.Marshal(res)
	if err != nil {
		slog.Warn("cache encode failed", "error", err)
		return
	}
	key := Key(address, radiusMiles)

	if c.client != nil {
		if err := c.client.SetEx(ctx, key, payload, c.ttl).Err(); err != nil {
			slog.Warn("cache write failed", "key", key, "error", err)
		}
		return
	}

	c.mu.Lock()
	c.local[key] = localEntry{payload: payload, storedAt: time.Now()}
	c.mu.Unlock()
}

// ClearAll drops every stored analysis and reports how many went.
func (c *ResultCache) ClearAll(ctx context.Context) int {
	if c.client != nil {
		keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
		if err != nil {
			slog.Warn("cache clear failed", "error", err)
			return 0
		}
		if len(keys) == 0 {
			return 0
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			slog.Warn("cache clear failed", "error", err)
			return 0
		}
		return len(keys)
	}

	c.mu.Lock()
	n := len(c.local)
	c.local = make(map[string]localEntry)
	c.mu.Unlock()
	return n
}

// Stats reports the backend in use plus process-local hit/miss counters.
type Stats struct {
	Backend        string  `json:"backend"`
	Items          int     `json:"items"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRatePercent float64 `json:"hit_rate_percent"`
}

func (c *ResultCache) Stats(ctx context.Context) Stats {
	s := Stats{
		Backend: c.Backend(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatePercent = math.Round(float64(s.Hits)/float64(total)*1000) / 10
	}

	if c.client != nil {
		keys, err := c.client.Keys(ctx, keyPrefix+"*").Result()
		if err != nil {
			slog.Warn("cache stats scan failed", "error", err)
			return s
		}
		s.Items = len(keys)
		return s
	}

	c.mu.Lock()
	s.Items = len(c.local)
	c.mu.Unlock()
	return s
}

// Backend names the active storage tier.
func (c *ResultCache) Backend() string {
	if c.client != nil {
		return "redis"
	}
	return "in-memory"
}

// Healthy pings Redis; the fallback map is always healthy.
func (c *ResultCache) Healthy(ctx context.Context) bool {
	if c.client == nil {
		return true
	}
	return c.client.Ping(ctx).Err() == nil
}

// Close releases the Redis connection if one is open.
func (c *ResultCache) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}
