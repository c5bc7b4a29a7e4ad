// Package cache memoises match predictions. Lookups go to an in-process
// L1 first, then to Redis when one is configured. Cache faults are logged
// and treated as misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/predictor/internal/model"
)

// Level says where a lookup was served from.
type Level string

const (
	LevelL1   Level = "L1"
	LevelL2   Level = "L2"
	LevelMiss Level = "miss"
)

const (
	keyPrefix      = "predictor:match:"
	defaultMaxSize = 10000
)

// Option configures a Cache.
type Option func(*Cache)

// WithRedis adds client as the shared L2.
func WithRedis(client *redis.Client) Option {
	return func(c *Cache) { c.redis = client }
}

// WithMaxSize bounds the L1 entry count. Default: 10000.
func WithMaxSize(n int) Option {
	return func(c *Cache) { c.maxSize = n }
}

// Cache is a two-level prediction cache. Keys include the model version
// so a redeploy with new artifacts never serves stale entries.
type Cache struct {
	version string
	ttl     time.Duration
	maxSize int
	local   *Local
	redis   *redis.Client
}

// New creates a cache for predictions made by model version.
func New(version string, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{version: version, ttl: ttl, maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(c)
	}
	c.local = NewLocal(ttl, c.maxSize)
	return c
}

// NewRedis connects to a Redis server and pings it.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: connect to redis %s: %w", addr, err)
	}
	return client, nil
}

// Key builds the cache key of req. Category strings are NFC-normalised
// and empty optional fields collapse to the Unknown category, so
// requests that encode identically share a key.
func (c *Cache) Key(req model.MatchRequest) string {
	parts := make([]string, 0, len(model.Fields)+1)
	parts = append(parts, c.version)
	for _, f := range model.Fields {
		parts = append(parts, norm.NFC.String(strings.TrimSpace(req.Value(f))))
	}
	return keyPrefix + strings.Join(parts, "|")
}

// Get looks req up in L1, then L2. An L2 hit is copied into L1.
func (c *Cache) Get(ctx context.Context, req model.MatchRequest) (model.MatchPrediction, Level, bool) {
	key := c.Key(req)
	if p, ok := c.local.Get(key); ok {
		return p, LevelL1, true
	}
	if c.redis == nil {
		return model.MatchPrediction{}, LevelMiss, false
	}

	raw, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.MatchPrediction{}, LevelMiss, false
	}
	if err != nil {
		slog.Warn("cache: redis get failed", "error", err)
		return model.MatchPrediction{}, LevelMiss, false
	}
	var p model.MatchPrediction
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("cache: dropping undecodable entry", "key", key, "error", err)
		c.redis.Del(ctx, key)
		return model.MatchPrediction{}, LevelMiss, false
	}
	c.local.Set(key, p)
	return p, LevelL2, true
}

// Set stores p for req in both levels.
func (c *Cache) Set(ctx context.Context, req model.MatchRequest, p model.MatchPrediction) {
	key := c.Key(req)
	c.local.Set(key, p)
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		slog.Warn("cache: encode failed", "error", err)
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("cache: redis set failed", "error", err)
	}
}

// Stats summarises cache state for /health.
type Stats struct {
	Backend    string  `json:"backend"`
	Entries    int     `json:"entries"`
	L1HitRate  float64 `json:"l1_hit_rate"`
	RedisReady bool    `json:"redis_ready,omitempty"`
}

// Stats reports sizes and hit rates; with Redis it also pings.
func (c *Cache) Stats(ctx context.Context) Stats {
	s := Stats{Backend: "local", Entries: c.local.Len(), L1HitRate: c.local.HitRate()}
	if c.redis != nil {
		s.Backend = "redis"
		s.RedisReady = c.redis.Ping(ctx).Err() == nil
	}
	return s
}

// Close stops the L1 sweeper and closes the Redis client.
func (c *Cache) Close() error {
	c.local.Close()
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
