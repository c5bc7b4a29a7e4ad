package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/predictor/internal/model"
)

type localItem struct {
	value     model.MatchPrediction
	expiresAt int64
}

// Local is an in-process TTL cache with a size bound. When full, an
// arbitrary entry is evicted.
type Local struct {
	mu      sync.RWMutex
	items   map[string]localItem
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	stop chan struct{}
	once sync.Once
}

// NewLocal creates a Local cache and starts its sweeper.
func NewLocal(ttl time.Duration, maxSize int) *Local {
	c := &Local{
		items:   make(map[string]localItem),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.sweep(sweepInterval(ttl))
	return c
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

// Get returns the live entry for key.
func (c *Local) Get(key string) (model.MatchPrediction, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || c.now().UnixNano() > item.expiresAt {
		c.misses.Add(1)
		return model.MatchPrediction{}, false
	}
	c.hits.Add(1)
	return item.value, true
}

// Set stores value under key for the cache TTL.
func (c *Local) Set(key string, value model.MatchPrediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxSize > 0 && len(c.items) >= c.maxSize {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	c.items[key] = localItem{value: value, expiresAt: c.now().Add(c.ttl).UnixNano()}
}

// Delete removes key.
func (c *Local) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports the number of stored entries, expired ones included until
// the next sweep.
func (c *Local) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// HitRate is hits / lookups, 0 before the first lookup.
func (c *Local) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Close stops the sweeper.
func (c *Local) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Local) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Local) removeExpired() {
	now := c.now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, item := range c.items {
		if now > item.expiresAt {
			delete(c.items, k)
		}
	}
}
