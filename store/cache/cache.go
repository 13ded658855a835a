// Package cache provides a process-local in-memory cache with optional TTL
// and a max-items bound.
//
// The map supports concurrent reads from many callers; writes take the
// exclusive lock only for the duration of the map assignment, never across
// a data-source call. Per-key get/put is linearizable: once Set returns for
// a key, every subsequent Get observes that value (or a newer one).
package cache

import (
	"context"
	"sync"
	"time"
)

// Config holds the cache settings.
type Config struct {
	// DefaultTTL is applied by Set. Zero means entries never expire.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are swept. Zero
	// disables the background sweeper; expired entries are then only
	// dropped lazily on Get.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size. Zero means unbounded. When full,
	// the oldest entry is evicted to make room.
	MaxItems int
	// OnEviction, if set, is called (outside the lock) for entries removed
	// by eviction or the sweeper.
	OnEviction func(key string, value any)
}

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time // zero means never
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is an in-memory key/value store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	config  Config

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new cache and starts the background sweeper when a
// cleanup interval is configured.
func New(config Config) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		config:  config,
		done:    make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.sweep()
	}
	return c
}

// Get returns the value stored under key. Expired entries are treated as
// misses.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL. A zero ttl keeps
// the entry for the cache lifetime. Last write wins.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	now := time.Now()
	e := &entry{value: value, createdAt: now}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	var evictedKey string
	var evictedValue any
	var evicted bool

	c.mu.Lock()
	if c.config.MaxItems > 0 && len(c.entries) >= c.config.MaxItems {
		if _, exists := c.entries[key]; !exists {
			evictedKey, evictedValue, evicted = c.evictOldestLocked()
		}
	}
	c.entries[key] = e
	c.mu.Unlock()

	if evicted && c.config.OnEviction != nil {
		c.config.OnEviction(evictedKey, evictedValue)
	}
}

// Delete removes the entry stored under key.
func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *Cache) Clear(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, including not-yet-swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// evictOldestLocked removes the entry with the oldest createdAt.
// Caller must hold the write lock.
func (c *Cache) evictOldestLocked() (string, any, bool) {
	var oldestKey string
	var oldest *entry
	for key, e := range c.entries {
		if oldest == nil || e.createdAt.Before(oldest.createdAt) {
			oldestKey, oldest = key, e
		}
	}
	if oldest == nil {
		return "", nil, false
	}
	delete(c.entries, oldestKey)
	return oldestKey, oldest.value, true
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	now := time.Now()
	type removed struct {
		key   string
		value any
	}
	var removals []removed

	c.mu.Lock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			if c.config.OnEviction != nil {
				removals = append(removals, removed{key, e.value})
			}
		}
	}
	c.mu.Unlock()

	for _, r := range removals {
		c.config.OnEviction(r.key, r.value)
	}
}
