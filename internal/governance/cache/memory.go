package cache

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
)

type memoryEntry struct {
	value     calibration.Map
	expiresAt time.Time
}

// Memory is an in-process TTL cache for calibration maps.
// The clock is injectable so tests control staleness deterministically.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   func() time.Time
}

// NewMemory creates an in-memory map cache. A non-positive ttl falls back to
// DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// NewMemoryWithClock creates an in-memory cache with an injected clock.
func NewMemoryWithClock(ttl time.Duration, clock func() time.Time) *Memory {
	cache := NewMemory(ttl)
	if clock != nil {
		cache.clock = clock
	}
	return cache
}

// Get returns the cached map for key when present and unexpired.
func (c *Memory) Get(ctx context.Context, key string) (calibration.Map, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return calibration.Map{}, false
	}
	if c.clock().After(entry.expiresAt) {
		c.Invalidate(ctx, key)
		return calibration.Map{}, false
	}
	return entry.value, true
}

// Put stores a map under key until the TTL elapses.
func (c *Memory) Put(ctx context.Context, key string, m calibration.Map) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: m, expiresAt: c.clock().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the entry for key.
func (c *Memory) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

var _ MapCache = (*Memory)(nil)
