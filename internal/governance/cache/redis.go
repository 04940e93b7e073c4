package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
)

// Redis is a shared TTL cache for calibration maps backed by go-redis.
// Useful when several decision consumers share one calibration view.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed map cache. A non-positive ttl falls back
// to DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Get returns the cached map for key. Backend errors and decode failures are
// treated as misses; the hot path never fails on cache trouble.
func (c *Redis) Get(ctx context.Context, key string) (calibration.Map, bool) {
	if c == nil || c.client == nil {
		return calibration.Map{}, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return calibration.Map{}, false
	}
	var m calibration.Map
	if err := json.Unmarshal(payload, &m); err != nil {
		return calibration.Map{}, false
	}
	return m, true
}

// Put stores a map under key with the configured TTL. Best effort.
func (c *Redis) Put(ctx context.Context, key string, m calibration.Map) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops the entry for key. Best effort.
func (c *Redis) Invalidate(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, key).Err()
}

var _ MapCache = (*Redis)(nil)
