// Package cache provides bounded-TTL caching for active calibration maps.
//
// The cache is a performance optimization for the hot decision path and is
// never the system of record: invalidation forces a refetch from durable
// storage. Both backends treat every failure as a miss.
package cache

import (
	"context"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
)

// DefaultTTL bounds how stale a cached calibration map may be.
const DefaultTTL = 60 * time.Second

// MapCache stores calibration maps under caller-built keys.
type MapCache interface {
	// Get returns the cached map for key, or false on miss, expiry, or
	// backend failure.
	Get(ctx context.Context, key string) (calibration.Map, bool)
	// Put stores a map under key for the cache's TTL. Best effort.
	Put(ctx context.Context, key string, m calibration.Map)
	// Invalidate drops the entry for key. Best effort.
	Invalidate(ctx context.Context, key string)
}
