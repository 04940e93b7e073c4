// Package runtime applies active calibration maps to raw confidence values
// on the hot decision path.
//
// Calibration is an enhancement, never a hard dependency: on an inactive
// window, missing map, zero-sample bin, or storage failure the runtime fails
// open and returns the raw value unchanged.
package runtime

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/louisbranch/alphasignal/internal/governance/cache"
	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
	"github.com/louisbranch/alphasignal/internal/governance/observability/audit"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_calibration_cache_hits_total",
		Help: "Calibration map lookups served from cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_calibration_cache_misses_total",
		Help: "Calibration map lookups that fell through to storage.",
	})
	failOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_calibration_fail_open_total",
		Help: "Calibration calls that returned raw confidence due to storage trouble.",
	})
)

// Options adjusts a single calibration call.
type Options struct {
	// Audit opts into best-effort logging of the raw-to-calibrated
	// transformation under AuditKey.
	Audit    bool
	AuditKey string
}

// Runtime serves calibrated confidence values for decision consumers.
type Runtime struct {
	store   storage.CalibrationStore
	cache   cache.MapCache
	emitter *audit.Emitter
}

// New creates a calibration runtime. The cache is required; pass a Memory
// cache with the default TTL for single-process deployments.
func New(store storage.CalibrationStore, mapCache cache.MapCache, emitter *audit.Emitter) *Runtime {
	return &Runtime{store: store, cache: mapCache, emitter: emitter}
}

// CalibrateConfidence adjusts one raw confidence value for a window.
//
// The active map is fetched through the TTL cache; the cache is never the
// system of record. Values landing in a zero-sample bin pass through
// unchanged, and the result is always clamped to [0,1].
func (r *Runtime) CalibrateConfidence(ctx context.Context, window string, raw float64, opts Options) float64 {
	m, ok := r.activeMap(ctx, window)
	if !ok {
		return raw
	}

	adjusted := m.Adjust(raw)

	if opts.Audit && r.emitter != nil {
		r.emitter.Record(ctx, storage.AuditEvent{
			EventType: audit.TypeCalibrationApplied,
			Window:    window,
			Details: map[string]string{
				"audit_key":  opts.AuditKey,
				"map_id":     m.ID,
				"raw":        strconv.FormatFloat(raw, 'f', -1, 64),
				"calibrated": strconv.FormatFloat(adjusted, 'f', -1, 64),
			},
			TriggeredBy: "calibration-runtime",
			Severity:    string(audit.SeverityInfo),
		})
	}

	return adjusted
}

// CalibrateBatch adjusts a slice of raw confidence values with a single map
// lookup and no per-sample audit, favoring throughput.
func (r *Runtime) CalibrateBatch(ctx context.Context, window string, raws []float64) []float64 {
	adjusted := make([]float64, len(raws))
	m, ok := r.activeMap(ctx, window)
	if !ok {
		copy(adjusted, raws)
		return adjusted
	}
	for i, raw := range raws {
		adjusted[i] = m.Adjust(raw)
	}
	return adjusted
}

// InvalidateWindow drops the cached map for a window after activation
// changes, forcing the next call to refetch from durable storage.
func (r *Runtime) InvalidateWindow(ctx context.Context, window, mapID string) {
	if r.cache == nil {
		return
	}
	r.cache.Invalidate(ctx, mapKey(window, mapID))
}

// activeMap resolves the live calibration map for a window, or reports that
// the call should fail open.
func (r *Runtime) activeMap(ctx context.Context, window string) (calibration.Map, bool) {
	if r == nil || r.store == nil {
		return calibration.Map{}, false
	}

	active, err := r.store.GetCalibrationActive(ctx, window)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			failOpens.Inc()
		}
		return calibration.Map{}, false
	}
	if active.Status != calibration.ActiveStatusActive || active.MapID == "" {
		return calibration.Map{}, false
	}

	key := mapKey(window, active.MapID)
	if r.cache != nil {
		if m, ok := r.cache.Get(ctx, key); ok {
			cacheHits.Inc()
			return m, true
		}
		cacheMisses.Inc()
	}

	m, err := r.store.GetCalibrationMap(ctx, active.MapID)
	if err != nil {
		failOpens.Inc()
		return calibration.Map{}, false
	}
	if r.cache != nil {
		r.cache.Put(ctx, key, m)
	}
	return m, true
}

func mapKey(window, mapID string) string {
	return "calibration:" + window + ":" + mapID
}
