package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/readiness"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

// Readiness recomputes the production readiness gates from current metrics
// and persists the per-gate results. Evaluation is idempotent; refreshing
// twice with the same inputs stores the same verdicts.
type Readiness struct {
	store storage.ReadinessStore
	clock func() time.Time
	cfg   readiness.Config
}

// NewReadiness creates a readiness refresh workflow.
func NewReadiness(store storage.ReadinessStore, cfg readiness.Config) *Readiness {
	return &Readiness{store: store, clock: time.Now, cfg: cfg}
}

// Refresh evaluates all gates over the supplied metrics, stores each result,
// and reports whether the system is ready for production ML influence.
func (r *Readiness) Refresh(ctx context.Context, inputs readiness.Inputs) ([]readiness.GateResult, bool, error) {
	results := readiness.Evaluate(inputs, r.cfg, r.clock)
	for _, result := range results {
		if err := r.store.PutGateResult(ctx, result); err != nil {
			return nil, false, fmt.Errorf("persist gate %s: %w", result.Gate, err)
		}
	}
	return results, readiness.ReadyForProd(results), nil
}

// Current returns the stored gate results and the derived readiness verdict
// without re-evaluating.
func (r *Readiness) Current(ctx context.Context) ([]readiness.GateResult, bool, error) {
	results, err := r.store.ListGateResults(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load gate results: %w", err)
	}
	return results, readiness.ReadyForProd(results), nil
}
