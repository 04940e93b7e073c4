// Package workflow orchestrates the multi-step governance flows: candidate
// promotion and calibration map activation. The workflows own the cross-record
// sequencing (fetch inputs, score gates, rate-limit, mutate, audit); the pure
// scoring lives in evaluation and guard.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/louisbranch/alphasignal/internal/governance/domain/drift"
	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
	"github.com/louisbranch/alphasignal/internal/governance/evaluation"
	"github.com/louisbranch/alphasignal/internal/governance/observability/audit"
	"github.com/louisbranch/alphasignal/internal/governance/registry"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
)

const (
	// DefaultMaxPromotionsPerWindow caps promotions per horizon inside the
	// rolling rate window.
	DefaultMaxPromotionsPerWindow = 4
	// DefaultRateWindow is the rolling window for the promotion rate limiter.
	DefaultRateWindow = 30 * 24 * time.Hour
)

// PromotionConfig tunes the promotion workflow.
type PromotionConfig struct {
	MaxPromotionsPerWindow int
	RateWindow             time.Duration
	Gates                  evaluation.Config
	// HorizonGates overrides gate thresholds per horizon.
	HorizonGates map[string]evaluation.Config
}

// DefaultPromotionConfig returns the workflow defaults.
func DefaultPromotionConfig() PromotionConfig {
	return PromotionConfig{
		MaxPromotionsPerWindow: DefaultMaxPromotionsPerWindow,
		RateWindow:             DefaultRateWindow,
		Gates:                  evaluation.DefaultConfig(),
	}
}

// gatesFor resolves the gate thresholds for a horizon.
func (c PromotionConfig) gatesFor(horizon string) evaluation.Config {
	if override, ok := c.HorizonGates[horizon]; ok {
		return override
	}
	return c.Gates
}

// Promotion drives a candidate from trainer submission to live influence.
type Promotion struct {
	registry *registry.Service
	store    storage.ModelStore
	emitter  *audit.Emitter
	clock    func() time.Time
	cfg      PromotionConfig
}

// NewPromotion creates a promotion workflow.
func NewPromotion(reg *registry.Service, store storage.ModelStore, emitter *audit.Emitter, cfg PromotionConfig) *Promotion {
	if cfg.MaxPromotionsPerWindow <= 0 {
		cfg.MaxPromotionsPerWindow = DefaultMaxPromotionsPerWindow
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultRateWindow
	}
	return &Promotion{
		registry: reg,
		store:    store,
		emitter:  emitter,
		clock:    time.Now,
		cfg:      cfg,
	}
}

// SubmitCandidate is the trainer entry point. It registers the candidate and
// records the submission; the candidate gains no influence until promoted.
func (p *Promotion) SubmitCandidate(ctx context.Context, input model.NewCandidateInput) (model.Version, error) {
	version, err := p.registry.Register(ctx, input)
	if err != nil {
		return model.Version{}, err
	}
	p.emitter.Record(ctx, storage.AuditEvent{
		EventType:      audit.TypeCandidateSubmitted,
		Horizon:        version.Horizon,
		ModelVersionID: version.ID,
		Details: map[string]string{
			"dataset_version": version.DatasetVersion,
			"sample_count":    strconv.Itoa(version.Metrics.SampleCount),
		},
		TriggeredBy: "trainer",
		Severity:    string(audit.SeverityInfo),
	})
	return version, nil
}

// EvaluateCandidate scores a candidate against the horizon's active baseline.
// It mutates nothing; callers inspect the result before promoting.
func (p *Promotion) EvaluateCandidate(ctx context.Context, versionID string, driftLevel drift.Level) (evaluation.Result, error) {
	candidate, err := p.store.GetModelVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return evaluation.Result{}, apperrors.Wrap(apperrors.CodeModelNotFound, "model version not found", err)
		}
		return evaluation.Result{}, fmt.Errorf("load model version: %w", err)
	}

	input := evaluation.Input{
		Candidate: candidate.Metrics,
		Drift:     driftLevel,
	}
	baseline, ok, err := p.registry.GetActive(ctx, candidate.Horizon)
	if err != nil {
		return evaluation.Result{}, err
	}
	if ok {
		input.Baseline = baseline.Metrics
		input.HasBaseline = true
	}
	return evaluation.Evaluate(input, p.cfg.gatesFor(candidate.Horizon)), nil
}

// Promote runs the full promotion pipeline for a candidate: gate evaluation,
// the rolling promotion rate limit, then the registry's atomic promote. A
// blocked promotion records a PROMOTION_BLOCKED audit event and returns a
// typed error; nothing is mutated.
func (p *Promotion) Promote(ctx context.Context, versionID string, driftLevel drift.Level) (model.Version, error) {
	ctx, span := otel.Tracer("governance/workflow").Start(ctx, "promotion.promote")
	defer span.End()

	candidate, err := p.store.GetModelVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Version{}, apperrors.Wrap(apperrors.CodeModelNotFound, "model version not found", err)
		}
		return model.Version{}, fmt.Errorf("load model version: %w", err)
	}
	if candidate.Status == model.StatusPromoted {
		return candidate, nil
	}

	result, err := p.EvaluateCandidate(ctx, versionID, driftLevel)
	if err != nil {
		return model.Version{}, err
	}
	if !result.Passed {
		gates := make([]string, 0, len(result.Failures))
		for _, failure := range result.Failures {
			gates = append(gates, failure.Gate)
		}
		p.recordBlocked(ctx, candidate, "gates_failed", strings.Join(gates, ","))
		return model.Version{}, apperrors.WithMetadata(
			apperrors.CodePromotionGatesFailed,
			"candidate failed promotion gates",
			map[string]string{
				"ModelVersionID": candidate.ID,
				"FailedGates":    strings.Join(gates, ","),
			},
		)
	}

	since := p.clock().UTC().Add(-p.cfg.RateWindow)
	recent, err := p.store.CountPromotionsSince(ctx, candidate.Horizon, since)
	if err != nil {
		return model.Version{}, fmt.Errorf("count recent promotions: %w", err)
	}
	if recent >= p.cfg.MaxPromotionsPerWindow {
		p.recordBlocked(ctx, candidate, "rate_limited", strconv.Itoa(recent))
		return model.Version{}, apperrors.WithMetadata(
			apperrors.CodePromotionRateLimited,
			"promotion rate limit reached for horizon",
			map[string]string{
				"Horizon":          candidate.Horizon,
				"RecentPromotions": strconv.Itoa(recent),
				"Limit":            strconv.Itoa(p.cfg.MaxPromotionsPerWindow),
			},
		)
	}

	return p.registry.Promote(ctx, versionID)
}

func (p *Promotion) recordBlocked(ctx context.Context, candidate model.Version, cause, detail string) {
	p.emitter.Record(ctx, storage.AuditEvent{
		EventType:      audit.TypePromotionBlocked,
		Horizon:        candidate.Horizon,
		ModelVersionID: candidate.ID,
		Details: map[string]string{
			"cause":  cause,
			"detail": detail,
		},
		TriggeredBy: "promotion-workflow",
		Severity:    string(audit.SeverityWarn),
	})
}
