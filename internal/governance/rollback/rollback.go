// Package rollback reverts a horizon to its previous model or to a rules-only
// baseline. A rollback always reaches some well-defined state: when the
// requested destination does not exist the service degrades to rules-only
// instead of erroring.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
	"github.com/louisbranch/alphasignal/internal/governance/observability/audit"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
)

var rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "governance_rollbacks_total",
	Help: "Total rollback attempts by destination type and outcome.",
}, []string{"type", "outcome"})

// Type selects the rollback destination.
type Type string

const (
	// TypeToPrevious restores the horizon's previous model.
	TypeToPrevious Type = "TO_PREVIOUS"
	// TypeToRulesOnly clears the active model entirely; decision consumers
	// fall back to deterministic rules.
	TypeToRulesOnly Type = "TO_RULES_ONLY"
)

// ParseType converts an operator-supplied label into a rollback type.
func ParseType(label string) (Type, error) {
	switch Type(label) {
	case TypeToPrevious, TypeToRulesOnly:
		return Type(label), nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeRollbackInvalidType,
			"unknown rollback type",
			map[string]string{"Type": label},
		)
	}
}

// Result describes the state a rollback landed in.
type Result struct {
	Horizon string
	// EffectiveType is the destination actually used. TO_PREVIOUS degrades
	// to TO_RULES_ONLY when no restorable previous model exists.
	EffectiveType     Type
	Degraded          bool
	RolledBackModelID string
	// RestoredModelID is empty when the horizon landed rules-only.
	RestoredModelID string
	RollbackCount   int
}

// Service reverts horizons to a previous safe state.
type Service struct {
	store   storage.ModelStore
	emitter *audit.Emitter
	clock   func() time.Time
}

// New creates a rollback service.
func New(store storage.ModelStore, emitter *audit.Emitter) *Service {
	return &Service{store: store, emitter: emitter, clock: time.Now}
}

// Rollback reverts a horizon. It emits a STARTED event before any mutation
// and exactly one terminal event (SUCCEEDED or FAILED) after, so an external
// reconciler can detect a crash mid-operation by a STARTED event with no
// terminal sibling.
func (s *Service) Rollback(ctx context.Context, horizon, reason, triggeredBy string, typ Type) (Result, error) {
	ctx, span := otel.Tracer("governance/rollback").Start(ctx, "rollback.execute")
	defer span.End()

	if s.store == nil {
		return Result{}, fmt.Errorf("model store is not configured")
	}
	if _, err := ParseType(string(typ)); err != nil {
		return Result{}, err
	}

	pointer, err := s.store.GetActivePointer(ctx, horizon)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, apperrors.WithMetadata(
				apperrors.CodeModelNotFound,
				"no active model to roll back",
				map[string]string{"Horizon": horizon},
			)
		}
		return Result{}, fmt.Errorf("load active pointer: %w", err)
	}
	if pointer.RulesOnly() {
		return Result{}, apperrors.WithMetadata(
			apperrors.CodeModelNotFound,
			"no active model to roll back",
			map[string]string{"Horizon": horizon},
		)
	}

	s.emitter.Record(ctx, storage.AuditEvent{
		EventType:      audit.TypeRollbackStarted,
		Horizon:        horizon,
		ModelVersionID: pointer.ActiveModelID,
		Details: map[string]string{
			"reason": reason,
			"type":   string(typ),
		},
		TriggeredBy: triggeredBy,
		Severity:    string(audit.SeverityWarn),
	})

	result, err := s.execute(ctx, pointer, typ)
	if err != nil {
		rollbacksTotal.WithLabelValues(string(typ), "failed").Inc()
		s.emitter.Record(ctx, storage.AuditEvent{
			EventType:      audit.TypeRollbackFailed,
			Horizon:        horizon,
			ModelVersionID: pointer.ActiveModelID,
			Details: map[string]string{
				"reason": reason,
				"type":   string(typ),
				"error":  err.Error(),
			},
			TriggeredBy: triggeredBy,
			Severity:    string(audit.SeverityError),
		})
		return Result{}, err
	}

	rollbacksTotal.WithLabelValues(string(result.EffectiveType), "succeeded").Inc()
	s.emitter.Record(ctx, storage.AuditEvent{
		EventType:      audit.TypeRollbackSucceeded,
		Horizon:        horizon,
		ModelVersionID: result.RolledBackModelID,
		Details: map[string]string{
			"reason":            reason,
			"type":              string(result.EffectiveType),
			"restored_model_id": result.RestoredModelID,
		},
		TriggeredBy: triggeredBy,
		Severity:    string(audit.SeverityWarn),
	})
	return result, nil
}

// AutoRollback is the live-monitor entry point. It emits a CRITICAL TRIGGERED
// event before delegating so monitor-initiated reversals are distinguishable
// from operator-initiated ones in the ledger.
func (s *Service) AutoRollback(ctx context.Context, horizon, reason, reportID string) (Result, error) {
	s.emitter.Record(ctx, storage.AuditEvent{
		EventType: audit.TypeRollbackTriggered,
		Horizon:   horizon,
		Details: map[string]string{
			"reason":    reason,
			"report_id": reportID,
		},
		TriggeredBy: "live-monitor",
		Severity:    string(audit.SeverityCritical),
	})
	return s.Rollback(ctx, horizon, reason, "live-monitor", TypeToPrevious)
}

// execute performs the pointer swap. The demote of the active model, the
// optional restore of the previous model, and the pointer update land in one
// optimistic-concurrency transaction; a failed swap leaves prior state intact.
func (s *Service) execute(ctx context.Context, pointer model.ActivePointer, typ Type) (Result, error) {
	active, err := s.store.GetModelVersion(ctx, pointer.ActiveModelID)
	if err != nil {
		return Result{}, fmt.Errorf("load active model: %w", err)
	}
	demoted, err := model.TransitionStatus(active, model.StatusRolledBack, s.clock)
	if err != nil {
		return Result{}, err
	}

	effective := typ
	degraded := false
	var restored *model.Version
	if typ == TypeToPrevious {
		previous, ok, err := s.restorablePrevious(ctx, pointer)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			effective = TypeToRulesOnly
			degraded = true
		} else {
			promoted, err := model.TransitionStatus(previous, model.StatusPromoted, s.clock)
			if err != nil {
				return Result{}, err
			}
			restored = &promoted
		}
	}

	now := s.clock().UTC()
	next := model.ActivePointer{
		Horizon:         pointer.Horizon,
		PreviousModelID: demoted.ID,
		RollbackCount:   pointer.RollbackCount + 1,
		LastRollbackAt:  &now,
		UpdatedAt:       now,
	}
	updates := []model.Version{demoted}
	if restored != nil {
		next.ActiveModelID = restored.ID
		updates = append(updates, *restored)
	}
	if err := s.store.SwapActivePointer(ctx, next, pointer.Version, updates); err != nil {
		return Result{}, err
	}

	result := Result{
		Horizon:           pointer.Horizon,
		EffectiveType:     effective,
		Degraded:          degraded,
		RolledBackModelID: demoted.ID,
		RollbackCount:     next.RollbackCount,
	}
	if restored != nil {
		result.RestoredModelID = restored.ID
	}
	return result, nil
}

// restorablePrevious loads the previous model when one exists and can return
// to PROMOTED. A rejected or missing previous model is not a destination.
func (s *Service) restorablePrevious(ctx context.Context, pointer model.ActivePointer) (model.Version, bool, error) {
	if pointer.PreviousModelID == "" {
		return model.Version{}, false, nil
	}
	previous, err := s.store.GetModelVersion(ctx, pointer.PreviousModelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Version{}, false, nil
		}
		return model.Version{}, false, fmt.Errorf("load previous model: %w", err)
	}
	if previous.Status == model.StatusRejected {
		return model.Version{}, false, nil
	}
	return previous, true, nil
}
