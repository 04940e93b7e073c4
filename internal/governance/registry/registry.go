// Package registry owns model version lifecycle transitions and the active
// pointer per decision horizon.
//
// The registry enforces state invariants only. It never re-runs evaluation
// gates; callers must have already passed the evaluation engine before
// promoting.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
	"github.com/louisbranch/alphasignal/internal/governance/observability/audit"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
	"github.com/louisbranch/alphasignal/internal/platform/id"
)

// ErrPromotedRejectForbidden indicates an attempt to reject the live model.
// The model must be rolled back before rejection.
var ErrPromotedRejectForbidden = apperrors.New(
	apperrors.CodeModelPromotedRejectForbidden,
	"cannot reject a promoted model; roll back first",
)

// Service manages the governed model version lifecycle.
type Service struct {
	store   storage.ModelStore
	emitter *audit.Emitter
	clock   func() time.Time
	newID   func() (string, error)
}

// New creates a registry service with default clock and id generation.
func New(store storage.ModelStore, emitter *audit.Emitter) *Service {
	return &Service{
		store:   store,
		emitter: emitter,
		clock:   time.Now,
		newID:   id.NewID,
	}
}

// Register records a trainer-submitted candidate. The candidate gains no
// influence until promoted.
func (s *Service) Register(ctx context.Context, input model.NewCandidateInput) (model.Version, error) {
	if s.store == nil {
		return model.Version{}, fmt.Errorf("model store is not configured")
	}

	version, err := model.NewCandidate(input, s.clock, s.newID)
	if err != nil {
		return model.Version{}, err
	}
	if err := s.store.PutModelVersion(ctx, version); err != nil {
		return model.Version{}, fmt.Errorf("persist candidate: %w", err)
	}

	s.emitter.Record(ctx, storage.AuditEvent{
		EventType:      audit.TypeModelRegistered,
		Horizon:        version.Horizon,
		ModelVersionID: version.ID,
		Details: map[string]string{
			"dataset_version": version.DatasetVersion,
		},
		TriggeredBy: "trainer",
		Severity:    string(audit.SeverityInfo),
	})
	return version, nil
}

// Promote makes a model version the live model for its horizon.
//
// Promoting an already-promoted version is a no-op: no state change and no
// duplicate audit event. The supersede of the previous model, the candidate
// promotion, and the pointer swap land in one atomic storage transaction
// guarded by the pointer's optimistic version.
func (s *Service) Promote(ctx context.Context, versionID string) (model.Version, error) {
	if s.store == nil {
		return model.Version{}, fmt.Errorf("model store is not configured")
	}

	candidate, err := s.store.GetModelVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Version{}, apperrors.Wrap(apperrors.CodeModelNotFound, "model version not found", err)
		}
		return model.Version{}, fmt.Errorf("load model version: %w", err)
	}

	if candidate.Status == model.StatusPromoted {
		return candidate, nil
	}
	if candidate.Status == model.StatusRejected {
		return model.Version{}, apperrors.WithMetadata(
			apperrors.CodeModelAlreadyRejected,
			"cannot promote a rejected model version",
			map[string]string{"ModelVersionID": candidate.ID},
		)
	}

	pointer, err := s.store.GetActivePointer(ctx, candidate.Horizon)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return model.Version{}, fmt.Errorf("load active pointer: %w", err)
	}

	updates := make([]model.Version, 0, 2)
	previousID := pointer.ActiveModelID
	if previousID != "" {
		current, err := s.store.GetModelVersion(ctx, previousID)
		if err != nil {
			return model.Version{}, fmt.Errorf("load active model: %w", err)
		}
		superseded, err := model.TransitionStatus(current, model.StatusSuperseded, s.clock)
		if err != nil {
			return model.Version{}, err
		}
		updates = append(updates, superseded)
	}

	promoted, err := model.TransitionStatus(candidate, model.StatusPromoted, s.clock)
	if err != nil {
		return model.Version{}, err
	}
	updates = append(updates, promoted)

	now := s.clock().UTC()
	next := model.ActivePointer{
		Horizon:         candidate.Horizon,
		ActiveModelID:   promoted.ID,
		PreviousModelID: previousID,
		RollbackCount:   pointer.RollbackCount,
		LastRollbackAt:  pointer.LastRollbackAt,
		UpdatedAt:       now,
	}
	if err := s.store.SwapActivePointer(ctx, next, pointer.Version, updates); err != nil {
		return model.Version{}, err
	}

	s.emitter.Record(ctx, storage.AuditEvent{
		EventType:      audit.TypeModelPromoted,
		Horizon:        promoted.Horizon,
		ModelVersionID: promoted.ID,
		Details: map[string]string{
			"previous_model_id": previousID,
			"dataset_version":   promoted.DatasetVersion,
		},
		TriggeredBy: "promotion-workflow",
		Severity:    string(audit.SeverityInfo),
	})
	return promoted, nil
}

// Reject permanently bars a model version from promotion. A promoted model
// must be rolled back first. Rejecting an already-rejected version is a
// no-op.
func (s *Service) Reject(ctx context.Context, versionID, reason, triggeredBy string) (model.Version, error) {
	if s.store == nil {
		return model.Version{}, fmt.Errorf("model store is not configured")
	}

	version, err := s.store.GetModelVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Version{}, apperrors.Wrap(apperrors.CodeModelNotFound, "model version not found", err)
		}
		return model.Version{}, fmt.Errorf("load model version: %w", err)
	}

	if version.Status == model.StatusRejected {
		return version, nil
	}
	if version.Status == model.StatusPromoted {
		return model.Version{}, ErrPromotedRejectForbidden
	}

	rejected, err := model.TransitionStatus(version, model.StatusRejected, s.clock)
	if err != nil {
		return model.Version{}, err
	}
	rejected.RejectionReason = reason
	if err := s.store.PutModelVersion(ctx, rejected); err != nil {
		return model.Version{}, fmt.Errorf("persist rejection: %w", err)
	}

	s.emitter.Record(ctx, storage.AuditEvent{
		EventType:      audit.TypeModelRejected,
		Horizon:        rejected.Horizon,
		ModelVersionID: rejected.ID,
		Details: map[string]string{
			"reason": reason,
		},
		TriggeredBy: triggeredBy,
		Severity:    string(audit.SeverityWarn),
	})
	return rejected, nil
}

// GetActive returns the live model for a horizon, or ok=false when the
// horizon runs rules-only. Decision consumers call this on every decision;
// it performs at most one storage round trip per record.
func (s *Service) GetActive(ctx context.Context, horizon string) (model.Version, bool, error) {
	if s.store == nil {
		return model.Version{}, false, fmt.Errorf("model store is not configured")
	}

	pointer, err := s.store.GetActivePointer(ctx, horizon)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Version{}, false, nil
		}
		return model.Version{}, false, fmt.Errorf("load active pointer: %w", err)
	}
	if pointer.RulesOnly() {
		return model.Version{}, false, nil
	}

	version, err := s.store.GetModelVersion(ctx, pointer.ActiveModelID)
	if err != nil {
		return model.Version{}, false, fmt.Errorf("load active model: %w", err)
	}
	return version, true, nil
}
