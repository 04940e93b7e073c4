// Package model defines trained model versions and their governed lifecycle.
package model

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
	"github.com/louisbranch/alphasignal/internal/platform/id"
)

// Status describes the lifecycle of a model version.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusCandidate indicates a trained model awaiting gate evaluation.
	StatusCandidate
	// StatusPromoted indicates the model currently influencing live decisions.
	StatusPromoted
	// StatusSuperseded indicates a model replaced by a newer promotion.
	StatusSuperseded
	// StatusRolledBack indicates a model demoted by an explicit rollback.
	StatusRolledBack
	// StatusRejected indicates a model permanently barred from promotion.
	StatusRejected
)

var (
	// ErrEmptyHorizon indicates a missing decision horizon.
	ErrEmptyHorizon = apperrors.New(apperrors.CodeModelHorizonEmpty, "model horizon is required")
	// ErrEmptyDatasetVersion indicates a missing dataset version.
	ErrEmptyDatasetVersion = apperrors.New(apperrors.CodeModelDatasetVersionEmpty, "dataset version is required")
)

// TrainingMetrics captures the offline evaluation metrics reported by the
// trainer for a model version. All rates and errors are fractions in [0,1];
// ValueOverRules is a multiplicative aggregate relative to the rules-only
// baseline (1.0 = parity).
type TrainingMetrics struct {
	SampleCount    int
	Precision      float64
	PRAUC          float64
	ECE            float64
	FalsePosRate   float64
	FalseNegRate   float64
	ValueOverRules float64
	AvgDrawdown    float64
}

// Version represents a trained model version under governance.
type Version struct {
	ID              string
	Horizon         string
	DatasetVersion  string
	Metrics         TrainingMetrics
	Status          Status
	CreatedAt       time.Time
	PromotedAt      *time.Time
	RejectedAt      *time.Time
	RejectionReason string
}

// ActivePointer tracks which model version is live for a horizon.
//
// There is exactly one pointer row per horizon. ActiveModelID empty means the
// horizon runs on deterministic rules only. Version is the optimistic
// concurrency token guarding promote/rollback transactions.
type ActivePointer struct {
	Horizon         string
	ActiveModelID   string
	PreviousModelID string
	RollbackCount   int
	LastRollbackAt  *time.Time
	Version         uint64
	UpdatedAt       time.Time
}

// RulesOnly reports whether the horizon currently runs without a model.
func (p ActivePointer) RulesOnly() bool {
	return strings.TrimSpace(p.ActiveModelID) == ""
}

// NewCandidateInput carries trainer-supplied fields for a new candidate.
type NewCandidateInput struct {
	Horizon        string
	DatasetVersion string
	Metrics        TrainingMetrics
}

// NewCandidate creates a CANDIDATE model version from trainer input.
func NewCandidate(input NewCandidateInput, now func() time.Time, newID func() (string, error)) (Version, error) {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}

	horizon := strings.TrimSpace(input.Horizon)
	if horizon == "" {
		return Version{}, ErrEmptyHorizon
	}
	datasetVersion := strings.TrimSpace(input.DatasetVersion)
	if datasetVersion == "" {
		return Version{}, ErrEmptyDatasetVersion
	}

	versionID, err := newID()
	if err != nil {
		return Version{}, fmt.Errorf("generate model version id: %w", err)
	}

	return Version{
		ID:             versionID,
		Horizon:        horizon,
		DatasetVersion: datasetVersion,
		Metrics:        input.Metrics,
		Status:         StatusCandidate,
		CreatedAt:      now().UTC(),
	}, nil
}

// TransitionStatus applies a status transition and updates timestamps.
func TransitionStatus(version Version, target Status, now func() time.Time) (Version, error) {
	if now == nil {
		now = time.Now
	}
	if !isStatusTransitionAllowed(version.Status, target) {
		fromStatus := StatusLabel(version.Status)
		toStatus := StatusLabel(target)
		return Version{}, apperrors.WithMetadata(
			apperrors.CodeModelInvalidStatusTransition,
			fmt.Sprintf("model status transition not allowed: %s -> %s", fromStatus, toStatus),
			map[string]string{"FromStatus": fromStatus, "ToStatus": toStatus},
		)
	}

	updated := version
	updated.Status = target
	at := now().UTC()
	switch target {
	case StatusPromoted:
		updated.PromotedAt = &at
	case StatusRejected:
		updated.RejectedAt = &at
	}
	return updated, nil
}

// isStatusTransitionAllowed reports whether a status transition is permitted.
//
// REJECTED is terminal. SUPERSEDED and ROLLED_BACK models may be restored to
// PROMOTED by a rollback to the previous version.
func isStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusCandidate:
		return to == StatusPromoted || to == StatusRejected
	case StatusPromoted:
		return to == StatusSuperseded || to == StatusRolledBack
	case StatusSuperseded:
		return to == StatusPromoted || to == StatusRejected
	case StatusRolledBack:
		return to == StatusPromoted || to == StatusRejected
	default:
		return false
	}
}

// StatusLabel returns a stable label for a model status.
func StatusLabel(status Status) string {
	switch status {
	case StatusCandidate:
		return "CANDIDATE"
	case StatusPromoted:
		return "PROMOTED"
	case StatusSuperseded:
		return "SUPERSEDED"
	case StatusRolledBack:
		return "ROLLED_BACK"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel parses a string label into a Status.
// It trims whitespace and matches case-insensitively.
func StatusFromLabel(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, fmt.Errorf("model status is required")
	}
	switch strings.ToUpper(trimmed) {
	case "CANDIDATE":
		return StatusCandidate, nil
	case "PROMOTED":
		return StatusPromoted, nil
	case "SUPERSEDED":
		return StatusSuperseded, nil
	case "ROLLED_BACK":
		return StatusRolledBack, nil
	case "REJECTED":
		return StatusRejected, nil
	default:
		return StatusUnspecified, fmt.Errorf("unknown model status: %s", trimmed)
	}
}
