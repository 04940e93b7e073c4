// Package storage defines the persistence contracts for governance records.
//
// Interfaces are narrow on purpose: services depend only on the stores they
// mutate or read, and tests swap in hand-written fakes. The SQLite
// implementation lives in the sqlite subpackage.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
	"github.com/louisbranch/alphasignal/internal/governance/readiness"
	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such record"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrPointerVersionConflict indicates a pointer swap lost an optimistic
// concurrency race. The caller must re-read and retry or surface the conflict;
// no partial state was written.
var ErrPointerVersionConflict = apperrors.New(apperrors.CodePointerVersionConflict, "active pointer version conflict")

// ModelStore persists model versions and per-horizon active pointers.
type ModelStore interface {
	PutModelVersion(ctx context.Context, version model.Version) error
	GetModelVersion(ctx context.Context, id string) (model.Version, error)
	// ListModelVersions returns versions for a horizon, newest first.
	ListModelVersions(ctx context.Context, horizon string, limit int) ([]model.Version, error)
	// CountPromotionsSince counts promotion timestamps at or after since for a
	// horizon. Used by the promotion rate limiter.
	CountPromotionsSince(ctx context.Context, horizon string, since time.Time) (int, error)
	// GetActivePointer returns the pointer row for a horizon.
	// Returns ErrNotFound when the horizon has never had a pointer.
	GetActivePointer(ctx context.Context, horizon string) (model.ActivePointer, error)
	// SwapActivePointer atomically persists updated model versions and the new
	// pointer state in one transaction. The pointer row must still carry
	// expectedVersion or the swap fails with ErrPointerVersionConflict and
	// writes nothing. A zero expectedVersion inserts a fresh pointer row.
	SwapActivePointer(ctx context.Context, pointer model.ActivePointer, expectedVersion uint64, versions []model.Version) error
}

// CalibrationStore persists calibration runs, maps, and per-window activation.
type CalibrationStore interface {
	PutCalibrationRun(ctx context.Context, run calibration.Run) error
	GetCalibrationRun(ctx context.Context, runID string) (calibration.Run, error)
	PutCalibrationMap(ctx context.Context, m calibration.Map) error
	GetCalibrationMap(ctx context.Context, mapID string) (calibration.Map, error)
	// GetCalibrationActive returns the activation row for a window.
	// Returns ErrNotFound when the window has never been activated.
	GetCalibrationActive(ctx context.Context, window string) (calibration.Active, error)
	// ActivateCalibration atomically points a window at mapID, replacing any
	// previous activation. At most one ACTIVE row exists per window.
	ActivateCalibration(ctx context.Context, window, mapID string, at time.Time) error
	// DeactivateCalibration marks a window INACTIVE. Raw confidence passes
	// through once the runtime cache expires or is invalidated.
	DeactivateCalibration(ctx context.Context, window string, at time.Time) error
}

// ReadinessStore persists per-gate readiness evaluations.
type ReadinessStore interface {
	PutGateResult(ctx context.Context, result readiness.GateResult) error
	GetGateResult(ctx context.Context, gate readiness.Gate) (readiness.GateResult, error)
	ListGateResults(ctx context.Context) ([]readiness.GateResult, error)
}

// AuditEvent is one append-only governance ledger entry.
type AuditEvent struct {
	ID             string
	EventType      string
	Horizon        string
	ModelVersionID string
	Window         string
	Details        map[string]string
	TriggeredBy    string
	Severity       string
	CreatedAt      time.Time
}

// AuditEventStore appends to and reads the governance audit ledger.
// Events are never mutated or deleted.
type AuditEventStore interface {
	AppendAuditEvent(ctx context.Context, evt AuditEvent) error
	// ListAuditEvents returns events newest first, optionally filtered by
	// event type. A zero limit applies a server-side default.
	ListAuditEvents(ctx context.Context, eventType string, limit int) ([]AuditEvent, error)
}

// Alert is an open operational alert raised by the live monitor.
type Alert struct {
	ID        string
	Window    string
	Severity  string
	Message   string
	OpenedAt time.Time
	ClosedAt *time.Time
}

// AlertSource exposes the open-alert counts consumed by guard checks.
// The live monitor owns alert production; this subsystem only reads.
type AlertSource interface {
	// CountOpenAlerts counts alerts open for a window at or above minSeverity
	// ("HIGH" also matches "CRITICAL"). An empty window counts system-wide.
	CountOpenAlerts(ctx context.Context, window, minSeverity string) (int, error)
}

// AlertStore extends AlertSource with writes used by tooling and tests.
type AlertStore interface {
	AlertSource
	PutAlert(ctx context.Context, alert Alert) error
	CloseAlert(ctx context.Context, alertID string, at time.Time) error
}
