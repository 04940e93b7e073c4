package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/louisbranch/alphasignal/internal/governance/guard"
	"github.com/louisbranch/alphasignal/internal/governance/observability/audit"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
	apperrors "github.com/louisbranch/alphasignal/internal/platform/errors"
)

// WindowInvalidator drops cached calibration maps for a window after its
// activation state changes. The calibration runtime satisfies this.
type WindowInvalidator interface {
	InvalidateWindow(ctx context.Context, window, mapID string)
}

// Activation drives a calibration run through the safety guard and, on pass,
// flips the window's active map.
type Activation struct {
	store       storage.CalibrationStore
	readiness   storage.ReadinessStore
	alerts      storage.AlertSource
	emitter     *audit.Emitter
	invalidator WindowInvalidator
	clock       func() time.Time
	cfg         guard.Config
}

// NewActivation creates a calibration activation workflow. invalidator may be
// nil when no runtime cache is wired (tooling contexts).
func NewActivation(
	store storage.CalibrationStore,
	readinessStore storage.ReadinessStore,
	alerts storage.AlertSource,
	emitter *audit.Emitter,
	invalidator WindowInvalidator,
	cfg guard.Config,
) *Activation {
	return &Activation{
		store:       store,
		readiness:   readinessStore,
		alerts:      alerts,
		emitter:     emitter,
		invalidator: invalidator,
		clock:       time.Now,
		cfg:         cfg,
	}
}

// CheckSafety fetches the run, its map, open alerts and readiness gates, and
// scores the pure guard over them. It mutates nothing.
func (a *Activation) CheckSafety(ctx context.Context, runID string, mode guard.Mode) (guard.Report, error) {
	inputs, err := a.fetchInputs(ctx, runID)
	if err != nil {
		return guard.Report{}, err
	}
	return guard.CheckSafety(inputs, mode, a.cfg), nil
}

// Activate guards and, on pass, atomically points the run's window at the
// run's map. Any previously active map for the window is replaced in the same
// storage transaction; at most one map is ever active per window. The runtime
// cache for the window is invalidated so the next calibration call refetches.
func (a *Activation) Activate(ctx context.Context, runID string, mode guard.Mode) (guard.Report, error) {
	ctx, span := otel.Tracer("governance/workflow").Start(ctx, "calibration.activate")
	defer span.End()

	inputs, err := a.fetchInputs(ctx, runID)
	if err != nil {
		return guard.Report{}, err
	}
	report := guard.CheckSafety(inputs, mode, a.cfg)
	run := inputs.Run

	if !report.Passed {
		a.emitter.Record(ctx, storage.AuditEvent{
			EventType: audit.TypeCalibrationBlocked,
			Window:    run.Window,
			Details: map[string]string{
				"run_id":   run.ID,
				"map_id":   run.MapID,
				"mode":     string(mode),
				"blockers": strings.Join(report.Blockers, "; "),
			},
			TriggeredBy: "activation-workflow",
			Severity:    string(audit.SeverityWarn),
		})
		return report, apperrors.WithMetadata(
			apperrors.CodeCalibrationGuardBlocked,
			"calibration guard blocked activation",
			map[string]string{
				"RunID":    run.ID,
				"Blockers": strings.Join(report.Blockers, "; "),
			},
		)
	}

	now := a.clock().UTC()
	previous, err := a.store.GetCalibrationActive(ctx, run.Window)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return report, fmt.Errorf("load active calibration: %w", err)
	}
	if err := a.store.ActivateCalibration(ctx, run.Window, run.MapID, now); err != nil {
		return report, fmt.Errorf("activate calibration: %w", err)
	}
	a.invalidate(ctx, run.Window, previous.MapID, run.MapID)

	a.emitter.Record(ctx, storage.AuditEvent{
		EventType: audit.TypeCalibrationActivated,
		Window:    run.Window,
		Details: map[string]string{
			"run_id":          run.ID,
			"map_id":          run.MapID,
			"previous_map_id": previous.MapID,
			"mode":            string(mode),
		},
		TriggeredBy: "activation-workflow",
		Severity:    string(audit.SeverityInfo),
	})
	return report, nil
}

// Deactivate reverts a window to raw confidence pass-through.
func (a *Activation) Deactivate(ctx context.Context, window, reason, triggeredBy string) error {
	previous, err := a.store.GetCalibrationActive(ctx, window)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(
				apperrors.CodeCalibrationWindowEmpty,
				"window has no calibration activation",
				map[string]string{"Window": window},
			)
		}
		return fmt.Errorf("load active calibration: %w", err)
	}

	now := a.clock().UTC()
	if err := a.store.DeactivateCalibration(ctx, window, now); err != nil {
		return fmt.Errorf("deactivate calibration: %w", err)
	}
	a.invalidate(ctx, window, previous.MapID, "")

	a.emitter.Record(ctx, storage.AuditEvent{
		EventType: audit.TypeCalibrationDeactivated,
		Window:    window,
		Details: map[string]string{
			"map_id": previous.MapID,
			"reason": reason,
		},
		TriggeredBy: triggeredBy,
		Severity:    string(audit.SeverityWarn),
	})
	return nil
}

func (a *Activation) fetchInputs(ctx context.Context, runID string) (guard.Inputs, error) {
	run, err := a.store.GetCalibrationRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return guard.Inputs{}, apperrors.Wrap(apperrors.CodeCalibrationRunNotFound, "calibration run not found", err)
		}
		return guard.Inputs{}, fmt.Errorf("load calibration run: %w", err)
	}
	m, err := a.store.GetCalibrationMap(ctx, run.MapID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return guard.Inputs{}, apperrors.Wrap(apperrors.CodeCalibrationMapNotFound, "calibration map not found", err)
		}
		return guard.Inputs{}, fmt.Errorf("load calibration map: %w", err)
	}

	inputs := guard.Inputs{Run: run, Map: m}
	if a.alerts != nil {
		open, err := a.alerts.CountOpenAlerts(ctx, run.Window, "HIGH")
		if err != nil {
			return guard.Inputs{}, fmt.Errorf("count open alerts: %w", err)
		}
		inputs.OpenAlerts = open
	}
	if a.readiness != nil {
		gates, err := a.readiness.ListGateResults(ctx)
		if err != nil {
			return guard.Inputs{}, fmt.Errorf("load readiness gates: %w", err)
		}
		inputs.GateResults = gates
	}
	return inputs, nil
}

func (a *Activation) invalidate(ctx context.Context, window, previousMapID, nextMapID string) {
	if a.invalidator == nil {
		return
	}
	if previousMapID != "" && previousMapID != nextMapID {
		a.invalidator.InvalidateWindow(ctx, window, previousMapID)
	}
	if nextMapID != "" {
		a.invalidator.InvalidateWindow(ctx, window, nextMapID)
	}
}
