package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/calibration"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

// PutCalibrationRun persists an immutable calibration run record.
func (s *Store) PutCalibrationRun(ctx context.Context, run calibration.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("calibration run id is required")
	}

	config, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}
	output, err := json.Marshal(run.Output)
	if err != nil {
		return fmt.Errorf("marshal run output: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO calibration_runs (id, window, scope, config, output, map_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		run.ID,
		run.Window,
		string(run.Scope),
		string(config),
		string(output),
		run.MapID,
		toMillis(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put calibration run: %w", err)
	}
	return nil
}

// GetCalibrationRun returns a calibration run by id.
func (s *Store) GetCalibrationRun(ctx context.Context, runID string) (calibration.Run, error) {
	if err := ctx.Err(); err != nil {
		return calibration.Run{}, err
	}
	if s == nil || s.sqlDB == nil {
		return calibration.Run{}, fmt.Errorf("storage is not configured")
	}

	var (
		run       calibration.Run
		scope     string
		configRaw string
		outputRaw string
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, window, scope, config, output, map_id, created_at
FROM calibration_runs
WHERE id = ?
`, runID).Scan(&run.ID, &run.Window, &scope, &configRaw, &outputRaw, &run.MapID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calibration.Run{}, storage.ErrNotFound
		}
		return calibration.Run{}, fmt.Errorf("get calibration run: %w", err)
	}
	if err := json.Unmarshal([]byte(configRaw), &run.Config); err != nil {
		return calibration.Run{}, fmt.Errorf("unmarshal run config: %w", err)
	}
	if err := json.Unmarshal([]byte(outputRaw), &run.Output); err != nil {
		return calibration.Run{}, fmt.Errorf("unmarshal run output: %w", err)
	}
	run.Scope = calibration.Scope(scope)
	run.CreatedAt = fromMillis(createdAt)
	return run, nil
}

// PutCalibrationMap persists an immutable calibration map.
func (s *Store) PutCalibrationMap(ctx context.Context, m calibration.Map) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("calibration map id is required")
	}

	bins, err := json.Marshal(m.Bins)
	if err != nil {
		return fmt.Errorf("marshal bins: %w", err)
	}
	guardrails, err := json.Marshal(m.Guardrails)
	if err != nil {
		return fmt.Errorf("marshal guardrails: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO calibration_maps (id, run_id, window, bins, guardrails, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		m.ID,
		m.RunID,
		m.Window,
		string(bins),
		string(guardrails),
		toMillis(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put calibration map: %w", err)
	}
	return nil
}

// GetCalibrationMap returns a calibration map by id.
func (s *Store) GetCalibrationMap(ctx context.Context, mapID string) (calibration.Map, error) {
	if err := ctx.Err(); err != nil {
		return calibration.Map{}, err
	}
	if s == nil || s.sqlDB == nil {
		return calibration.Map{}, fmt.Errorf("storage is not configured")
	}

	var (
		m             calibration.Map
		binsRaw       string
		guardrailsRaw string
		createdAt     int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, run_id, window, bins, guardrails, created_at
FROM calibration_maps
WHERE id = ?
`, mapID).Scan(&m.ID, &m.RunID, &m.Window, &binsRaw, &guardrailsRaw, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calibration.Map{}, storage.ErrNotFound
		}
		return calibration.Map{}, fmt.Errorf("get calibration map: %w", err)
	}
	if err := json.Unmarshal([]byte(binsRaw), &m.Bins); err != nil {
		return calibration.Map{}, fmt.Errorf("unmarshal bins: %w", err)
	}
	if err := json.Unmarshal([]byte(guardrailsRaw), &m.Guardrails); err != nil {
		return calibration.Map{}, fmt.Errorf("unmarshal guardrails: %w", err)
	}
	m.CreatedAt = fromMillis(createdAt)
	return m, nil
}

// GetCalibrationActive returns the activation row for a window.
func (s *Store) GetCalibrationActive(ctx context.Context, window string) (calibration.Active, error) {
	if err := ctx.Err(); err != nil {
		return calibration.Active{}, err
	}
	if s == nil || s.sqlDB == nil {
		return calibration.Active{}, fmt.Errorf("storage is not configured")
	}

	var (
		active      calibration.Active
		statusLabel string
		activatedAt sql.NullInt64
		updatedAt   int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT window, status, map_id, activated_at, updated_at
FROM calibration_active
WHERE window = ?
`, window).Scan(&active.Window, &statusLabel, &active.MapID, &activatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calibration.Active{}, storage.ErrNotFound
		}
		return calibration.Active{}, fmt.Errorf("get calibration active: %w", err)
	}
	status, err := calibration.ActiveStatusFromLabel(statusLabel)
	if err != nil {
		return calibration.Active{}, err
	}
	active.Status = status
	if activatedAt.Valid {
		value := fromMillis(activatedAt.Int64)
		active.ActivatedAt = &value
	}
	active.UpdatedAt = fromMillis(updatedAt)
	return active, nil
}

// ActivateCalibration points a window at a map, replacing any previous
// activation. The single-row upsert keeps at most one ACTIVE map per window.
func (s *Store) ActivateCalibration(ctx context.Context, window, mapID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(window) == "" {
		return fmt.Errorf("window is required")
	}
	if strings.TrimSpace(mapID) == "" {
		return fmt.Errorf("map id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO calibration_active (window, status, map_id, activated_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(window) DO UPDATE SET
	status = excluded.status,
	map_id = excluded.map_id,
	activated_at = excluded.activated_at,
	updated_at = excluded.updated_at
`,
		window,
		calibration.ActiveStatusLabel(calibration.ActiveStatusActive),
		mapID,
		toMillis(at),
		toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("activate calibration: %w", err)
	}
	return nil
}

// DeactivateCalibration marks a window INACTIVE.
func (s *Store) DeactivateCalibration(ctx context.Context, window string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE calibration_active
SET status = ?, updated_at = ?
WHERE window = ?
`,
		calibration.ActiveStatusLabel(calibration.ActiveStatusInactive),
		toMillis(at),
		window,
	)
	if err != nil {
		return fmt.Errorf("deactivate calibration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate calibration: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
