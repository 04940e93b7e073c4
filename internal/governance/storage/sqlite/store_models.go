package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/domain/model"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

// PutModelVersion inserts or replaces a model version record.
func (s *Store) PutModelVersion(ctx context.Context, version model.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(version.ID) == "" {
		return fmt.Errorf("model version id is required")
	}

	metrics, err := json.Marshal(version.Metrics)
	if err != nil {
		return fmt.Errorf("marshal training metrics: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO model_versions (
	id, horizon, dataset_version, metrics, status, created_at, promoted_at, rejected_at, rejection_reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	horizon = excluded.horizon,
	dataset_version = excluded.dataset_version,
	metrics = excluded.metrics,
	status = excluded.status,
	created_at = excluded.created_at,
	promoted_at = excluded.promoted_at,
	rejected_at = excluded.rejected_at,
	rejection_reason = excluded.rejection_reason
`,
		version.ID,
		version.Horizon,
		version.DatasetVersion,
		string(metrics),
		model.StatusLabel(version.Status),
		toMillis(version.CreatedAt),
		nullableMillis(version.PromotedAt),
		nullableMillis(version.RejectedAt),
		version.RejectionReason,
	)
	if err != nil {
		return fmt.Errorf("put model version: %w", err)
	}
	return nil
}

// GetModelVersion returns a model version by id.
func (s *Store) GetModelVersion(ctx context.Context, id string) (model.Version, error) {
	if err := ctx.Err(); err != nil {
		return model.Version{}, err
	}
	if s == nil || s.sqlDB == nil {
		return model.Version{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, horizon, dataset_version, metrics, status, created_at, promoted_at, rejected_at, rejection_reason
FROM model_versions
WHERE id = ?
`, id)
	version, err := scanModelVersion(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Version{}, storage.ErrNotFound
		}
		return model.Version{}, fmt.Errorf("get model version: %w", err)
	}
	return version, nil
}

// ListModelVersions returns versions for a horizon, newest first.
func (s *Store) ListModelVersions(ctx context.Context, horizon string, limit int) ([]model.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, horizon, dataset_version, metrics, status, created_at, promoted_at, rejected_at, rejection_reason
FROM model_versions
WHERE horizon = ?
ORDER BY created_at DESC
LIMIT ?
`, horizon, limit)
	if err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []model.Version
	for rows.Next() {
		version, err := scanModelVersion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}
	return versions, nil
}

// CountPromotionsSince counts promotion timestamps at or after since.
func (s *Store) CountPromotionsSince(ctx context.Context, horizon string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM model_versions
WHERE horizon = ? AND promoted_at IS NOT NULL AND promoted_at >= ?
`, horizon, toMillis(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count promotions: %w", err)
	}
	return count, nil
}

// GetActivePointer returns the pointer row for a horizon.
func (s *Store) GetActivePointer(ctx context.Context, horizon string) (model.ActivePointer, error) {
	if err := ctx.Err(); err != nil {
		return model.ActivePointer{}, err
	}
	if s == nil || s.sqlDB == nil {
		return model.ActivePointer{}, fmt.Errorf("storage is not configured")
	}

	var (
		pointer        model.ActivePointer
		lastRollbackAt sql.NullInt64
		updatedAt      int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT horizon, active_model_id, previous_model_id, rollback_count, last_rollback_at, version, updated_at
FROM active_pointers
WHERE horizon = ?
`, horizon).Scan(
		&pointer.Horizon,
		&pointer.ActiveModelID,
		&pointer.PreviousModelID,
		&pointer.RollbackCount,
		&lastRollbackAt,
		&pointer.Version,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ActivePointer{}, storage.ErrNotFound
		}
		return model.ActivePointer{}, fmt.Errorf("get active pointer: %w", err)
	}
	if lastRollbackAt.Valid {
		value := fromMillis(lastRollbackAt.Int64)
		pointer.LastRollbackAt = &value
	}
	pointer.UpdatedAt = fromMillis(updatedAt)
	return pointer, nil
}

// SwapActivePointer persists the updated model versions and the new pointer
// state in one transaction. The pointer row must still carry expectedVersion
// or nothing is written and ErrPointerVersionConflict is returned. A zero
// expectedVersion inserts the horizon's first pointer row.
func (s *Store) SwapActivePointer(ctx context.Context, pointer model.ActivePointer, expectedVersion uint64, versions []model.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pointer swap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, version := range versions {
		metrics, err := json.Marshal(version.Metrics)
		if err != nil {
			return fmt.Errorf("marshal training metrics: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO model_versions (
	id, horizon, dataset_version, metrics, status, created_at, promoted_at, rejected_at, rejection_reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	horizon = excluded.horizon,
	dataset_version = excluded.dataset_version,
	metrics = excluded.metrics,
	status = excluded.status,
	created_at = excluded.created_at,
	promoted_at = excluded.promoted_at,
	rejected_at = excluded.rejected_at,
	rejection_reason = excluded.rejection_reason
`,
			version.ID,
			version.Horizon,
			version.DatasetVersion,
			string(metrics),
			model.StatusLabel(version.Status),
			toMillis(version.CreatedAt),
			nullableMillis(version.PromotedAt),
			nullableMillis(version.RejectedAt),
			version.RejectionReason,
		); err != nil {
			return fmt.Errorf("put model version: %w", err)
		}
	}

	if expectedVersion == 0 {
		result, err := tx.ExecContext(ctx, `
INSERT INTO active_pointers (
	horizon, active_model_id, previous_model_id, rollback_count, last_rollback_at, version, updated_at
) VALUES (?, ?, ?, ?, ?, 1, ?)
ON CONFLICT(horizon) DO NOTHING
`,
			pointer.Horizon,
			pointer.ActiveModelID,
			pointer.PreviousModelID,
			pointer.RollbackCount,
			nullableMillis(pointer.LastRollbackAt),
			toMillis(pointer.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert active pointer: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert active pointer: %w", err)
		}
		if affected == 0 {
			return storage.ErrPointerVersionConflict
		}
	} else {
		result, err := tx.ExecContext(ctx, `
UPDATE active_pointers
SET active_model_id = ?,
	previous_model_id = ?,
	rollback_count = ?,
	last_rollback_at = ?,
	version = version + 1,
	updated_at = ?
WHERE horizon = ? AND version = ?
`,
			pointer.ActiveModelID,
			pointer.PreviousModelID,
			pointer.RollbackCount,
			nullableMillis(pointer.LastRollbackAt),
			toMillis(pointer.UpdatedAt),
			pointer.Horizon,
			expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update active pointer: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update active pointer: %w", err)
		}
		if affected == 0 {
			return storage.ErrPointerVersionConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pointer swap: %w", err)
	}
	return nil
}

func nullableMillis(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

func scanModelVersion(scan func(dest ...any) error) (model.Version, error) {
	var (
		version         model.Version
		metricsRaw      string
		statusLabel     string
		createdAt       int64
		promotedAt      sql.NullInt64
		rejectedAt      sql.NullInt64
		rejectionReason string
	)
	if err := scan(
		&version.ID,
		&version.Horizon,
		&version.DatasetVersion,
		&metricsRaw,
		&statusLabel,
		&createdAt,
		&promotedAt,
		&rejectedAt,
		&rejectionReason,
	); err != nil {
		return model.Version{}, err
	}
	if err := json.Unmarshal([]byte(metricsRaw), &version.Metrics); err != nil {
		return model.Version{}, fmt.Errorf("unmarshal training metrics: %w", err)
	}
	status, err := model.StatusFromLabel(statusLabel)
	if err != nil {
		return model.Version{}, err
	}
	version.Status = status
	version.CreatedAt = fromMillis(createdAt)
	if promotedAt.Valid {
		value := fromMillis(promotedAt.Int64)
		version.PromotedAt = &value
	}
	if rejectedAt.Valid {
		value := fromMillis(rejectedAt.Int64)
		version.RejectedAt = &value
	}
	version.RejectionReason = rejectionReason
	return version, nil
}
