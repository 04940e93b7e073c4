package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/alphasignal/internal/governance/readiness"
	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

// PutGateResult upserts the latest evaluation for a readiness gate.
func (s *Store) PutGateResult(ctx context.Context, result readiness.GateResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if result.Gate == "" {
		return fmt.Errorf("gate is required")
	}

	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("marshal gate metrics: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO readiness_gates (gate, status, metrics, blocking_reason, last_evaluated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(gate) DO UPDATE SET
	status = excluded.status,
	metrics = excluded.metrics,
	blocking_reason = excluded.blocking_reason,
	last_evaluated_at = excluded.last_evaluated_at
`,
		string(result.Gate),
		string(result.Status),
		string(metrics),
		result.BlockingReason,
		toMillis(result.LastEvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("put gate result: %w", err)
	}
	return nil
}

// GetGateResult returns the stored evaluation for one gate.
func (s *Store) GetGateResult(ctx context.Context, gate readiness.Gate) (readiness.GateResult, error) {
	if err := ctx.Err(); err != nil {
		return readiness.GateResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return readiness.GateResult{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT gate, status, metrics, blocking_reason, last_evaluated_at
FROM readiness_gates
WHERE gate = ?
`, string(gate))
	result, err := scanGateResult(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return readiness.GateResult{}, storage.ErrNotFound
		}
		return readiness.GateResult{}, fmt.Errorf("get gate result: %w", err)
	}
	return result, nil
}

// ListGateResults returns every stored gate evaluation.
func (s *Store) ListGateResults(ctx context.Context) ([]readiness.GateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT gate, status, metrics, blocking_reason, last_evaluated_at
FROM readiness_gates
ORDER BY gate
`)
	if err != nil {
		return nil, fmt.Errorf("list gate results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []readiness.GateResult
	for rows.Next() {
		result, err := scanGateResult(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan gate result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gate results: %w", err)
	}
	return results, nil
}

func scanGateResult(scan func(dest ...any) error) (readiness.GateResult, error) {
	var (
		result          readiness.GateResult
		gate            string
		status          string
		metricsRaw      string
		lastEvaluatedAt int64
	)
	if err := scan(&gate, &status, &metricsRaw, &result.BlockingReason, &lastEvaluatedAt); err != nil {
		return readiness.GateResult{}, err
	}
	if err := json.Unmarshal([]byte(metricsRaw), &result.Metrics); err != nil {
		return readiness.GateResult{}, fmt.Errorf("unmarshal gate metrics: %w", err)
	}
	result.Gate = readiness.Gate(gate)
	result.Status = readiness.Status(status)
	result.LastEvaluatedAt = fromMillis(lastEvaluatedAt)
	return result, nil
}
