package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

var severityRank = map[string]int{
	"LOW":      1,
	"MEDIUM":   2,
	"HIGH":     3,
	"CRITICAL": 4,
}

// PutAlert upserts an operational alert. Alert production belongs to the live
// monitor; this write path exists for tooling and tests.
func (s *Store) PutAlert(ctx context.Context, alert storage.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(alert.ID) == "" {
		return fmt.Errorf("alert id is required")
	}
	if _, ok := severityRank[alert.Severity]; !ok {
		return fmt.Errorf("unknown alert severity %q", alert.Severity)
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO alerts (id, window, severity, message, opened_at, closed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	window = excluded.window,
	severity = excluded.severity,
	message = excluded.message,
	opened_at = excluded.opened_at,
	closed_at = excluded.closed_at
`,
		alert.ID,
		alert.Window,
		alert.Severity,
		alert.Message,
		toMillis(alert.OpenedAt),
		nullableMillis(alert.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("put alert: %w", err)
	}
	return nil
}

// CloseAlert marks an alert closed.
func (s *Store) CloseAlert(ctx context.Context, alertID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE alerts SET closed_at = ? WHERE id = ? AND closed_at IS NULL
`, toMillis(at), alertID)
	if err != nil {
		return fmt.Errorf("close alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close alert: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountOpenAlerts counts alerts open for a window at or above minSeverity.
// An empty window counts alerts system-wide.
func (s *Store) CountOpenAlerts(ctx context.Context, window, minSeverity string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	minRank, ok := severityRank[minSeverity]
	if !ok {
		return 0, fmt.Errorf("unknown alert severity %q", minSeverity)
	}
	severities := make([]string, 0, len(severityRank))
	args := []any{}
	for severity, rank := range severityRank {
		if rank >= minRank {
			severities = append(severities, "?")
			args = append(args, severity)
		}
	}

	query := `SELECT COUNT(*) FROM alerts WHERE closed_at IS NULL AND severity IN (` +
		strings.Join(severities, ", ") + `)`
	if strings.TrimSpace(window) != "" {
		query += " AND window = ?"
		args = append(args, window)
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count open alerts: %w", err)
	}
	return count, nil
}
