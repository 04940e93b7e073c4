package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/alphasignal/internal/governance/storage"
)

// AppendAuditEvent appends one event to the governance ledger. Events are
// never updated or deleted.
func (s *Store) AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.ID) == "" {
		return fmt.Errorf("audit event id is required")
	}
	if strings.TrimSpace(evt.EventType) == "" {
		return fmt.Errorf("event type is required")
	}
	if evt.CreatedAt.IsZero() {
		return fmt.Errorf("created at is required")
	}

	details, err := encodeDetails(evt.Details)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_events (
	id, event_type, horizon, model_version_id, window, details, triggered_by, severity, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		evt.ID,
		evt.EventType,
		evt.Horizon,
		evt.ModelVersionID,
		evt.Window,
		details,
		evt.TriggeredBy,
		evt.Severity,
		toMillis(evt.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns events newest first, optionally filtered by type.
func (s *Store) ListAuditEvents(ctx context.Context, eventType string, limit int) ([]storage.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
SELECT id, event_type, horizon, model_version_id, window, details, triggered_by, severity, created_at
FROM audit_events
`
	args := []any{}
	if strings.TrimSpace(eventType) != "" {
		query += "WHERE event_type = ?\n"
		args = append(args, eventType)
	}
	query += "ORDER BY created_at DESC, id DESC\nLIMIT ?"
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []storage.AuditEvent
	for rows.Next() {
		var (
			evt        storage.AuditEvent
			detailsRaw string
			createdAt  int64
		)
		if err := rows.Scan(
			&evt.ID,
			&evt.EventType,
			&evt.Horizon,
			&evt.ModelVersionID,
			&evt.Window,
			&detailsRaw,
			&evt.TriggeredBy,
			&evt.Severity,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		details, err := decodeDetails(detailsRaw)
		if err != nil {
			return nil, err
		}
		evt.Details = details
		evt.CreatedAt = fromMillis(createdAt)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

func encodeDetails(details map[string]string) (string, error) {
	if len(details) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	return string(encoded), nil
}

func decodeDetails(value string) (map[string]string, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "{}" {
		return nil, nil
	}
	var details map[string]string
	if err := json.Unmarshal([]byte(value), &details); err != nil {
		return nil, fmt.Errorf("unmarshal details: %w", err)
	}
	return details, nil
}
