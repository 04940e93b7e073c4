package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/louisbranch/alphasignal/internal/governance/storage"
	"github.com/louisbranch/alphasignal/internal/platform/id"
)

var (
	writesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_audit_writes_emitted_total",
		Help: "Total governance audit events appended to the ledger.",
	})
	writeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_audit_write_errors_total",
		Help: "Total governance audit events dropped by append failures.",
	})
)

// Emitter records governance audit events.
type Emitter struct {
	store  storage.AuditEventStore
	clock  func() time.Time
	newID  func() (string, error)
	logger *slog.Logger
}

// NewEmitter creates a new audit event emitter.
func NewEmitter(store storage.AuditEventStore, logger *slog.Logger) *Emitter {
	return &Emitter{store: store, clock: time.Now, newID: id.NewID, logger: logger}
}

// Emit records an audit event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.AuditEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.CreatedAt.IsZero() {
		if e.clock == nil {
			evt.CreatedAt = time.Now().UTC()
		} else {
			evt.CreatedAt = e.clock().UTC()
		}
	}
	if evt.ID == "" {
		newID := e.newID
		if newID == nil {
			newID = id.NewID
		}
		generated, err := newID()
		if err != nil {
			return err
		}
		evt.ID = generated
	}
	return e.store.AppendAuditEvent(ctx, evt)
}

// Record appends an audit event best-effort. Append failures never propagate
// to the governed operation; they are counted and logged instead.
func (e *Emitter) Record(ctx context.Context, evt storage.AuditEvent) {
	if e == nil {
		return
	}
	if err := e.Emit(ctx, evt); err != nil {
		writeErrors.Inc()
		if e.logger != nil {
			e.logger.Error("audit append failed",
				slog.String("event_type", evt.EventType),
				slog.String("error", err.Error()))
		}
		return
	}
	writesEmitted.Inc()
}
