// Package telemetry records operational audit events for the persistence
// layer: camps saved and resumed, catalog seeds, membership inconsistencies.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/hollowspire/delve/internal/storage"
)

// Severity levels for audit events.
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// Emitter records operational audit events.
type Emitter struct {
	store storage.AuditStore
	clock func() time.Time
}

// NewEmitter creates a new audit event emitter. A nil store yields a no-op
// emitter, so callers never need to guard their Emit calls.
func NewEmitter(store storage.AuditStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records an audit event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.AuditEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if evt.Severity == "" {
		evt.Severity = SeverityInfo
	}
	return e.store.AppendAuditEvent(ctx, evt)
}

// Recent lists the latest audit events. Listing is best-effort: failures are
// logged and degrade to an empty result.
func (e *Emitter) Recent(ctx context.Context, limit int) []storage.AuditEvent {
	if e == nil || e.store == nil {
		return nil
	}
	events, err := e.store.ListAuditEvents(ctx, limit)
	if err != nil {
		log.Printf("telemetry: list audit events: %v", err)
		return nil
	}
	return events
}
