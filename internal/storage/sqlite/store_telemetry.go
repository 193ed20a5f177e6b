package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/entity"
	"github.com/hollowspire/delve/internal/storage"
)

// AppendAuditEvent records an operational event.
func (s *Store) AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("audit event name is required")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if evt.Severity == "" {
		evt.Severity = "info"
	}

	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return fmt.Errorf("marshal audit attributes: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO audit_events (timestamp, event_name, severity, party_id, character_id, camp_id, attributes_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		toMillis(evt.Timestamp), evt.EventName, evt.Severity,
		evt.PartyID, evt.CharacterID, evt.CampID, string(attrs))
	if err != nil {
		return fmt.Errorf("append audit event %s: %w", evt.EventName, err)
	}
	return nil
}

// ListAuditEvents returns the most recent events, newest first. A limit of
// zero or less defaults to 100.
func (s *Store) ListAuditEvents(ctx context.Context, limit int) ([]storage.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT timestamp, event_name, severity, party_id, character_id, camp_id, attributes_json
		FROM audit_events ORDER BY timestamp DESC, id DESC LIMIT ?`, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []storage.AuditEvent
	for rows.Next() {
		var evt storage.AuditEvent
		var ts int64
		var attrs string
		err := rows.Scan(&ts, &evt.EventName, &evt.Severity, &evt.PartyID,
			&evt.CharacterID, &evt.CampID, &attrs)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.Timestamp = fromMillis(ts)
		if err := json.Unmarshal([]byte(attrs), &evt.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal audit attributes: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

// GetGameStatistics aggregates record counts across every store.
func (s *Store) GetGameStatistics(ctx context.Context) (storage.GameStatistics, error) {
	if err := ctx.Err(); err != nil {
		return storage.GameStatistics{}, err
	}
	if err := s.ready(); err != nil {
		return storage.GameStatistics{}, err
	}

	var stats storage.GameStatistics
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM characters`, &stats.CharacterCount},
		{`SELECT COUNT(*) FROM parties`, &stats.PartyCount},
		{`SELECT COUNT(*) FROM dungeons`, &stats.DungeonCount},
		{`SELECT COUNT(*) FROM camps`, &stats.CampCount},
	}
	for _, c := range counts {
		if err := s.sqlDB.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return storage.GameStatistics{}, fmt.Errorf("game statistics: %w", err)
		}
	}

	for _, kind := range entity.AllKinds() {
		count, err := s.CountEntities(ctx, kind)
		if err != nil {
			return storage.GameStatistics{}, err
		}
		stats.EntityCount += count
	}
	return stats, nil
}
