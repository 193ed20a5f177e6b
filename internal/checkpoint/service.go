// Package checkpoint implements the camp save/resume protocol: point-in-time
// snapshots of a dungeon run that can be listed, resumed, exported, and aged
// out. Checkpoints reference party members by ID; the legacy embedded-member
// blobs in the flat store are converted to that shape on read.
package checkpoint

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hollowspire/delve/internal/domain/camp"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/storage"
	"github.com/hollowspire/delve/internal/telemetry"
)

// LegacySource enumerates and removes camp blobs written by the old flat
// save path.
type LegacySource interface {
	ListLegacyCamps(ctx context.Context) ([]camp.Record, error)
	DeleteLegacyCamp(ctx context.Context, campID string) error
}

// Config carries the collaborators a checkpoint service needs.
type Config struct {
	Camps      storage.CampStore
	Characters storage.CharacterStore
	Parties    storage.PartyStore
	Dungeons   storage.DungeonStore
	Positions  storage.PositionStore

	// Legacy is optional; without it only reference-shaped camps exist.
	Legacy LegacySource
	// Audit is optional; a nil emitter drops events.
	Audit *telemetry.Emitter
	// Now is optional and defaults to time.Now.
	Now func() time.Time
}

// Service coordinates the checkpoint workflows across the stores.
type Service struct {
	camps      storage.CampStore
	characters storage.CharacterStore
	parties    storage.PartyStore
	dungeons   storage.DungeonStore
	positions  storage.PositionStore
	legacy     LegacySource
	audit      *telemetry.Emitter
	now        func() time.Time
	tracer     trace.Tracer
}

// NewService builds a checkpoint service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Camps == nil || cfg.Characters == nil || cfg.Parties == nil {
		return nil, fmt.Errorf("camp, character, and party stores are required")
	}
	if cfg.Dungeons == nil || cfg.Positions == nil {
		return nil, fmt.Errorf("dungeon and position stores are required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	audit := cfg.Audit
	if audit == nil {
		audit = telemetry.NewEmitter(nil)
	}
	return &Service{
		camps:      cfg.Camps,
		characters: cfg.Characters,
		parties:    cfg.Parties,
		dungeons:   cfg.Dungeons,
		positions:  cfg.Positions,
		legacy:     cfg.Legacy,
		audit:      audit,
		now:        now,
		tracer:     otel.Tracer("delve/checkpoint"),
	}, nil
}

// Result is the outcome contract for save and import operations.
type Result struct {
	Success bool
	CampID  string
	Err     error
	Message string
}

func failure(message string, err error) Result {
	return Result{Success: false, Err: err, Message: message}
}

// ListCamps returns all checkpoints, newest first, merging reference-shaped
// rows with any legacy flat-store blobs converted on read.
func (s *Service) ListCamps(ctx context.Context) ([]camp.Record, error) {
	records, err := s.camps.ListCamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list camps: %w", err)
	}

	if s.legacy != nil {
		legacyRecords, err := s.legacy.ListLegacyCamps(ctx)
		if err != nil {
			// Legacy listing is best-effort; the primary store already answered.
			log.Printf("checkpoint: list legacy camps: %v", err)
		}
		seen := make(map[string]struct{}, len(records))
		for _, record := range records {
			seen[record.CampID] = struct{}{}
		}
		for _, record := range legacyRecords {
			if _, dup := seen[record.CampID]; dup {
				continue
			}
			converted, _ := record.ToReferenceShape()
			records = append(records, converted)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CampTime.After(records[j].CampTime)
	})
	return records, nil
}

// DeleteCamp removes a checkpoint from whichever store holds it.
func (s *Service) DeleteCamp(ctx context.Context, campID string) (bool, error) {
	deleted, err := s.camps.DeleteCamp(ctx, campID)
	if err != nil {
		return false, err
	}
	if !deleted && s.legacy != nil {
		if err := s.legacy.DeleteLegacyCamp(ctx, campID); err != nil {
			return false, err
		}
		deleted = true
	}
	if deleted {
		_ = s.audit.Emit(ctx, storage.AuditEvent{
			EventName: "camp.deleted",
			CampID:    campID,
		})
	}
	return deleted, nil
}

// CleanupOldCamps deletes checkpoints older than maxAgeDays and reports how
// many were removed across both stores.
func (s *Service) CleanupOldCamps(ctx context.Context, maxAgeDays int) (int, error) {
	if maxAgeDays <= 0 {
		return 0, fmt.Errorf("max age must be positive, got %d", maxAgeDays)
	}
	cutoff := s.now().UTC().AddDate(0, 0, -maxAgeDays)

	removed, err := s.camps.DeleteCampsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup camps: %w", err)
	}

	if s.legacy != nil {
		legacyRecords, err := s.legacy.ListLegacyCamps(ctx)
		if err != nil {
			log.Printf("checkpoint: list legacy camps for cleanup: %v", err)
		}
		for _, record := range legacyRecords {
			if !record.CampTime.Before(cutoff) {
				continue
			}
			if err := s.legacy.DeleteLegacyCamp(ctx, record.CampID); err != nil {
				return removed, fmt.Errorf("cleanup legacy camp %s: %w", record.CampID, err)
			}
			removed++
		}
	}

	_ = s.audit.Emit(ctx, storage.AuditEvent{
		EventName:  "camp.cleanup",
		Attributes: map[string]string{"removed": strconv.Itoa(removed)},
	})
	return removed, nil
}

// loadCamp fetches a checkpoint by ID, falling back to the legacy flat store
// and migrating the record to reference shape on the way out. Migration
// persists the extracted member bodies and the converted record, then drops
// the legacy key, so each legacy camp is converted at most once.
func (s *Service) loadCamp(ctx context.Context, campID string) (camp.Record, error) {
	record, err := s.camps.GetCamp(ctx, campID)
	if err == nil {
		return record, nil
	}
	if err != storage.ErrNotFound || s.legacy == nil {
		return camp.Record{}, err
	}

	legacyRecords, legacyErr := s.legacy.ListLegacyCamps(ctx)
	if legacyErr != nil {
		return camp.Record{}, legacyErr
	}
	for _, legacyRecord := range legacyRecords {
		if legacyRecord.CampID != campID {
			continue
		}
		converted, members := legacyRecord.ToReferenceShape()
		for _, member := range members {
			if err := s.characters.PutCharacter(ctx, member); err != nil {
				return camp.Record{}, fmt.Errorf("migrate legacy camp %s member %s: %w", campID, member.ID, err)
			}
		}
		if err := s.camps.PutCamp(ctx, converted); err != nil {
			return camp.Record{}, fmt.Errorf("migrate legacy camp %s: %w", campID, err)
		}
		if err := s.legacy.DeleteLegacyCamp(ctx, campID); err != nil {
			log.Printf("checkpoint: drop migrated legacy camp %s: %v", campID, err)
		}
		_ = s.audit.Emit(ctx, storage.AuditEvent{
			EventName: "camp.legacy_migrated",
			PartyID:   converted.PartyID,
			CampID:    campID,
		})
		return converted, nil
	}
	return camp.Record{}, storage.ErrNotFound
}

func campNotFound(campID string) error {
	return platformerrors.WithMetadata(platformerrors.CodeCampNotFound,
		"camp not found", map[string]string{"camp_id": campID})
}
