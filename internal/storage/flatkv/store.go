// Package flatkv implements the flat key-value companion store on BoltDB.
//
// It carries the handful of records that never belonged in the object
// stores: the user settings blob, the single continue-game slot, the active
// party pointer, and legacy per-camp blobs written by the pre-reference save
// format. Keys mirror the flat namespace they came from.
package flatkv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hollowspire/delve/internal/domain/camp"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/storage"
)

const (
	flatBucket = "flat"

	settingsKey    = "delve_settings"
	saveSlotKey    = "delve_save"
	activePartyKey = "delve_active_party"

	// LegacyCampPrefix namespaces per-camp blobs written by the old flat save
	// path. They are enumerable by prefix scan and migrated on read.
	LegacyCampPrefix = "delve_camp_"

	probeKey = "delve_probe"
)

// SaveVersion is the continue-game slot format version. A stored slot with a
// different version is logged and still returned; structure, not version,
// decides acceptance.
const SaveVersion = "1.0.0"

// Store provides a BoltDB-backed flat key-value store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed flat store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open flat store db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Available probes the store with a trivial write/delete round trip. Callers
// seeing false must degrade to no persistence rather than crash.
func (s *Store) Available(ctx context.Context) bool {
	if ctx.Err() != nil || s == nil || s.db == nil {
		return false
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flatBucket))
		if bucket == nil {
			return fmt.Errorf("flat bucket is missing")
		}
		if err := bucket.Put([]byte(probeKey), []byte("1")); err != nil {
			return err
		}
		return bucket.Delete([]byte(probeKey))
	})
	return err == nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(flatBucket)); err != nil {
			return fmt.Errorf("create flat bucket: %w", err)
		}
		return nil
	})
}

func (s *Store) put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flatBucket))
		if bucket == nil {
			return fmt.Errorf("flat bucket is missing")
		}
		return bucket.Put([]byte(key), payload)
	})
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	var payload []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flatBucket))
		if bucket == nil {
			return fmt.Errorf("flat bucket is missing")
		}
		value := bucket.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		payload = make([]byte, len(value))
		copy(payload, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flatBucket))
		if bucket == nil {
			return fmt.Errorf("flat bucket is missing")
		}
		return bucket.Delete([]byte(key))
	})
}

// DefaultSettings is the hard-coded baseline every stored settings blob is
// merged over, so setting keys introduced later are backfilled on load.
func DefaultSettings() map[string]any {
	return map[string]any{
		"soundEnabled": true,
		"musicVolume":  0.7,
		"sfxVolume":    0.8,
		"messageSpeed": "normal",
		"autoSave":     true,
		"minimap":      true,
	}
}

// SaveSettings persists the user settings blob.
func (s *Store) SaveSettings(ctx context.Context, settings map[string]any) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return s.put(ctx, settingsKey, payload)
}

// LoadSettings returns the stored settings merged over the defaults. A
// missing or unreadable blob yields the defaults alone; settings are never a
// reason to fail startup.
func (s *Store) LoadSettings(ctx context.Context) (map[string]any, error) {
	merged := DefaultSettings()

	payload, err := s.get(ctx, settingsKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return merged, nil
		}
		return nil, err
	}

	var stored map[string]any
	if err := json.Unmarshal(payload, &stored); err != nil {
		log.Printf("flatkv: settings blob is malformed, falling back to defaults: %v", err)
		return merged, nil
	}
	for key, value := range stored {
		merged[key] = value
	}
	return merged, nil
}

// saveSlotHeader is the structural probe for the continue-game slot.
type saveSlotHeader struct {
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}

func validateSaveSlot(payload []byte) error {
	var header saveSlotHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		return platformerrors.Wrap(platformerrors.CodeSaveInvalidFormat, "save slot is not valid JSON", err)
	}
	if header.Timestamp == 0 {
		return platformerrors.New(platformerrors.CodeSaveInvalidFormat, "save slot is missing timestamp")
	}
	if strings.TrimSpace(header.Version) == "" {
		return platformerrors.New(platformerrors.CodeSaveInvalidFormat, "save slot is missing version")
	}
	if header.Version != SaveVersion {
		// Version skew is informational; the slot still loads.
		log.Printf("flatkv: save slot version %q differs from current %q", header.Version, SaveVersion)
	}
	return nil
}

// WriteSaveSlot stores the continue-game blob after structural validation.
func (s *Store) WriteSaveSlot(ctx context.Context, payload []byte) error {
	if err := validateSaveSlot(payload); err != nil {
		return err
	}
	return s.put(ctx, saveSlotKey, payload)
}

// LoadSaveSlot returns the continue-game blob. Missing slot is
// storage.ErrNotFound; a structurally invalid slot is rejected.
func (s *Store) LoadSaveSlot(ctx context.Context) ([]byte, error) {
	payload, err := s.get(ctx, saveSlotKey)
	if err != nil {
		return nil, err
	}
	if err := validateSaveSlot(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ClearSaveSlot removes the continue-game blob.
func (s *Store) ClearSaveSlot(ctx context.Context) error {
	return s.delete(ctx, saveSlotKey)
}

// ExportSave returns the continue-game slot as indented JSON for sharing.
func (s *Store) ExportSave(ctx context.Context) ([]byte, error) {
	payload, err := s.LoadSaveSlot(ctx)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		return nil, fmt.Errorf("format save slot: %w", err)
	}
	return out.Bytes(), nil
}

// ImportSave validates and stores an externally produced save blob.
func (s *Store) ImportSave(ctx context.Context, payload []byte) error {
	return s.WriteSaveSlot(ctx, payload)
}

// SetActiveParty records which party the player controls.
func (s *Store) SetActiveParty(ctx context.Context, partyID string) error {
	if strings.TrimSpace(partyID) == "" {
		return fmt.Errorf("party id is required")
	}
	return s.put(ctx, activePartyKey, []byte(partyID))
}

// ActivePartyID returns the active party pointer, or storage.ErrNotFound
// when no pointer is set.
func (s *Store) ActivePartyID(ctx context.Context) (string, error) {
	payload, err := s.get(ctx, activePartyKey)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// ClearActiveParty drops the pointer without touching the party record.
func (s *Store) ClearActiveParty(ctx context.Context) error {
	return s.delete(ctx, activePartyKey)
}

// PutLegacyCamp writes a camp blob under the legacy flat key. Retained for
// fixtures and migration tooling; new checkpoints go to the camp store.
func (s *Store) PutLegacyCamp(ctx context.Context, record camp.Record) error {
	if strings.TrimSpace(record.CampID) == "" {
		return fmt.Errorf("camp id is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal legacy camp %s: %w", record.CampID, err)
	}
	return s.put(ctx, LegacyCampPrefix+record.CampID, payload)
}

// ListLegacyCamps enumerates camp blobs under the legacy prefix. Unreadable
// blobs are logged and skipped; one corrupt key must not hide the rest.
func (s *Store) ListLegacyCamps(ctx context.Context) ([]camp.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var out []camp.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flatBucket))
		if bucket == nil {
			return fmt.Errorf("flat bucket is missing")
		}
		cursor := bucket.Cursor()
		prefix := []byte(LegacyCampPrefix)
		for key, value := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, value = cursor.Next() {
			var record camp.Record
			if err := json.Unmarshal(value, &record); err != nil {
				log.Printf("flatkv: skipping unreadable legacy camp %s: %v", key, err)
				continue
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteLegacyCamp removes one legacy camp blob.
func (s *Store) DeleteLegacyCamp(ctx context.Context, campID string) error {
	if strings.TrimSpace(campID) == "" {
		return fmt.Errorf("camp id is required")
	}
	return s.delete(ctx, LegacyCampPrefix+campID)
}
