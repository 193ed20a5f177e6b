package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hollowspire/delve/internal/domain/dungeon"
	"github.com/hollowspire/delve/internal/storage"
)

// Floor grids compress extremely well; a 20x20 multi-floor layout shrinks to
// a few hundred bytes. Encoders and decoders are stateless here, built per
// call against small inputs.

func compressFloors(floors map[int]dungeon.Floor) ([]byte, error) {
	raw, err := json.Marshal(floors)
	if err != nil {
		return nil, fmt.Errorf("marshal floors: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("new zstd writer: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(raw, nil), nil
}

func decompressFloors(blob []byte) (map[int]dungeon.Floor, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("new zstd reader: %w", err)
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress floors: %w", err)
	}
	var floors map[int]dungeon.Floor
	if err := json.Unmarshal(raw, &floors); err != nil {
		return nil, fmt.Errorf("unmarshal floors: %w", err)
	}
	return floors, nil
}

// PutDungeon upserts a dungeon instance. Floor layouts are stored as a single
// zstd-compressed JSON blob; instances are written whole or not at all.
func (s *Store) PutDungeon(ctx context.Context, instance dungeon.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := instance.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	instance.LastModified = now
	if instance.DateCreated.IsZero() {
		instance.DateCreated = now
	}

	blob, err := compressFloors(instance.Floors)
	if err != nil {
		return fmt.Errorf("put dungeon %s: %w", instance.ID, err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO dungeons (id, owner_party_id, floor_count, floors_blob, date_created, last_modified)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_party_id = excluded.owner_party_id,
			floor_count = excluded.floor_count,
			floors_blob = excluded.floors_blob,
			last_modified = excluded.last_modified`,
		instance.ID, instance.OwnerPartyID, int64(len(instance.Floors)), blob,
		toMillis(instance.DateCreated), toMillis(instance.LastModified),
	)
	if err != nil {
		return fmt.Errorf("put dungeon %s: %w", instance.ID, err)
	}
	return nil
}

// GetDungeon loads one dungeon instance by ID.
func (s *Store) GetDungeon(ctx context.Context, id string) (dungeon.Instance, error) {
	if err := ctx.Err(); err != nil {
		return dungeon.Instance{}, err
	}
	if err := s.ready(); err != nil {
		return dungeon.Instance{}, err
	}
	if strings.TrimSpace(id) == "" {
		return dungeon.Instance{}, fmt.Errorf("dungeon id is required")
	}

	var instance dungeon.Instance
	var blob []byte
	var created, modified int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, owner_party_id, floors_blob, date_created, last_modified
		FROM dungeons WHERE id = ?`, id).
		Scan(&instance.ID, &instance.OwnerPartyID, &blob, &created, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dungeon.Instance{}, storage.ErrNotFound
		}
		return dungeon.Instance{}, fmt.Errorf("get dungeon %s: %w", id, err)
	}

	floors, err := decompressFloors(blob)
	if err != nil {
		return dungeon.Instance{}, fmt.Errorf("get dungeon %s: %w", id, err)
	}
	instance.Floors = floors
	instance.DateCreated = fromMillis(created)
	instance.LastModified = fromMillis(modified)
	return instance, nil
}

// DeleteDungeon removes a dungeon instance and reports whether a row existed.
func (s *Store) DeleteDungeon(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("dungeon id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM dungeons WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete dungeon %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete dungeon %s: %w", id, err)
	}
	return affected > 0, nil
}
