package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/dungeon"
	"github.com/hollowspire/delve/internal/storage"
)

// PutPosition upserts a party's exploration state. Discovery sets are stored
// as sorted JSON arrays so repeated saves of the same state are byte-stable.
func (s *Store) PutPosition(ctx context.Context, position dungeon.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(position.PartyID) == "" {
		return fmt.Errorf("position party id is required")
	}
	if strings.TrimSpace(position.DungeonID) == "" {
		return fmt.Errorf("position dungeon id is required")
	}

	position.LastModified = time.Now().UTC()

	secrets, err := json.Marshal(dungeon.SetToSorted(position.DiscoveredSecrets))
	if err != nil {
		return fmt.Errorf("marshal position secrets: %w", err)
	}
	traps, err := json.Marshal(dungeon.SetToSorted(position.DisarmedTraps))
	if err != nil {
		return fmt.Errorf("marshal position traps: %w", err)
	}
	specials, err := json.Marshal(dungeon.SetToSorted(position.UsedSpecials))
	if err != nil {
		return fmt.Errorf("marshal position specials: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO party_positions (party_id, dungeon_id, floor, x, y, facing,
			secrets_json, traps_json, specials_json, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(party_id) DO UPDATE SET
			dungeon_id = excluded.dungeon_id,
			floor = excluded.floor,
			x = excluded.x,
			y = excluded.y,
			facing = excluded.facing,
			secrets_json = excluded.secrets_json,
			traps_json = excluded.traps_json,
			specials_json = excluded.specials_json,
			last_modified = excluded.last_modified`,
		position.PartyID, position.DungeonID, int64(position.Floor),
		int64(position.At.X), int64(position.At.Y), string(position.Facing),
		string(secrets), string(traps), string(specials),
		toMillis(position.LastModified),
	)
	if err != nil {
		return fmt.Errorf("put position for party %s: %w", position.PartyID, err)
	}
	return nil
}

// GetPosition loads a party's exploration state.
func (s *Store) GetPosition(ctx context.Context, partyID string) (dungeon.Position, error) {
	if err := ctx.Err(); err != nil {
		return dungeon.Position{}, err
	}
	if err := s.ready(); err != nil {
		return dungeon.Position{}, err
	}
	if strings.TrimSpace(partyID) == "" {
		return dungeon.Position{}, fmt.Errorf("party id is required")
	}

	var position dungeon.Position
	var facing string
	var secrets, traps, specials string
	var modified int64
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT party_id, dungeon_id, floor, x, y, facing, secrets_json, traps_json,
			specials_json, last_modified
		FROM party_positions WHERE party_id = ?`, partyID).
		Scan(&position.PartyID, &position.DungeonID, &position.Floor,
			&position.At.X, &position.At.Y, &facing, &secrets, &traps,
			&specials, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dungeon.Position{}, storage.ErrNotFound
		}
		return dungeon.Position{}, fmt.Errorf("get position for party %s: %w", partyID, err)
	}

	position.Facing = dungeon.Facing(facing)
	position.LastModified = fromMillis(modified)

	for _, field := range []struct {
		raw  string
		dest *map[string]struct{}
		name string
	}{
		{secrets, &position.DiscoveredSecrets, "secrets"},
		{traps, &position.DisarmedTraps, "traps"},
		{specials, &position.UsedSpecials, "specials"},
	} {
		var values []string
		if err := json.Unmarshal([]byte(field.raw), &values); err != nil {
			return dungeon.Position{}, fmt.Errorf("unmarshal position %s: %w", field.name, err)
		}
		*field.dest = dungeon.SetFromList(values)
	}
	return position, nil
}

// DeletePosition removes a party's exploration state and reports whether a
// row existed.
func (s *Store) DeletePosition(ctx context.Context, partyID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(partyID) == "" {
		return false, fmt.Errorf("party id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM party_positions WHERE party_id = ?`, partyID)
	if err != nil {
		return false, fmt.Errorf("delete position for party %s: %w", partyID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete position for party %s: %w", partyID, err)
	}
	return affected > 0, nil
}

// PartiesInDungeon lists the party IDs currently holding a position inside a
// dungeon instance.
func (s *Store) PartiesInDungeon(ctx context.Context, dungeonID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dungeonID) == "" {
		return nil, fmt.Errorf("dungeon id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT party_id FROM party_positions WHERE dungeon_id = ? ORDER BY party_id`, dungeonID)
	if err != nil {
		return nil, fmt.Errorf("query parties in dungeon %s: %w", dungeonID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var partyID string
		if err := rows.Scan(&partyID); err != nil {
			return nil, fmt.Errorf("scan party in dungeon: %w", err)
		}
		out = append(out, partyID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties in dungeon: %w", err)
	}
	return out, nil
}
