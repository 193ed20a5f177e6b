package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/entity"
	"github.com/hollowspire/delve/internal/domain/party"
	"github.com/hollowspire/delve/internal/storage"
)

// PutParty upserts a party record after validating its location flags.
func (s *Store) PutParty(ctx context.Context, record party.Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	record.LastModified = now
	if record.DateCreated.IsZero() {
		record.DateCreated = now
	}

	memberIDs, err := json.Marshal(record.MemberIDs)
	if err != nil {
		return fmt.Errorf("marshal party %s member ids: %w", record.ID, err)
	}
	inventory, err := json.Marshal(record.SharedInventory)
	if err != nil {
		return fmt.Errorf("marshal party %s inventory: %w", record.ID, err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO parties (id, name, member_ids_json, member_count, alive_count, gold,
			shared_inventory_json, in_town, camp_id, is_lost, lost_date, lost_reason,
			last_known_location, date_created, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			member_ids_json = excluded.member_ids_json,
			member_count = excluded.member_count,
			alive_count = excluded.alive_count,
			gold = excluded.gold,
			shared_inventory_json = excluded.shared_inventory_json,
			in_town = excluded.in_town,
			camp_id = excluded.camp_id,
			is_lost = excluded.is_lost,
			lost_date = excluded.lost_date,
			lost_reason = excluded.lost_reason,
			last_known_location = excluded.last_known_location,
			last_modified = excluded.last_modified`,
		record.ID, record.Name, string(memberIDs), int64(record.MemberCount),
		int64(record.AliveCount), int64(record.Gold), string(inventory),
		boolToInt(record.InTown), record.CampID, boolToInt(record.IsLost),
		toNullMillis(record.LostDate), record.LostReason, record.LastKnownLocation,
		toMillis(record.DateCreated), toMillis(record.LastModified),
	)
	if err != nil {
		return fmt.Errorf("put party %s: %w", record.ID, err)
	}
	return nil
}

// GetParty loads one party by ID.
func (s *Store) GetParty(ctx context.Context, id string) (party.Party, error) {
	if err := ctx.Err(); err != nil {
		return party.Party{}, err
	}
	if err := s.ready(); err != nil {
		return party.Party{}, err
	}
	if strings.TrimSpace(id) == "" {
		return party.Party{}, fmt.Errorf("party id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, partySelect+` WHERE id = ?`, id)
	return scanParty(row)
}

// ListParties returns every party record.
func (s *Store) ListParties(ctx context.Context) ([]party.Party, error) {
	return s.queryPartyRows(ctx, partySelect+` ORDER BY name`)
}

// QueryParties filters parties by the populated criteria.
func (s *Store) QueryParties(ctx context.Context, criteria storage.PartyCriteria) ([]party.Party, error) {
	all, err := s.queryPartyRows(ctx, partySelect+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	out := make([]party.Party, 0, len(all))
	for _, record := range all {
		if matchesPartyCriteria(record, criteria) {
			out = append(out, record)
		}
	}
	return out, nil
}

// DeleteParty removes a party and reports whether a row existed.
func (s *Store) DeleteParty(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("party id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM parties WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete party %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete party %s: %w", id, err)
	}
	return affected > 0, nil
}

// CampingParties lists non-lost parties currently holding a camp reference.
func (s *Store) CampingParties(ctx context.Context) ([]party.Party, error) {
	return s.queryPartyRows(ctx,
		partySelect+` WHERE camp_id != '' AND is_lost = 0 ORDER BY name`)
}

// LostParties lists parties in the terminal lost state.
func (s *Store) LostParties(ctx context.Context) ([]party.Party, error) {
	return s.queryPartyRows(ctx, partySelect+` WHERE is_lost = 1 ORDER BY name`)
}

const partySelect = `SELECT id, name, member_ids_json, member_count, alive_count, gold,
	shared_inventory_json, in_town, camp_id, is_lost, lost_date, lost_reason,
	last_known_location, date_created, last_modified FROM parties`

func (s *Store) queryPartyRows(ctx context.Context, query string, args ...any) ([]party.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parties: %w", err)
	}
	defer rows.Close()

	var out []party.Party
	for rows.Next() {
		record, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return out, nil
}

func scanParty(row rowScanner) (party.Party, error) {
	var record party.Party
	var memberIDs, inventory string
	var inTown, isLost int64
	var lostDate sql.NullInt64
	var created, modified int64

	err := row.Scan(&record.ID, &record.Name, &memberIDs, &record.MemberCount,
		&record.AliveCount, &record.Gold, &inventory, &inTown, &record.CampID,
		&isLost, &lostDate, &record.LostReason, &record.LastKnownLocation,
		&created, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return party.Party{}, storage.ErrNotFound
		}
		return party.Party{}, fmt.Errorf("scan party: %w", err)
	}

	if err := json.Unmarshal([]byte(memberIDs), &record.MemberIDs); err != nil {
		return party.Party{}, fmt.Errorf("unmarshal party %s member ids: %w", record.ID, err)
	}
	var items []entity.ItemInstance
	if err := json.Unmarshal([]byte(inventory), &items); err != nil {
		return party.Party{}, fmt.Errorf("unmarshal party %s inventory: %w", record.ID, err)
	}
	record.SharedInventory = items
	record.InTown = inTown != 0
	record.IsLost = isLost != 0
	record.LostDate = fromNullMillis(lostDate)
	record.DateCreated = fromMillis(created)
	record.LastModified = fromMillis(modified)
	return record, nil
}

func matchesPartyCriteria(record party.Party, criteria storage.PartyCriteria) bool {
	if criteria.Name != "" && record.Name != criteria.Name {
		return false
	}
	if criteria.InTown != nil && record.InTown != *criteria.InTown {
		return false
	}
	if criteria.IsLost != nil && record.IsLost != *criteria.IsLost {
		return false
	}
	if criteria.Camped != nil && (record.CampID != "") != *criteria.Camped {
		return false
	}
	return true
}
