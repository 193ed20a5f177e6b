package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/camp"
	"github.com/hollowspire/delve/internal/storage"
)

// PutCamp upserts a checkpoint. Records failing validation never reach the
// table, and legacy embedded-member shapes are rejected here; callers convert
// them to the reference shape first.
func (s *Store) PutCamp(ctx context.Context, record camp.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.IsLegacy() {
		return fmt.Errorf("camp %s: embedded-member records must be converted before storage", record.CampID)
	}

	memberIDs, err := json.Marshal(record.MemberIDs)
	if err != nil {
		return fmt.Errorf("marshal camp %s member ids: %w", record.CampID, err)
	}
	resources, err := json.Marshal(record.Resources)
	if err != nil {
		return fmt.Errorf("marshal camp %s resources: %w", record.CampID, err)
	}
	progress, err := json.Marshal(record.Progress)
	if err != nil {
		return fmt.Errorf("marshal camp %s progress: %w", record.CampID, err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO camps (camp_id, party_id, party_name, member_ids_json, member_count,
			alive_count, dungeon_id, floor, x, y, facing, camp_time, resources_json, progress_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(camp_id) DO UPDATE SET
			party_id = excluded.party_id,
			party_name = excluded.party_name,
			member_ids_json = excluded.member_ids_json,
			member_count = excluded.member_count,
			alive_count = excluded.alive_count,
			dungeon_id = excluded.dungeon_id,
			floor = excluded.floor,
			x = excluded.x,
			y = excluded.y,
			facing = excluded.facing,
			camp_time = excluded.camp_time,
			resources_json = excluded.resources_json,
			progress_json = excluded.progress_json`,
		record.CampID, record.PartyID, record.PartyName, string(memberIDs),
		int64(record.MemberCount), int64(record.AliveCount),
		record.Location.DungeonID, int64(record.Location.Floor),
		int64(record.Location.X), int64(record.Location.Y), record.Location.Facing,
		toMillis(record.CampTime), string(resources), string(progress),
	)
	if err != nil {
		return fmt.Errorf("put camp %s: %w", record.CampID, err)
	}
	return nil
}

// GetCamp loads one checkpoint by camp ID.
func (s *Store) GetCamp(ctx context.Context, campID string) (camp.Record, error) {
	if err := ctx.Err(); err != nil {
		return camp.Record{}, err
	}
	if err := s.ready(); err != nil {
		return camp.Record{}, err
	}
	if strings.TrimSpace(campID) == "" {
		return camp.Record{}, fmt.Errorf("camp id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, campSelect+` WHERE camp_id = ?`, campID)
	return scanCamp(row)
}

// ListCamps returns every checkpoint, newest first.
func (s *Store) ListCamps(ctx context.Context) ([]camp.Record, error) {
	return s.queryCampRows(ctx, campSelect+` ORDER BY camp_time DESC`)
}

// QueryCamps filters checkpoints by the populated criteria, newest first.
func (s *Store) QueryCamps(ctx context.Context, criteria storage.CampCriteria) ([]camp.Record, error) {
	query := campSelect
	var clauses []string
	var args []any
	if criteria.PartyID != "" {
		clauses = append(clauses, "party_id = ?")
		args = append(args, criteria.PartyID)
	}
	if criteria.DungeonID != "" {
		clauses = append(clauses, "dungeon_id = ?")
		args = append(args, criteria.DungeonID)
	}
	if criteria.Since != nil {
		clauses = append(clauses, "camp_time >= ?")
		args = append(args, toMillis(*criteria.Since))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY camp_time DESC"
	return s.queryCampRows(ctx, query, args...)
}

// DeleteCamp removes a checkpoint and reports whether a row existed.
func (s *Store) DeleteCamp(ctx context.Context, campID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(campID) == "" {
		return false, fmt.Errorf("camp id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM camps WHERE camp_id = ?`, campID)
	if err != nil {
		return false, fmt.Errorf("delete camp %s: %w", campID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete camp %s: %w", campID, err)
	}
	return affected > 0, nil
}

// DeleteCampsBefore removes checkpoints older than cutoff and reports how many
// rows were deleted.
func (s *Store) DeleteCampsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM camps WHERE camp_time < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete camps before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete camps before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return int(affected), nil
}

const campSelect = `SELECT camp_id, party_id, party_name, member_ids_json, member_count,
	alive_count, dungeon_id, floor, x, y, facing, camp_time, resources_json, progress_json
	FROM camps`

func (s *Store) queryCampRows(ctx context.Context, query string, args ...any) ([]camp.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query camps: %w", err)
	}
	defer rows.Close()

	var out []camp.Record
	for rows.Next() {
		record, err := scanCamp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate camps: %w", err)
	}
	return out, nil
}

func scanCamp(row rowScanner) (camp.Record, error) {
	var record camp.Record
	var memberIDs, resources, progress string
	var campTime int64

	err := row.Scan(&record.CampID, &record.PartyID, &record.PartyName, &memberIDs,
		&record.MemberCount, &record.AliveCount, &record.Location.DungeonID,
		&record.Location.Floor, &record.Location.X, &record.Location.Y,
		&record.Location.Facing, &campTime, &resources, &progress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return camp.Record{}, storage.ErrNotFound
		}
		return camp.Record{}, fmt.Errorf("scan camp: %w", err)
	}

	if err := json.Unmarshal([]byte(memberIDs), &record.MemberIDs); err != nil {
		return camp.Record{}, fmt.Errorf("unmarshal camp %s member ids: %w", record.CampID, err)
	}
	if err := json.Unmarshal([]byte(resources), &record.Resources); err != nil {
		return camp.Record{}, fmt.Errorf("unmarshal camp %s resources: %w", record.CampID, err)
	}
	if err := json.Unmarshal([]byte(progress), &record.Progress); err != nil {
		return camp.Record{}, fmt.Errorf("unmarshal camp %s progress: %w", record.CampID, err)
	}
	record.CampTime = fromMillis(campTime)
	return record, nil
}
