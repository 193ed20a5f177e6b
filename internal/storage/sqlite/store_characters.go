package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/character"
	"github.com/hollowspire/delve/internal/storage"
)

// PutCharacter upserts a character record. DateCreated is stamped on first
// insert when the caller left it zero; LastModified is always stamped.
func (s *Store) PutCharacter(ctx context.Context, record character.Character) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("character id is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return fmt.Errorf("character name is required")
	}
	if _, err := character.NormalizeStatus(string(record.Status)); err != nil {
		return fmt.Errorf("put character %s: %w", record.ID, err)
	}

	now := time.Now().UTC()
	record.LastModified = now
	if record.DateCreated.IsZero() {
		record.DateCreated = now
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal character %s: %w", record.ID, err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO characters (id, name, race, class, level, status, party_id, phased_out, payload, date_created, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			race = excluded.race,
			class = excluded.class,
			level = excluded.level,
			status = excluded.status,
			party_id = excluded.party_id,
			phased_out = excluded.phased_out,
			payload = excluded.payload,
			last_modified = excluded.last_modified`,
		record.ID, record.Name, record.Race, record.Class, int64(record.Level),
		string(record.Status), record.PartyID, boolToInt(record.PhasedOut),
		string(payload), toMillis(record.DateCreated), toMillis(record.LastModified),
	)
	if err != nil {
		return fmt.Errorf("put character %s: %w", record.ID, err)
	}

	// Best-effort consistency check: a character pointing at a missing party
	// is recorded, never rejected.
	if record.PartyID != "" {
		var exists int
		err := s.sqlDB.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM parties WHERE id = ?`, record.PartyID).Scan(&exists)
		if err == nil && exists == 0 {
			if auditErr := s.AppendAuditEvent(ctx, storage.AuditEvent{
				EventName:   "character.party_missing",
				Severity:    "warn",
				CharacterID: record.ID,
				PartyID:     record.PartyID,
			}); auditErr != nil {
				log.Printf("sqlite: audit character %s party check: %v", record.ID, auditErr)
			}
		}
	}
	return nil
}

// GetCharacter loads one character by ID.
func (s *Store) GetCharacter(ctx context.Context, id string) (character.Character, error) {
	if err := ctx.Err(); err != nil {
		return character.Character{}, err
	}
	if err := s.ready(); err != nil {
		return character.Character{}, err
	}
	if strings.TrimSpace(id) == "" {
		return character.Character{}, fmt.Errorf("character id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload, date_created, last_modified FROM characters WHERE id = ?`, id)
	return scanCharacter(row)
}

// ListCharacters returns every character record.
func (s *Store) ListCharacters(ctx context.Context) ([]character.Character, error) {
	return s.queryCharacterRows(ctx,
		`SELECT payload, date_created, last_modified FROM characters ORDER BY name`)
}

// QueryCharacters filters characters by the populated criteria. A single
// populated indexed criterion runs against its index; combined criteria fall
// back to a scan with an in-memory predicate.
func (s *Store) QueryCharacters(ctx context.Context, criteria storage.CharacterCriteria) ([]character.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	if query, arg, ok := singleCharacterCriterion(criteria); ok {
		return s.queryCharacterRows(ctx, query, arg)
	}

	all, err := s.queryCharacterRows(ctx,
		`SELECT payload, date_created, last_modified FROM characters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	out := make([]character.Character, 0, len(all))
	for _, record := range all {
		if matchesCharacterCriteria(record, criteria) {
			out = append(out, record)
		}
	}
	return out, nil
}

// DeleteCharacter removes a character and reports whether a row existed.
func (s *Store) DeleteCharacter(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("character id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete character %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete character %s: %w", id, err)
	}
	return affected > 0, nil
}

// ActivePartyMembers lists a party's members that are not phased out.
func (s *Store) ActivePartyMembers(ctx context.Context, partyID string) ([]character.Character, error) {
	if strings.TrimSpace(partyID) == "" {
		return nil, fmt.Errorf("party id is required")
	}
	return s.queryCharacterRows(ctx, `
		SELECT payload, date_created, last_modified FROM characters
		WHERE party_id = ? AND phased_out = 0 ORDER BY name`, partyID)
}

// PhasedOutPartyMembers lists a party's members sitting out the current run.
func (s *Store) PhasedOutPartyMembers(ctx context.Context, partyID string) ([]character.Character, error) {
	if strings.TrimSpace(partyID) == "" {
		return nil, fmt.Errorf("party id is required")
	}
	return s.queryCharacterRows(ctx, `
		SELECT payload, date_created, last_modified FROM characters
		WHERE party_id = ? AND phased_out = 1 ORDER BY name`, partyID)
}

func (s *Store) queryCharacterRows(ctx context.Context, query string, args ...any) ([]character.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query characters: %w", err)
	}
	defer rows.Close()

	var out []character.Character
	for rows.Next() {
		record, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate characters: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner) (character.Character, error) {
	var payload string
	var created, modified int64
	if err := row.Scan(&payload, &created, &modified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return character.Character{}, storage.ErrNotFound
		}
		return character.Character{}, fmt.Errorf("scan character: %w", err)
	}

	var record character.Character
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return character.Character{}, fmt.Errorf("unmarshal character: %w", err)
	}
	record.DateCreated = fromMillis(created)
	record.LastModified = fromMillis(modified)
	return record, nil
}

// singleCharacterCriterion maps a lone populated criterion onto its index.
func singleCharacterCriterion(criteria storage.CharacterCriteria) (string, any, bool) {
	const base = `SELECT payload, date_created, last_modified FROM characters WHERE `

	type candidate struct {
		clause string
		arg    any
		set    bool
	}
	candidates := []candidate{
		{"name = ? ORDER BY name", criteria.Name, criteria.Name != ""},
		{"race = ? ORDER BY name", criteria.Race, criteria.Race != ""},
		{"class = ? ORDER BY name", criteria.Class, criteria.Class != ""},
		{"level = ? ORDER BY name", levelArg(criteria.Level), criteria.Level != nil},
		{"status = ? ORDER BY name", string(criteria.Status), criteria.Status != ""},
		{"party_id = ? ORDER BY name", criteria.PartyID, criteria.PartyID != ""},
		{"date_created > ? ORDER BY date_created", timeArg(criteria.CreatedAfter), criteria.CreatedAfter != nil},
		{"last_modified > ? ORDER BY last_modified", timeArg(criteria.ModifiedAfter), criteria.ModifiedAfter != nil},
	}

	var picked *candidate
	populated := 0
	for i := range candidates {
		if candidates[i].set {
			populated++
			picked = &candidates[i]
		}
	}
	if populated != 1 {
		return "", nil, false
	}
	return base + picked.clause, picked.arg, true
}

func levelArg(level *int) any {
	if level == nil {
		return int64(0)
	}
	return int64(*level)
}

func timeArg(value *time.Time) any {
	if value == nil {
		return int64(0)
	}
	return toMillis(*value)
}

func matchesCharacterCriteria(record character.Character, criteria storage.CharacterCriteria) bool {
	if criteria.Name != "" && record.Name != criteria.Name {
		return false
	}
	if criteria.Race != "" && record.Race != criteria.Race {
		return false
	}
	if criteria.Class != "" && record.Class != criteria.Class {
		return false
	}
	if criteria.Level != nil && record.Level != *criteria.Level {
		return false
	}
	if criteria.Status != "" && record.Status != criteria.Status {
		return false
	}
	if criteria.PartyID != "" && record.PartyID != criteria.PartyID {
		return false
	}
	if criteria.CreatedAfter != nil && !record.DateCreated.After(*criteria.CreatedAfter) {
		return false
	}
	if criteria.ModifiedAfter != nil && !record.LastModified.After(*criteria.ModifiedAfter) {
		return false
	}
	return true
}
