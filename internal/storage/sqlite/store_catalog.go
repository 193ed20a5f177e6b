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
	"github.com/hollowspire/delve/internal/storage"
)

const catalogVersionKey = "catalog_version"

func catalogTable(kind entity.Kind) (string, error) {
	switch kind {
	case entity.KindWeapon:
		return "catalog_weapons", nil
	case entity.KindArmor:
		return "catalog_armor", nil
	case entity.KindShield:
		return "catalog_shields", nil
	case entity.KindAccessory:
		return "catalog_accessories", nil
	case entity.KindSpell:
		return "catalog_spells", nil
	case entity.KindCondition:
		return "catalog_conditions", nil
	case entity.KindEffect:
		return "catalog_effects", nil
	case entity.KindMonster:
		return "catalog_monsters", nil
	default:
		return "", fmt.Errorf("unknown catalog kind %q", kind)
	}
}

// CatalogVersion returns the version marker of the last completed seed, or
// empty when the catalog has never been seeded.
func (s *Store) CatalogVersion(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ready(); err != nil {
		return "", err
	}

	var version string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM catalog_meta WHERE key = ?`, catalogVersionKey).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get catalog version: %w", err)
	}
	return version, nil
}

// SetCatalogVersion writes the version marker. Seeding writes it last so a
// partial seed never reads as complete.
func (s *Store) SetCatalogVersion(ctx context.Context, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("catalog version is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO catalog_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		catalogVersionKey, version)
	if err != nil {
		return fmt.Errorf("set catalog version: %w", err)
	}
	return nil
}

// seedCatalogRows replaces a kind's rows wholesale inside one transaction.
func seedCatalogRows[T any](ctx context.Context, s *Store, kind entity.Kind, rows []T, header func(T) entity.Definition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	table, err := catalogTable(kind)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed %s: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	seededAt := time.Now().UTC().UnixMilli()
	for _, row := range rows {
		def := header(row)
		if err := def.Validate(); err != nil {
			return err
		}
		if def.Kind != kind {
			return fmt.Errorf("entity %q: kind %q does not belong in %s", def.ID, def.Kind, table)
		}
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", kind, def.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO `+table+` (id, name, magical, cursed, unidentified, payload, seeded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			def.ID, def.Name, boolToInt(def.Flags.Magical), boolToInt(def.Flags.Cursed),
			boolToInt(def.Flags.Unidentified), string(payload), seededAt)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", kind, def.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed %s: %w", table, err)
	}
	return nil
}

func getCatalogRow[T any](ctx context.Context, s *Store, kind entity.Kind, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := s.ready(); err != nil {
		return zero, err
	}
	if strings.TrimSpace(id) == "" {
		return zero, fmt.Errorf("%s id is required", kind)
	}
	table, err := catalogTable(kind)
	if err != nil {
		return zero, err
	}

	var payload string
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM `+table+` WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, storage.ErrNotFound
		}
		return zero, fmt.Errorf("get %s %s: %w", kind, id, err)
	}

	var row T
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return zero, fmt.Errorf("unmarshal %s %s: %w", kind, id, err)
	}
	return row, nil
}

func listCatalogRows[T any](ctx context.Context, s *Store, kind entity.Kind) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	table, err := catalogTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT payload FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		var row T
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) SeedWeapons(ctx context.Context, rows []entity.Weapon) error {
	return seedCatalogRows(ctx, s, entity.KindWeapon, rows, func(r entity.Weapon) entity.Definition { return r.Definition })
}

func (s *Store) SeedArmor(ctx context.Context, rows []entity.Armor) error {
	return seedCatalogRows(ctx, s, entity.KindArmor, rows, func(r entity.Armor) entity.Definition { return r.Definition })
}

func (s *Store) SeedShields(ctx context.Context, rows []entity.Shield) error {
	return seedCatalogRows(ctx, s, entity.KindShield, rows, func(r entity.Shield) entity.Definition { return r.Definition })
}

func (s *Store) SeedAccessories(ctx context.Context, rows []entity.Accessory) error {
	return seedCatalogRows(ctx, s, entity.KindAccessory, rows, func(r entity.Accessory) entity.Definition { return r.Definition })
}

func (s *Store) SeedSpells(ctx context.Context, rows []entity.Spell) error {
	return seedCatalogRows(ctx, s, entity.KindSpell, rows, func(r entity.Spell) entity.Definition { return r.Definition })
}

func (s *Store) SeedConditions(ctx context.Context, rows []entity.Condition) error {
	return seedCatalogRows(ctx, s, entity.KindCondition, rows, func(r entity.Condition) entity.Definition { return r.Definition })
}

func (s *Store) SeedEffects(ctx context.Context, rows []entity.Effect) error {
	return seedCatalogRows(ctx, s, entity.KindEffect, rows, func(r entity.Effect) entity.Definition { return r.Definition })
}

func (s *Store) SeedMonsters(ctx context.Context, rows []entity.Monster) error {
	return seedCatalogRows(ctx, s, entity.KindMonster, rows, func(r entity.Monster) entity.Definition { return r.Definition })
}

// GetWeapon retrieves a weapon catalog entry.
func (s *Store) GetWeapon(ctx context.Context, id string) (entity.Weapon, error) {
	return getCatalogRow[entity.Weapon](ctx, s, entity.KindWeapon, id)
}

// GetArmor retrieves a body armor catalog entry.
func (s *Store) GetArmor(ctx context.Context, id string) (entity.Armor, error) {
	return getCatalogRow[entity.Armor](ctx, s, entity.KindArmor, id)
}

// GetShield retrieves a shield catalog entry.
func (s *Store) GetShield(ctx context.Context, id string) (entity.Shield, error) {
	return getCatalogRow[entity.Shield](ctx, s, entity.KindShield, id)
}

// GetAccessory retrieves an accessory catalog entry.
func (s *Store) GetAccessory(ctx context.Context, id string) (entity.Accessory, error) {
	return getCatalogRow[entity.Accessory](ctx, s, entity.KindAccessory, id)
}

// GetSpell retrieves a spell catalog entry.
func (s *Store) GetSpell(ctx context.Context, id string) (entity.Spell, error) {
	return getCatalogRow[entity.Spell](ctx, s, entity.KindSpell, id)
}

// GetCondition retrieves a condition catalog entry.
func (s *Store) GetCondition(ctx context.Context, id string) (entity.Condition, error) {
	return getCatalogRow[entity.Condition](ctx, s, entity.KindCondition, id)
}

// GetEffect retrieves an effect catalog entry.
func (s *Store) GetEffect(ctx context.Context, id string) (entity.Effect, error) {
	return getCatalogRow[entity.Effect](ctx, s, entity.KindEffect, id)
}

// GetMonster retrieves a monster catalog entry.
func (s *Store) GetMonster(ctx context.Context, id string) (entity.Monster, error) {
	return getCatalogRow[entity.Monster](ctx, s, entity.KindMonster, id)
}

// ListWeapons lists all weapon catalog entries.
func (s *Store) ListWeapons(ctx context.Context) ([]entity.Weapon, error) {
	return listCatalogRows[entity.Weapon](ctx, s, entity.KindWeapon)
}

// ListSpells lists all spell catalog entries.
func (s *Store) ListSpells(ctx context.Context) ([]entity.Spell, error) {
	return listCatalogRows[entity.Spell](ctx, s, entity.KindSpell)
}

// ListMonsters lists all monster catalog entries.
func (s *Store) ListMonsters(ctx context.Context) ([]entity.Monster, error) {
	return listCatalogRows[entity.Monster](ctx, s, entity.KindMonster)
}

// CountEntities reports how many rows a kind's table holds.
func (s *Store) CountEntities(ctx context.Context, kind entity.Kind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}
	table, err := catalogTable(kind)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}
