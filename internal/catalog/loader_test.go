package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/hollowspire/delve/internal/domain/entity"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/storage"
)

// spyStore counts seed writes so idempotence is observable.
type spyStore struct {
	version    string
	writes     int
	weapons    []entity.Weapon
	armor      []entity.Armor
	shields    []entity.Shield
	accs       []entity.Accessory
	spells     []entity.Spell
	conditions []entity.Condition
	effects    []entity.Effect
	monsters   []entity.Monster

	failSpells bool
}

func (s *spyStore) CatalogVersion(ctx context.Context) (string, error) { return s.version, nil }

func (s *spyStore) SetCatalogVersion(ctx context.Context, version string) error {
	s.writes++
	s.version = version
	return nil
}

func (s *spyStore) SeedWeapons(ctx context.Context, rows []entity.Weapon) error {
	s.writes++
	s.weapons = rows
	return nil
}

func (s *spyStore) SeedArmor(ctx context.Context, rows []entity.Armor) error {
	s.writes++
	s.armor = rows
	return nil
}

func (s *spyStore) SeedShields(ctx context.Context, rows []entity.Shield) error {
	s.writes++
	s.shields = rows
	return nil
}

func (s *spyStore) SeedAccessories(ctx context.Context, rows []entity.Accessory) error {
	s.writes++
	s.accs = rows
	return nil
}

func (s *spyStore) SeedSpells(ctx context.Context, rows []entity.Spell) error {
	if s.failSpells {
		return errors.New("disk full")
	}
	s.writes++
	s.spells = rows
	return nil
}

func (s *spyStore) SeedConditions(ctx context.Context, rows []entity.Condition) error {
	s.writes++
	s.conditions = rows
	return nil
}

func (s *spyStore) SeedEffects(ctx context.Context, rows []entity.Effect) error {
	s.writes++
	s.effects = rows
	return nil
}

func (s *spyStore) SeedMonsters(ctx context.Context, rows []entity.Monster) error {
	s.writes++
	s.monsters = rows
	return nil
}

func (s *spyStore) GetWeapon(ctx context.Context, id string) (entity.Weapon, error) {
	for _, row := range s.weapons {
		if row.ID == id {
			return row, nil
		}
	}
	return entity.Weapon{}, storage.ErrNotFound
}

func (s *spyStore) GetArmor(ctx context.Context, id string) (entity.Armor, error) {
	return entity.Armor{}, storage.ErrNotFound
}

func (s *spyStore) GetShield(ctx context.Context, id string) (entity.Shield, error) {
	return entity.Shield{}, storage.ErrNotFound
}

func (s *spyStore) GetAccessory(ctx context.Context, id string) (entity.Accessory, error) {
	return entity.Accessory{}, storage.ErrNotFound
}

func (s *spyStore) GetSpell(ctx context.Context, id string) (entity.Spell, error) {
	return entity.Spell{}, storage.ErrNotFound
}

func (s *spyStore) GetCondition(ctx context.Context, id string) (entity.Condition, error) {
	return entity.Condition{}, storage.ErrNotFound
}

func (s *spyStore) GetEffect(ctx context.Context, id string) (entity.Effect, error) {
	return entity.Effect{}, storage.ErrNotFound
}

func (s *spyStore) GetMonster(ctx context.Context, id string) (entity.Monster, error) {
	return entity.Monster{}, storage.ErrNotFound
}

func (s *spyStore) ListWeapons(ctx context.Context) ([]entity.Weapon, error) {
	return s.weapons, nil
}

func (s *spyStore) ListSpells(ctx context.Context) ([]entity.Spell, error) {
	return s.spells, nil
}

func (s *spyStore) ListMonsters(ctx context.Context) ([]entity.Monster, error) {
	return s.monsters, nil
}

func (s *spyStore) CountEntities(ctx context.Context, kind entity.Kind) (int64, error) {
	switch kind {
	case entity.KindWeapon:
		return int64(len(s.weapons)), nil
	case entity.KindArmor:
		return int64(len(s.armor)), nil
	case entity.KindShield:
		return int64(len(s.shields)), nil
	case entity.KindAccessory:
		return int64(len(s.accs)), nil
	case entity.KindSpell:
		return int64(len(s.spells)), nil
	case entity.KindCondition:
		return int64(len(s.conditions)), nil
	case entity.KindEffect:
		return int64(len(s.effects)), nil
	case entity.KindMonster:
		return int64(len(s.monsters)), nil
	}
	return 0, nil
}

var _ storage.CatalogStore = (*spyStore)(nil)

func TestFreshLoadPopulatesAllKinds(t *testing.T) {
	store := &spyStore{}
	loader := NewLoader(store)
	ctx := context.Background()

	needs, err := loader.NeedsUpdate(ctx)
	if err != nil {
		t.Fatalf("needs update: %v", err)
	}
	if !needs {
		t.Fatal("expected empty catalog to need an update")
	}

	if err := loader.LoadAll(ctx, false); err != nil {
		t.Fatalf("load all: %v", err)
	}

	for _, kind := range entity.AllKinds() {
		count, err := store.CountEntities(ctx, kind)
		if err != nil {
			t.Fatalf("count %s: %v", kind, err)
		}
		if count == 0 {
			t.Fatalf("expected %s rows after fresh load", kind)
		}
	}
	if store.version != Version {
		t.Fatalf("expected version marker %q, got %q", Version, store.version)
	}

	sword, err := store.GetWeapon(ctx, "long_sword")
	if err != nil {
		t.Fatalf("get seeded weapon: %v", err)
	}
	if sword.DamageDice != "1d8" || sword.Kind != entity.KindWeapon {
		t.Fatalf("expected descriptor fields to land, got %+v", sword)
	}
}

func TestSecondLoadIsNoOp(t *testing.T) {
	store := &spyStore{}
	loader := NewLoader(store)
	ctx := context.Background()

	if err := loader.LoadAll(ctx, false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	first := store.writes

	if err := loader.LoadAll(ctx, false); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if store.writes != first {
		t.Fatalf("expected zero writes on second load, got %d extra", store.writes-first)
	}

	needs, err := loader.NeedsUpdate(ctx)
	if err != nil {
		t.Fatalf("needs update: %v", err)
	}
	if needs {
		t.Fatal("expected matching version to need no update")
	}
}

func TestVersionBumpForcesReseed(t *testing.T) {
	store := &spyStore{version: "1.0.0"}
	loader := NewLoader(store)
	ctx := context.Background()

	needs, err := loader.NeedsUpdate(ctx)
	if err != nil {
		t.Fatalf("needs update: %v", err)
	}
	if !needs {
		t.Fatal("expected stale version to need an update")
	}

	if err := loader.LoadAll(ctx, false); err != nil {
		t.Fatalf("load all: %v", err)
	}
	if store.version != Version {
		t.Fatalf("expected marker bumped to %q, got %q", Version, store.version)
	}
	if store.writes != 9 {
		t.Fatalf("expected 8 kind seeds plus the marker, got %d writes", store.writes)
	}
}

func TestForceReloadIgnoresMarker(t *testing.T) {
	store := &spyStore{}
	loader := NewLoader(store)
	ctx := context.Background()

	if err := loader.LoadAll(ctx, false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	before := store.writes

	if err := loader.LoadAll(ctx, true); err != nil {
		t.Fatalf("forced load: %v", err)
	}
	if store.writes != before*2 {
		t.Fatalf("expected a full second pass, got %d writes total", store.writes)
	}
}

func TestSeedFailureAbortsBeforeMarker(t *testing.T) {
	store := &spyStore{failSpells: true}
	loader := NewLoader(store)

	err := loader.LoadAll(context.Background(), false)
	if err == nil {
		t.Fatal("expected seed failure to abort the pass")
	}
	var typed *platformerrors.Error
	if !errors.As(err, &typed) || typed.Code != platformerrors.CodeCatalogSeedFailed {
		t.Fatalf("expected seed-failed error, got %v", err)
	}
	if store.version != "" {
		t.Fatalf("expected no version marker after a failed pass, got %q", store.version)
	}
}
