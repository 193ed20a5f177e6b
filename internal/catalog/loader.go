// Package catalog seeds the entity catalog from the bundled descriptors and
// reconciles the stored version marker against the compiled one.
package catalog

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/yaml.v3"

	"github.com/hollowspire/delve/internal/catalog/descriptors"
	"github.com/hollowspire/delve/internal/domain/entity"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/storage"
)

// Version is the compiled catalog version. Bumping it forces a full re-seed
// of all eight entity kinds on next load.
const Version = "1.1.0"

// Loader reconciles the stored catalog against the bundled descriptors.
type Loader struct {
	store   storage.CatalogStore
	version string
	logf    func(format string, args ...any)
}

// NewLoader builds a loader over the given catalog store.
func NewLoader(store storage.CatalogStore) *Loader {
	return &Loader{store: store, version: Version, logf: log.Printf}
}

// NeedsUpdate reports whether the stored version marker is absent or differs
// from the compiled version.
func (l *Loader) NeedsUpdate(ctx context.Context) (bool, error) {
	stored, err := l.store.CatalogVersion(ctx)
	if err != nil {
		return false, fmt.Errorf("read catalog version: %w", err)
	}
	return stored != l.version, nil
}

// LoadAll seeds every entity kind from its bundled descriptor. When the
// stored version already matches and force is false, the call is a no-op
// with zero writes. Any descriptor or seed failure aborts the whole pass;
// the version marker is written only after every kind landed, so a partial
// seed never reads as complete.
func (l *Loader) LoadAll(ctx context.Context, force bool) error {
	if !force {
		needs, err := l.NeedsUpdate(ctx)
		if err != nil {
			return err
		}
		if !needs {
			return nil
		}
	}

	weapons, err := loadDescriptor(l, "weapons.yaml", entity.KindWeapon,
		func(r *entity.Weapon) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedWeapons(ctx, weapons); err != nil {
		return seedFailed(entity.KindWeapon, err)
	}

	armor, err := loadDescriptor(l, "armor.yaml", entity.KindArmor,
		func(r *entity.Armor) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedArmor(ctx, armor); err != nil {
		return seedFailed(entity.KindArmor, err)
	}

	shields, err := loadDescriptor(l, "shields.yaml", entity.KindShield,
		func(r *entity.Shield) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedShields(ctx, shields); err != nil {
		return seedFailed(entity.KindShield, err)
	}

	accessories, err := loadDescriptor(l, "accessories.yaml", entity.KindAccessory,
		func(r *entity.Accessory) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedAccessories(ctx, accessories); err != nil {
		return seedFailed(entity.KindAccessory, err)
	}

	spells, err := loadDescriptor(l, "spells.yaml", entity.KindSpell,
		func(r *entity.Spell) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedSpells(ctx, spells); err != nil {
		return seedFailed(entity.KindSpell, err)
	}

	conditions, err := loadDescriptor(l, "conditions.yaml", entity.KindCondition,
		func(r *entity.Condition) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedConditions(ctx, conditions); err != nil {
		return seedFailed(entity.KindCondition, err)
	}

	effects, err := loadDescriptor(l, "effects.yaml", entity.KindEffect,
		func(r *entity.Effect) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedEffects(ctx, effects); err != nil {
		return seedFailed(entity.KindEffect, err)
	}

	monsters, err := loadDescriptor(l, "monsters.yaml", entity.KindMonster,
		func(r *entity.Monster) *entity.Definition { return &r.Definition })
	if err != nil {
		return err
	}
	if err := l.store.SeedMonsters(ctx, monsters); err != nil {
		return seedFailed(entity.KindMonster, err)
	}

	if err := l.store.SetCatalogVersion(ctx, l.version); err != nil {
		return fmt.Errorf("write catalog version: %w", err)
	}
	return nil
}

func seedFailed(kind entity.Kind, err error) error {
	return platformerrors.Wrap(platformerrors.CodeCatalogSeedFailed,
		fmt.Sprintf("seed %s catalog", kind), err)
}

type descriptorDoc[T any] struct {
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Data        []T    `yaml:"data"`
}

// loadDescriptor parses one bundled descriptor and filters its rows. Rows
// failing validation are logged and dropped rather than failing the pass;
// a descriptor that cannot be read or whose version disagrees with the
// compiled one aborts the whole seed.
func loadDescriptor[T any](l *Loader, name string, kind entity.Kind, def func(*T) *entity.Definition) ([]T, error) {
	raw, err := descriptors.FS.ReadFile(name)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeCatalogDescriptorInvalid,
			fmt.Sprintf("read %s descriptor", kind), err)
	}

	var doc descriptorDoc[T]
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeCatalogDescriptorInvalid,
			fmt.Sprintf("parse %s descriptor", kind), err)
	}
	if doc.Version != l.version {
		return nil, platformerrors.WithMetadata(platformerrors.CodeCatalogDescriptorInvalid,
			fmt.Sprintf("%s descriptor version %q does not match compiled %q", kind, doc.Version, l.version),
			map[string]string{"descriptor": name})
	}

	kept := make([]T, 0, len(doc.Data))
	for i := range doc.Data {
		header := def(&doc.Data[i])
		if header.Kind == "" {
			header.Kind = kind
		}
		if err := header.Validate(); err != nil {
			l.logf("catalog: dropping invalid %s row: %v", kind, err)
			continue
		}
		if header.Kind != kind {
			l.logf("catalog: dropping %s row %q with kind %q", kind, header.ID, header.Kind)
			continue
		}
		kept = append(kept, doc.Data[i])
	}
	return kept, nil
}
