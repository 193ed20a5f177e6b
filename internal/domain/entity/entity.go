// Package entity defines the static catalog definitions shared by every save:
// weapons, armor, shields, accessories, spells, conditions, effects, and
// monsters. Definitions are immutable after seeding; mutable per-character
// copies are minted as item instances with their own identity.
package entity

import (
	"fmt"
	"strings"
)

// Kind identifies one of the eight catalog entity kinds.
type Kind string

const (
	KindWeapon    Kind = "weapon"
	KindArmor     Kind = "armor"
	KindShield    Kind = "shield"
	KindAccessory Kind = "accessory"
	KindSpell     Kind = "spell"
	KindCondition Kind = "condition"
	KindEffect    Kind = "effect"
	KindMonster   Kind = "monster"
)

// AllKinds returns the catalog kinds in seeding order.
func AllKinds() []Kind {
	return []Kind{
		KindWeapon,
		KindArmor,
		KindShield,
		KindAccessory,
		KindSpell,
		KindCondition,
		KindEffect,
		KindMonster,
	}
}

// Flags carries the identification state shared by equippable definitions.
type Flags struct {
	Magical      bool `json:"magical,omitempty" yaml:"magical"`
	Cursed       bool `json:"cursed,omitempty" yaml:"cursed"`
	Unidentified bool `json:"unidentified,omitempty" yaml:"unidentified"`
}

// Definition is the common header of a catalog row.
type Definition struct {
	ID    string `json:"id" yaml:"id"`
	Kind  Kind   `json:"kind" yaml:"kind"`
	Name  string `json:"name" yaml:"name"`
	Flags Flags  `json:"flags" yaml:"flags"`
}

// Validate checks the header fields every catalog row must carry.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("entity id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("entity %q: name is required", d.ID)
	}
	switch d.Kind {
	case KindWeapon, KindArmor, KindShield, KindAccessory,
		KindSpell, KindCondition, KindEffect, KindMonster:
	default:
		return fmt.Errorf("entity %q: unknown kind %q", d.ID, d.Kind)
	}
	return nil
}

// Weapon is an attack item definition.
type Weapon struct {
	Definition  `yaml:",inline"`
	DamageDice  string   `json:"damageDice" yaml:"damage_dice"`
	AttackBonus int      `json:"attackBonus,omitempty" yaml:"attack_bonus"`
	Hands       int      `json:"hands" yaml:"hands"`
	Classes     []string `json:"classes,omitempty" yaml:"classes"`
	Price       int      `json:"price,omitempty" yaml:"price"`
}

// Armor is a body armor definition.
type Armor struct {
	Definition `yaml:",inline"`
	ACBonus    int      `json:"acBonus" yaml:"ac_bonus"`
	Classes    []string `json:"classes,omitempty" yaml:"classes"`
	Price      int      `json:"price,omitempty" yaml:"price"`
}

// Shield is an off-hand defensive item definition.
type Shield struct {
	Definition `yaml:",inline"`
	ACBonus    int      `json:"acBonus" yaml:"ac_bonus"`
	Classes    []string `json:"classes,omitempty" yaml:"classes"`
	Price      int      `json:"price,omitempty" yaml:"price"`
}

// Accessory is a ring/amulet style definition.
type Accessory struct {
	Definition `yaml:",inline"`
	Slot       string `json:"slot" yaml:"slot"`
	ACBonus    int    `json:"acBonus,omitempty" yaml:"ac_bonus"`
	Price      int    `json:"price,omitempty" yaml:"price"`
}

// Spell is a castable spell definition.
type Spell struct {
	Definition `yaml:",inline"`
	School     string `json:"school" yaml:"school"`
	Level      int    `json:"level" yaml:"level"`
	Cost       int    `json:"cost" yaml:"cost"`
	Target     string `json:"target,omitempty" yaml:"target"`
	Summary    string `json:"summary,omitempty" yaml:"summary"`
}

// Condition is a persistent ailment definition (poison, paralysis, ...).
type Condition struct {
	Definition      `yaml:",inline"`
	Severity        int  `json:"severity" yaml:"severity"`
	Curable         bool `json:"curable" yaml:"curable"`
	DefaultDuration int  `json:"defaultDuration,omitempty" yaml:"default_duration"`
}

// Effect is a transient stat modifier definition (buffs, debuffs).
type Effect struct {
	Definition `yaml:",inline"`
	Modifiers  map[string]int `json:"modifiers,omitempty" yaml:"modifiers"`
	Duration   int            `json:"duration" yaml:"duration"`
	Stacking   bool           `json:"stacking" yaml:"stacking"`
}

// Monster is an adversary stat block definition.
type Monster struct {
	Definition `yaml:",inline"`
	Level      int      `json:"level" yaml:"level"`
	HPDice     string   `json:"hpDice" yaml:"hp_dice"`
	ArmorClass int      `json:"armorClass" yaml:"armor_class"`
	Attacks    []string `json:"attacks,omitempty" yaml:"attacks"`
	Experience int      `json:"experience" yaml:"experience"`
	DropTier   int      `json:"dropTier,omitempty" yaml:"drop_tier"`
}
