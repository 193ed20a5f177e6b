// Package character defines durable player character records: identity,
// derived stats, equipment and inventory, spell state, conditions, and the
// party-assignment metadata the party store references by ID.
package character

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/entity"
	"github.com/hollowspire/delve/internal/platform/id"
)

// Status is the canonical life status vocabulary.
type Status string

const (
	StatusAlive       Status = "alive"
	StatusUnconscious Status = "unconscious"
	StatusDead        Status = "dead"
	StatusAshes       Status = "ashes"
	// StatusLost is terminal. Lost characters are never physically deleted;
	// the status itself is the tombstone.
	StatusLost Status = "lost"
)

// ErrInvalidStatus indicates a status outside the canonical vocabulary.
var ErrInvalidStatus = errors.New("invalid character status")

// NormalizeStatus maps free-form status strings onto the canonical
// vocabulary. Legacy saves used a handful of synonyms.
func NormalizeStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "alive", "ok", "good":
		return StatusAlive, nil
	case "unconscious", "ko", "down":
		return StatusUnconscious, nil
	case "dead":
		return StatusDead, nil
	case "ashes":
		return StatusAshes, nil
	case "lost":
		return StatusLost, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Alive reports whether the character counts toward a party's alive total.
func (s Status) Alive() bool {
	return s == StatusAlive || s == StatusUnconscious
}

// Slot names an equipment slot.
type Slot string

const (
	SlotWeapon     Slot = "weapon"
	SlotArmor      Slot = "armor"
	SlotShield     Slot = "shield"
	SlotAccessory1 Slot = "accessory1"
	SlotAccessory2 Slot = "accessory2"
)

// Attributes are the six rolled ability scores.
type Attributes struct {
	Strength     int `json:"strength"`
	Intelligence int `json:"intelligence"`
	Piety        int `json:"piety"`
	Vitality     int `json:"vitality"`
	Agility      int `json:"agility"`
	Luck         int `json:"luck"`
}

// ActiveCondition tracks a condition instance on a character.
type ActiveCondition struct {
	ConditionID string `json:"conditionId"`
	Remaining   int    `json:"remaining,omitempty"`
}

// ActiveEffect tracks a transient effect instance on a character.
type ActiveEffect struct {
	EffectID  string `json:"effectId"`
	Remaining int    `json:"remaining,omitempty"`
}

// Character is the durable record for one player character.
type Character struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Race       string `json:"race"`
	Class      string `json:"class"`
	Level      int    `json:"level"`
	Experience int64  `json:"experience"`

	HP         int        `json:"hp"`
	MaxHP      int        `json:"maxHp"`
	SP         int        `json:"sp"`
	MaxSP      int        `json:"maxSp"`
	Attributes Attributes `json:"attributes"`
	Status     Status     `json:"status"`

	// Equipment slots hold either nothing (absent key) or an item instance.
	Equipment  map[Slot]entity.ItemInstance `json:"equipment,omitempty"`
	Inventory  []entity.ItemInstance        `json:"inventory,omitempty"`
	Spellbook  []string                     `json:"spellbook,omitempty"`
	Memorized  []string                     `json:"memorized,omitempty"`
	Conditions []ActiveCondition            `json:"conditions,omitempty"`
	Effects    []ActiveEffect               `json:"effects,omitempty"`

	PartyID        string     `json:"partyId,omitempty"`
	PhasedOut      bool       `json:"phasedOut,omitempty"`
	PhaseOutReason string     `json:"phaseOutReason,omitempty"`
	PhaseOutDate   *time.Time `json:"phaseOutDate,omitempty"`
	Loyalty        int        `json:"loyalty"`

	DateCreated  time.Time `json:"dateCreated"`
	LastModified time.Time `json:"lastModified"`
}

// CreateInput describes the fields needed at character creation.
type CreateInput struct {
	Name       string
	Race       string
	Class      string
	Attributes Attributes
	MaxHP      int
	MaxSP      int
}

// Create rolls a new level-one character with a generated ID.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Character, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if strings.TrimSpace(input.Name) == "" {
		return Character{}, fmt.Errorf("character name is required")
	}
	if strings.TrimSpace(input.Race) == "" {
		return Character{}, fmt.Errorf("character race is required")
	}
	if strings.TrimSpace(input.Class) == "" {
		return Character{}, fmt.Errorf("character class is required")
	}
	if input.MaxHP <= 0 {
		return Character{}, fmt.Errorf("character max hp must be positive")
	}

	generated, err := idGenerator()
	if err != nil {
		return Character{}, fmt.Errorf("generate character id: %w", err)
	}

	created := now().UTC()
	return Character{
		ID:           generated,
		Name:         input.Name,
		Race:         input.Race,
		Class:        input.Class,
		Level:        1,
		HP:           input.MaxHP,
		MaxHP:        input.MaxHP,
		SP:           input.MaxSP,
		MaxSP:        input.MaxSP,
		Attributes:   input.Attributes,
		Status:       StatusAlive,
		Loyalty:      50,
		DateCreated:  created,
		LastModified: created,
	}, nil
}

// Clone deep-copies the record so callers can persist a snapshot without the
// stored copy aliasing live slices and maps.
func (c Character) Clone() Character {
	out := c

	if c.Equipment != nil {
		out.Equipment = make(map[Slot]entity.ItemInstance, len(c.Equipment))
		for slot, item := range c.Equipment {
			out.Equipment[slot] = item
		}
	}
	out.Inventory = entity.CloneInstances(c.Inventory)
	out.Spellbook = cloneStrings(c.Spellbook)
	out.Memorized = cloneStrings(c.Memorized)
	if c.Conditions != nil {
		out.Conditions = make([]ActiveCondition, len(c.Conditions))
		copy(out.Conditions, c.Conditions)
	}
	if c.Effects != nil {
		out.Effects = make([]ActiveEffect, len(c.Effects))
		copy(out.Effects, c.Effects)
	}
	if c.PhaseOutDate != nil {
		when := *c.PhaseOutDate
		out.PhaseOutDate = &when
	}
	return out
}

// WithStatus returns a copy with a normalized status applied.
func (c Character) WithStatus(raw string) (Character, error) {
	status, err := NormalizeStatus(raw)
	if err != nil {
		return Character{}, err
	}
	out := c.Clone()
	out.Status = status
	return out, nil
}

// AssignToParty returns a copy attached to the given party.
func (c Character) AssignToParty(partyID string) (Character, error) {
	if strings.TrimSpace(partyID) == "" {
		return Character{}, fmt.Errorf("party id is required")
	}
	out := c.Clone()
	out.PartyID = partyID
	out.PhasedOut = false
	out.PhaseOutReason = ""
	out.PhaseOutDate = nil
	return out, nil
}

// PhaseOut returns a copy temporarily removed from active party duty. The
// party assignment is kept so the character can be phased back in.
func (c Character) PhaseOut(reason string, at time.Time) Character {
	out := c.Clone()
	out.PhasedOut = true
	out.PhaseOutReason = reason
	when := at.UTC()
	out.PhaseOutDate = &when
	return out
}

// PhaseIn reverses a phase-out.
func (c Character) PhaseIn() Character {
	out := c.Clone()
	out.PhasedOut = false
	out.PhaseOutReason = ""
	out.PhaseOutDate = nil
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
