package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hollowspire/delve/internal/domain/camp"
	"github.com/hollowspire/delve/internal/domain/character"
	"github.com/hollowspire/delve/internal/domain/dungeon"
	"github.com/hollowspire/delve/internal/domain/entity"
	"github.com/hollowspire/delve/internal/domain/party"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// CharacterCriteria filters character queries. A single populated criterion
// on an indexed field uses the matching index; anything else falls back to a
// full scan with in-memory filtering.
type CharacterCriteria struct {
	Name          string
	Race          string
	Class         string
	Level         *int
	Status        character.Status
	PartyID       string
	CreatedAfter  *time.Time
	ModifiedAfter *time.Time
}

// PartyCriteria filters party queries.
type PartyCriteria struct {
	Name   string
	InTown *bool
	IsLost *bool
	Camped *bool
}

// CampCriteria filters checkpoint queries.
type CampCriteria struct {
	PartyID   string
	DungeonID string
	Since     *time.Time
}

// CharacterStore persists durable character records.
type CharacterStore interface {
	PutCharacter(ctx context.Context, record character.Character) error
	GetCharacter(ctx context.Context, id string) (character.Character, error)
	ListCharacters(ctx context.Context) ([]character.Character, error)
	QueryCharacters(ctx context.Context, criteria CharacterCriteria) ([]character.Character, error)
	DeleteCharacter(ctx context.Context, id string) (bool, error)
	ActivePartyMembers(ctx context.Context, partyID string) ([]character.Character, error)
	PhasedOutPartyMembers(ctx context.Context, partyID string) ([]character.Character, error)
}

// PartyStore persists party records. Only member IDs are stored; bodies are
// resolved through the character store.
type PartyStore interface {
	PutParty(ctx context.Context, record party.Party) error
	GetParty(ctx context.Context, id string) (party.Party, error)
	ListParties(ctx context.Context) ([]party.Party, error)
	QueryParties(ctx context.Context, criteria PartyCriteria) ([]party.Party, error)
	DeleteParty(ctx context.Context, id string) (bool, error)
	CampingParties(ctx context.Context) ([]party.Party, error)
	LostParties(ctx context.Context) ([]party.Party, error)
}

// DungeonStore persists shared dungeon instances.
type DungeonStore interface {
	PutDungeon(ctx context.Context, instance dungeon.Instance) error
	GetDungeon(ctx context.Context, id string) (dungeon.Instance, error)
	DeleteDungeon(ctx context.Context, id string) (bool, error)
}

// PositionStore persists per-party exploration state within a dungeon.
type PositionStore interface {
	PutPosition(ctx context.Context, position dungeon.Position) error
	GetPosition(ctx context.Context, partyID string) (dungeon.Position, error)
	DeletePosition(ctx context.Context, partyID string) (bool, error)
	PartiesInDungeon(ctx context.Context, dungeonID string) ([]string, error)
}

// CampStore persists checkpoint records.
type CampStore interface {
	PutCamp(ctx context.Context, record camp.Record) error
	GetCamp(ctx context.Context, campID string) (camp.Record, error)
	// ListCamps returns checkpoints sorted by camp time descending.
	ListCamps(ctx context.Context) ([]camp.Record, error)
	QueryCamps(ctx context.Context, criteria CampCriteria) ([]camp.Record, error)
	DeleteCamp(ctx context.Context, campID string) (bool, error)
	// DeleteCampsBefore removes checkpoints older than cutoff and reports
	// how many were deleted.
	DeleteCampsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CatalogStore persists the read-mostly entity catalog. Seed methods replace
// a kind's rows wholesale; definitions are never mutated outside a re-seed.
type CatalogStore interface {
	CatalogVersion(ctx context.Context) (string, error)
	SetCatalogVersion(ctx context.Context, version string) error

	SeedWeapons(ctx context.Context, rows []entity.Weapon) error
	SeedArmor(ctx context.Context, rows []entity.Armor) error
	SeedShields(ctx context.Context, rows []entity.Shield) error
	SeedAccessories(ctx context.Context, rows []entity.Accessory) error
	SeedSpells(ctx context.Context, rows []entity.Spell) error
	SeedConditions(ctx context.Context, rows []entity.Condition) error
	SeedEffects(ctx context.Context, rows []entity.Effect) error
	SeedMonsters(ctx context.Context, rows []entity.Monster) error

	GetWeapon(ctx context.Context, id string) (entity.Weapon, error)
	GetArmor(ctx context.Context, id string) (entity.Armor, error)
	GetShield(ctx context.Context, id string) (entity.Shield, error)
	GetAccessory(ctx context.Context, id string) (entity.Accessory, error)
	GetSpell(ctx context.Context, id string) (entity.Spell, error)
	GetCondition(ctx context.Context, id string) (entity.Condition, error)
	GetEffect(ctx context.Context, id string) (entity.Effect, error)
	GetMonster(ctx context.Context, id string) (entity.Monster, error)

	ListWeapons(ctx context.Context) ([]entity.Weapon, error)
	ListSpells(ctx context.Context) ([]entity.Spell, error)
	ListMonsters(ctx context.Context) ([]entity.Monster, error)

	CountEntities(ctx context.Context, kind entity.Kind) (int64, error)
}

// AuditEvent records an operational event for later inspection.
type AuditEvent struct {
	Timestamp   time.Time
	EventName   string
	Severity    string
	PartyID     string
	CharacterID string
	CampID      string
	Attributes  map[string]string
}

// AuditStore persists operational audit events.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, evt AuditEvent) error
	ListAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error)
}

// GameStatistics aggregates record counts across the data set.
type GameStatistics struct {
	CharacterCount int64
	PartyCount     int64
	DungeonCount   int64
	CampCount      int64
	EntityCount    int64
}

// StatsStore reports aggregate statistics. Listing helpers of this kind are
// best-effort; callers may treat failures as empty results.
type StatsStore interface {
	GetGameStatistics(ctx context.Context) (GameStatistics, error)
}
