// Package expedition sequences the multi-store workflows of a dungeon run:
// entering and leaving the dungeon, camping and resuming, party wipes, and
// the active-party pointer. Each workflow issues its sub-operations
// sequentially; there is no cross-store transaction, so ordering is the only
// consistency tool.
package expedition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hollowspire/delve/internal/checkpoint"
	"github.com/hollowspire/delve/internal/domain/character"
	"github.com/hollowspire/delve/internal/domain/dungeon"
	"github.com/hollowspire/delve/internal/domain/party"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/platform/id"
	"github.com/hollowspire/delve/internal/storage"
)

// PointerStore holds the active-party pointer in the flat store.
type PointerStore interface {
	SetActiveParty(ctx context.Context, partyID string) error
	ActivePartyID(ctx context.Context) (string, error)
	ClearActiveParty(ctx context.Context) error
}

// Config carries the collaborators an expedition service needs.
type Config struct {
	Parties     storage.PartyStore
	Characters  storage.CharacterStore
	Dungeons    storage.DungeonStore
	Positions   storage.PositionStore
	Checkpoints *checkpoint.Service
	Pointer     PointerStore

	// Now is optional and defaults to time.Now.
	Now func() time.Time
	// IDGenerator is optional and defaults to the platform generator.
	IDGenerator func() (string, error)
}

// Service drives the party-location state machine across the stores.
type Service struct {
	parties     storage.PartyStore
	characters  storage.CharacterStore
	dungeons    storage.DungeonStore
	positions   storage.PositionStore
	checkpoints *checkpoint.Service
	pointer     PointerStore
	now         func() time.Time
	idGenerator func() (string, error)
}

// NewService builds an expedition service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Parties == nil || cfg.Characters == nil {
		return nil, fmt.Errorf("party and character stores are required")
	}
	if cfg.Dungeons == nil || cfg.Positions == nil {
		return nil, fmt.Errorf("dungeon and position stores are required")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint service is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	gen := cfg.IDGenerator
	if gen == nil {
		gen = id.NewID
	}
	return &Service{
		parties:     cfg.Parties,
		characters:  cfg.Characters,
		dungeons:    cfg.Dungeons,
		positions:   cfg.Positions,
		checkpoints: cfg.Checkpoints,
		pointer:     cfg.Pointer,
		now:         now,
		idGenerator: gen,
	}, nil
}

// EnterDungeon moves an in-town party into a dungeon: the layout is made
// durable first, then the position record is created, then the party record
// flips out of town.
func (s *Service) EnterDungeon(ctx context.Context, partyID string, layout *dungeon.Instance, entrance dungeon.Coord) error {
	partyRecord, err := s.parties.GetParty(ctx, partyID)
	if err != nil {
		return err
	}
	entered, err := partyRecord.EnterDungeon()
	if err != nil {
		return err
	}

	dungeonID := dungeon.DefaultInstanceID
	if layout != nil {
		dungeonID = layout.ID
	}
	if _, err := s.dungeons.GetDungeon(ctx, dungeonID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if layout == nil {
			return platformerrors.WithMetadata(platformerrors.CodeDungeonNotFound,
				"dungeon layout missing and none supplied",
				map[string]string{"dungeon_id": dungeonID})
		}
		if err := s.dungeons.PutDungeon(ctx, *layout); err != nil {
			return fmt.Errorf("save dungeon layout: %w", err)
		}
	}

	position, err := dungeon.NewPosition(partyID, dungeonID, entrance)
	if err != nil {
		return err
	}
	if err := s.positions.PutPosition(ctx, position); err != nil {
		return fmt.Errorf("create position: %w", err)
	}
	if err := s.parties.PutParty(ctx, entered); err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	return nil
}

// MakeCamp checkpoints the run and flips the party to the camped state. The
// camp row lands before the party record references it; a party update
// failure leaves an unreferenced camp behind rather than a dangling
// reference.
func (s *Service) MakeCamp(ctx context.Context, input checkpoint.SaveInput) checkpoint.Result {
	result := s.checkpoints.SaveCamp(ctx, input)
	if !result.Success {
		return result
	}

	partyRecord, err := s.parties.GetParty(ctx, input.PartyID)
	if err != nil {
		return checkpoint.Result{CampID: result.CampID, Err: err, Message: "Failed to reload party"}
	}
	camped, err := partyRecord.MakeCamp(result.CampID)
	if err != nil {
		return checkpoint.Result{CampID: result.CampID, Err: err, Message: "Party cannot camp"}
	}
	if err := s.parties.PutParty(ctx, camped); err != nil {
		return checkpoint.Result{CampID: result.CampID, Err: err, Message: "Failed to update party"}
	}
	return result
}

// ResumeFromCamp rebuilds the run from a checkpoint: position restored,
// party flipped back to active exploration, and the camp optionally deleted
// once everything else landed.
func (s *Service) ResumeFromCamp(ctx context.Context, campID string, deleteCamp bool) (checkpoint.ResumeBundle, error) {
	bundle, err := s.checkpoints.ResumeCamp(ctx, campID)
	if err != nil {
		return checkpoint.ResumeBundle{}, err
	}

	position, err := dungeon.NewPosition(bundle.Party.ID, bundle.Location.DungeonID,
		dungeon.Coord{X: bundle.Location.X, Y: bundle.Location.Y})
	if err != nil {
		return checkpoint.ResumeBundle{}, err
	}
	position.Floor = bundle.Location.Floor
	if bundle.Location.Facing != "" {
		position.Facing = dungeon.Facing(bundle.Location.Facing)
	}
	if existing, err := s.positions.GetPosition(ctx, bundle.Party.ID); err == nil {
		// Keep the party's discovery state from before the camp.
		position.DiscoveredSecrets = existing.DiscoveredSecrets
		position.DisarmedTraps = existing.DisarmedTraps
		position.UsedSpecials = existing.UsedSpecials
	}
	if err := s.positions.PutPosition(ctx, position); err != nil {
		return checkpoint.ResumeBundle{}, fmt.Errorf("restore position: %w", err)
	}

	partyRecord, err := s.parties.GetParty(ctx, bundle.Party.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return checkpoint.ResumeBundle{}, err
		}
		partyRecord = bundle.Party
	}
	if partyRecord.CampID != "" {
		broken, err := partyRecord.BreakCamp()
		if err != nil {
			return checkpoint.ResumeBundle{}, err
		}
		partyRecord = broken
	} else {
		partyRecord = partyRecord.Clone()
		partyRecord.InTown = false
	}
	if err := s.parties.PutParty(ctx, partyRecord); err != nil {
		return checkpoint.ResumeBundle{}, fmt.Errorf("update party: %w", err)
	}

	if deleteCamp {
		if _, err := s.checkpoints.DeleteCamp(ctx, campID); err != nil {
			log.Printf("expedition: delete camp %s after resume: %v", campID, err)
		}
	}

	bundle.Party = partyRecord
	return bundle, nil
}

// ExitDungeon returns an actively exploring party to town and removes its
// position record.
func (s *Service) ExitDungeon(ctx context.Context, partyID string) error {
	partyRecord, err := s.parties.GetParty(ctx, partyID)
	if err != nil {
		return err
	}
	returned, err := partyRecord.ReturnToTown()
	if err != nil {
		return err
	}
	if _, err := s.positions.DeletePosition(ctx, partyID); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if err := s.parties.PutParty(ctx, returned); err != nil {
		return fmt.Errorf("update party: %w", err)
	}
	return nil
}

// MarkLost records the terminal party wipe and cleans up the records that
// would otherwise orphan: the position, the party's camps, and the active
// pointer when it referenced the lost party.
func (s *Service) MarkLost(ctx context.Context, partyID, reason, lastKnownLocation string) error {
	partyRecord, err := s.parties.GetParty(ctx, partyID)
	if err != nil {
		return err
	}
	lost, err := partyRecord.MarkLost(reason, lastKnownLocation, s.now())
	if err != nil {
		return err
	}
	if err := s.parties.PutParty(ctx, lost); err != nil {
		return fmt.Errorf("update party: %w", err)
	}

	// Cleanup is best-effort: the party is already durably lost.
	if _, err := s.positions.DeletePosition(ctx, partyID); err != nil {
		log.Printf("expedition: delete position for lost party %s: %v", partyID, err)
	}
	camps, err := s.checkpoints.ListCamps(ctx)
	if err != nil {
		log.Printf("expedition: list camps for lost party %s: %v", partyID, err)
		camps = nil
	}
	for _, record := range camps {
		if record.PartyID != partyID {
			continue
		}
		if _, err := s.checkpoints.DeleteCamp(ctx, record.CampID); err != nil {
			log.Printf("expedition: delete camp %s for lost party: %v", record.CampID, err)
		}
	}
	if s.pointer != nil {
		if active, err := s.pointer.ActivePartyID(ctx); err == nil && active == partyID {
			if err := s.pointer.ClearActiveParty(ctx); err != nil {
				log.Printf("expedition: clear active pointer for lost party %s: %v", partyID, err)
			}
		}
	}
	return nil
}

// CreateNewActiveParty creates a party and points the active pointer at it.
// A failed persist leaves no pointer behind.
func (s *Service) CreateNewActiveParty(ctx context.Context, name string) (party.Party, error) {
	record, err := party.Create(name, s.now, s.idGenerator)
	if err != nil {
		return party.Party{}, err
	}
	if err := s.parties.PutParty(ctx, record); err != nil {
		return party.Party{}, fmt.Errorf("persist party: %w", err)
	}
	if s.pointer != nil {
		if err := s.pointer.SetActiveParty(ctx, record.ID); err != nil {
			return party.Party{}, fmt.Errorf("set active pointer: %w", err)
		}
	}
	return record, nil
}

// Roster loads a party's full member records: the active explorers plus any
// phased-out members sitting the run out. Counters on the returned party
// snapshot are restamped from the active members.
func (s *Service) Roster(ctx context.Context, partyID string) (party.Party, []character.Character, error) {
	partyRecord, err := s.parties.GetParty(ctx, partyID)
	if err != nil {
		return party.Party{}, nil, err
	}
	active, err := s.characters.ActivePartyMembers(ctx, partyID)
	if err != nil {
		return party.Party{}, nil, fmt.Errorf("load active members: %w", err)
	}
	benched, err := s.characters.PhasedOutPartyMembers(ctx, partyID)
	if err != nil {
		return party.Party{}, nil, fmt.Errorf("load phased-out members: %w", err)
	}
	return partyRecord.StampCounts(active), append(active, benched...), nil
}

// LoadActiveParty resolves the active pointer to a party record. A pointer
// at a missing party is self-healing: it is cleared and reported as not
// found rather than left dangling.
func (s *Service) LoadActiveParty(ctx context.Context) (party.Party, error) {
	if s.pointer == nil {
		return party.Party{}, storage.ErrNotFound
	}
	partyID, err := s.pointer.ActivePartyID(ctx)
	if err != nil {
		return party.Party{}, err
	}
	record, err := s.parties.GetParty(ctx, partyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if clearErr := s.pointer.ClearActiveParty(ctx); clearErr != nil {
				log.Printf("expedition: clear dangling active pointer %s: %v", partyID, clearErr)
			}
		}
		return party.Party{}, err
	}
	return record, nil
}
