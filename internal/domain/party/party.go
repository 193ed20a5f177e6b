// Package party defines party records and the party-location state machine.
//
// A party references its characters by ID only; character bodies are never
// embedded. Loading a full roster is a fan-out load against the character
// store.
package party

import (
	"fmt"
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/character"
	"github.com/hollowspire/delve/internal/domain/entity"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/platform/id"
)

// Location is the derived party-location state.
type Location string

const (
	LocationInTown          Location = "IN_TOWN"
	LocationInDungeonActive Location = "IN_DUNGEON_ACTIVE"
	LocationCamped          Location = "CAMPED"
	LocationLost            Location = "LOST"
)

// Party is the durable record for one adventuring party.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// MemberIDs reference character records; bodies are never embedded.
	MemberIDs []string `json:"memberIds"`

	// MemberCount and AliveCount are denormalized for fast listing. They are
	// stamped from the caller's member snapshot at save time.
	MemberCount int `json:"memberCount"`
	AliveCount  int `json:"aliveCount"`

	Gold            int                   `json:"gold"`
	SharedInventory []entity.ItemInstance `json:"sharedInventory,omitempty"`

	InTown bool   `json:"inTown"`
	CampID string `json:"campId,omitempty"`

	IsLost            bool       `json:"isLost,omitempty"`
	LostDate          *time.Time `json:"lostDate,omitempty"`
	LostReason        string     `json:"lostReason,omitempty"`
	LastKnownLocation string     `json:"lastKnownLocation,omitempty"`

	DateCreated  time.Time `json:"dateCreated"`
	LastModified time.Time `json:"lastModified"`
}

// Create builds a fresh in-town party with a generated ID.
func Create(name string, now func() time.Time, idGenerator func() (string, error)) (Party, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if strings.TrimSpace(name) == "" {
		return Party{}, platformerrors.New(platformerrors.CodePartyEmptyName, "party name is required")
	}

	generated, err := idGenerator()
	if err != nil {
		return Party{}, fmt.Errorf("generate party id: %w", err)
	}

	created := now().UTC()
	return Party{
		ID:           generated,
		Name:         name,
		MemberIDs:    []string{},
		InTown:       true,
		DateCreated:  created,
		LastModified: created,
	}, nil
}

// Validate enforces the record-level invariants.
func (p Party) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return platformerrors.New(platformerrors.CodePartyEmptyID, "party id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return platformerrors.New(platformerrors.CodePartyEmptyName, "party name is required")
	}
	// InTown and a camp reference are mutually exclusive for a non-lost party.
	if !p.IsLost && p.InTown && p.CampID != "" {
		return platformerrors.WithMetadata(
			platformerrors.CodePartyLocationConflict,
			"party cannot be in town and camped at once",
			map[string]string{"party_id": p.ID, "camp_id": p.CampID},
		)
	}
	return nil
}

// Location derives the state-machine state from the record flags.
func (p Party) Location() Location {
	switch {
	case p.IsLost:
		return LocationLost
	case p.CampID != "":
		return LocationCamped
	case p.InTown:
		return LocationInTown
	default:
		return LocationInDungeonActive
	}
}

// Clone deep-copies the record so persisted snapshots never alias live slices.
func (p Party) Clone() Party {
	out := p
	if p.MemberIDs != nil {
		out.MemberIDs = make([]string, len(p.MemberIDs))
		copy(out.MemberIDs, p.MemberIDs)
	}
	out.SharedInventory = entity.CloneInstances(p.SharedInventory)
	if p.LostDate != nil {
		when := *p.LostDate
		out.LostDate = &when
	}
	return out
}

// StampCounts recomputes the denormalized member counters from the caller's
// member snapshot and returns the updated record.
func (p Party) StampCounts(members []character.Character) Party {
	out := p.Clone()
	out.MemberCount = len(members)
	alive := 0
	for _, m := range members {
		if m.Status.Alive() {
			alive++
		}
	}
	out.AliveCount = alive
	return out
}

// EnterDungeon transitions IN_TOWN -> IN_DUNGEON_ACTIVE.
func (p Party) EnterDungeon() (Party, error) {
	if p.IsLost {
		return Party{}, platformerrors.New(platformerrors.CodePartyAlreadyLost, "lost party cannot enter a dungeon")
	}
	if !p.InTown {
		return Party{}, platformerrors.New(platformerrors.CodePartyLocationConflict, "party is already in a dungeon")
	}
	out := p.Clone()
	out.InTown = false
	out.CampID = ""
	return out, nil
}

// MakeCamp transitions IN_DUNGEON_ACTIVE -> CAMPED.
func (p Party) MakeCamp(campID string) (Party, error) {
	if p.IsLost {
		return Party{}, platformerrors.New(platformerrors.CodePartyAlreadyLost, "lost party cannot camp")
	}
	if p.InTown {
		return Party{}, platformerrors.New(platformerrors.CodePartyNotInDungeon, "party must be in a dungeon to camp")
	}
	if p.CampID != "" {
		return Party{}, platformerrors.New(platformerrors.CodePartyLocationConflict, "party is already camped")
	}
	if strings.TrimSpace(campID) == "" {
		return Party{}, platformerrors.New(platformerrors.CodeCampEmptyID, "camp id is required")
	}
	out := p.Clone()
	out.CampID = campID
	out.InTown = false
	return out, nil
}

// BreakCamp transitions CAMPED -> IN_DUNGEON_ACTIVE.
func (p Party) BreakCamp() (Party, error) {
	if p.CampID == "" {
		return Party{}, platformerrors.New(platformerrors.CodePartyNotCamped, "party has no camp to break")
	}
	out := p.Clone()
	out.CampID = ""
	out.InTown = false
	return out, nil
}

// ReturnToTown transitions IN_DUNGEON_ACTIVE -> IN_TOWN.
func (p Party) ReturnToTown() (Party, error) {
	if p.IsLost {
		return Party{}, platformerrors.New(platformerrors.CodePartyAlreadyLost, "lost party cannot return to town")
	}
	if p.CampID != "" {
		return Party{}, platformerrors.New(platformerrors.CodePartyLocationConflict, "camped party must break camp before leaving")
	}
	if p.InTown {
		return Party{}, platformerrors.New(platformerrors.CodePartyLocationConflict, "party is already in town")
	}
	out := p.Clone()
	out.InTown = true
	return out, nil
}

// MarkLost is the terminal transition. Position and camp records belonging to
// the party become orphans unless callers clean them up explicitly.
func (p Party) MarkLost(reason, lastKnownLocation string, at time.Time) (Party, error) {
	if p.IsLost {
		return Party{}, platformerrors.New(platformerrors.CodePartyAlreadyLost, "party is already lost")
	}
	out := p.Clone()
	out.IsLost = true
	out.InTown = false
	out.CampID = ""
	out.LostReason = reason
	out.LastKnownLocation = lastKnownLocation
	when := at.UTC()
	out.LostDate = &when
	return out, nil
}
