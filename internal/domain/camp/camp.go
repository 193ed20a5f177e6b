// Package camp defines checkpoint records: point-in-time snapshots that
// suspend a dungeon run so it can be resumed exactly where it left off.
package camp

import (
	"strings"
	"time"

	"github.com/hollowspire/delve/internal/domain/character"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
)

// Location pins a camp inside a dungeon instance.
type Location struct {
	DungeonID string `json:"dungeonId"`
	Floor     int    `json:"currentFloor"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Facing    string `json:"facing,omitempty"`
}

// Resources snapshots consumables at camp time.
type Resources struct {
	Gold       int `json:"gold"`
	Food       int `json:"food"`
	Torches    int `json:"torches"`
	LightLevel int `json:"lightLevel"`
}

// Progress snapshots the run counters at camp time.
type Progress struct {
	FloorsExplored     int `json:"floorsExplored"`
	EncountersDefeated int `json:"encountersDefeated"`
	TreasuresFound     int `json:"treasuresFound"`
	SecretsDiscovered  int `json:"secretsDiscovered"`
}

// Record is one checkpoint. The preferred shape references members by ID;
// the legacy shape embedded full member bodies and is retained only for
// backward read-compatibility.
type Record struct {
	CampID    string `json:"campId"`
	PartyID   string `json:"partyId"`
	PartyName string `json:"partyName"`

	MemberIDs []string `json:"memberIds,omitempty"`
	// Members carries embedded bodies in legacy checkpoints only.
	Members []character.Character `json:"members,omitempty"`

	// Denormalized for list views without a fan-out load.
	MemberCount int `json:"memberCount"`
	AliveCount  int `json:"aliveCount"`

	Location  Location  `json:"location"`
	CampTime  time.Time `json:"campTime"`
	Resources Resources `json:"resources"`
	Progress  Progress  `json:"dungeonProgress"`
}

// IsLegacy reports whether the record is in the embedded-members shape.
func (r Record) IsLegacy() bool {
	return len(r.Members) > 0 && len(r.MemberIDs) == 0
}

// ToReferenceShape converts a legacy record to the entity-reference shape,
// returning the converted record and the extracted member bodies. Reference
// records pass through unchanged with no bodies.
func (r Record) ToReferenceShape() (Record, []character.Character) {
	if !r.IsLegacy() {
		return r, nil
	}
	out := r
	out.MemberIDs = make([]string, 0, len(r.Members))
	members := make([]character.Character, 0, len(r.Members))
	for _, m := range r.Members {
		out.MemberIDs = append(out.MemberIDs, m.ID)
		members = append(members, m.Clone())
	}
	out.Members = nil
	return out, members
}

// Validate enforces the required checkpoint fields. A record missing any of
// them must never reach storage.
func (r Record) Validate() error {
	missing := func(field string) error {
		return platformerrors.WithMetadata(
			platformerrors.CodeCampInvalidFormat,
			"camp record is missing required field "+field,
			map[string]string{"field": field},
		)
	}

	if strings.TrimSpace(r.CampID) == "" {
		return missing("campId")
	}
	if strings.TrimSpace(r.PartyID) == "" {
		return missing("partyId")
	}
	if strings.TrimSpace(r.PartyName) == "" {
		return missing("partyName")
	}
	if len(r.MemberIDs) == 0 && len(r.Members) == 0 {
		return missing("members")
	}
	if strings.TrimSpace(r.Location.DungeonID) == "" {
		return missing("location.dungeonId")
	}
	if r.Location.Floor < 1 {
		return platformerrors.New(
			platformerrors.CodeCampInvalidFormat,
			"camp location floor must be positive",
		)
	}
	if r.CampTime.IsZero() {
		return missing("campTime")
	}
	return nil
}
