package dungeon

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Position is one party's mutable exploration state inside a dungeon
// instance. A position record exists exactly while the party is inside the
// dungeon, whether actively exploring or camped.
type Position struct {
	PartyID   string `json:"partyId"`
	DungeonID string `json:"dungeonId"`
	Floor     int    `json:"currentFloor"`
	At        Coord  `json:"at"`
	Facing    Facing `json:"facing"`

	// Discovery sets are per-party: two parties sharing one instance each
	// keep their own view of what they have found.
	DiscoveredSecrets map[string]struct{} `json:"-"`
	DisarmedTraps     map[string]struct{} `json:"-"`
	UsedSpecials      map[string]struct{} `json:"-"`

	LastModified time.Time `json:"lastModified"`
}

// NewPosition seeds a fresh position at a dungeon's entrance with empty
// discovery sets.
func NewPosition(partyID, dungeonID string, entrance Coord) (Position, error) {
	if strings.TrimSpace(partyID) == "" || strings.TrimSpace(dungeonID) == "" {
		return Position{}, fmt.Errorf("party id and dungeon id are required")
	}
	return Position{
		PartyID:           partyID,
		DungeonID:         dungeonID,
		Floor:             1,
		At:                entrance,
		Facing:            FacingNorth,
		DiscoveredSecrets: make(map[string]struct{}),
		DisarmedTraps:     make(map[string]struct{}),
		UsedSpecials:      make(map[string]struct{}),
	}, nil
}

// Discover records a found secret.
func (p *Position) Discover(secretID string) {
	if p.DiscoveredSecrets == nil {
		p.DiscoveredSecrets = make(map[string]struct{})
	}
	p.DiscoveredSecrets[secretID] = struct{}{}
}

// Disarm records a disarmed trap.
func (p *Position) Disarm(trapID string) {
	if p.DisarmedTraps == nil {
		p.DisarmedTraps = make(map[string]struct{})
	}
	p.DisarmedTraps[trapID] = struct{}{}
}

// UseSpecial records a consumed special square.
func (p *Position) UseSpecial(specialID string) {
	if p.UsedSpecials == nil {
		p.UsedSpecials = make(map[string]struct{})
	}
	p.UsedSpecials[specialID] = struct{}{}
}

// SetToSorted converts a discovery set to a deterministic array for storage.
func SetToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// SetFromList reconstructs a discovery set from its stored array form.
func SetFromList(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		out[value] = struct{}{}
	}
	return out
}
