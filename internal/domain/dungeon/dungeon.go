// Package dungeon defines shared dungeon instances and per-party exploration
// state. An instance holds the static floor layouts; it never encodes any
// single party's position. Per-party position and discovery state live in a
// separate Position record so many parties can explore one instance.
package dungeon

import (
	"fmt"
	"strings"
	"time"
)

// DefaultInstanceID is the shared instance every expedition enters today.
// The store itself is keyed by arbitrary dungeon IDs, so additional
// concurrent instances need no schema change.
const DefaultInstanceID = "corrupted_network"

// Tile codes used in floor grids.
const (
	TileWall = iota
	TileFloor
	TileDoor
	TileSecretDoor
	TileStairsUp
	TileStairsDown
	TileChute
	TileSpinner
)

// Coord is a floor-grid coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Facing is a cardinal direction.
type Facing string

const (
	FacingNorth Facing = "north"
	FacingEast  Facing = "east"
	FacingSouth Facing = "south"
	FacingWest  Facing = "west"
)

// Spawn places a monster on a floor.
type Spawn struct {
	ID        string `json:"id"`
	MonsterID string `json:"monsterId"`
	At        Coord  `json:"at"`
	Count     int    `json:"count"`
}

// Treasure places a lootable cache on a floor.
type Treasure struct {
	ID      string   `json:"id"`
	At      Coord    `json:"at"`
	ItemIDs []string `json:"itemIds,omitempty"`
	Gold    int      `json:"gold"`
	Trapped bool     `json:"trapped,omitempty"`
	TrapID  string   `json:"trapId,omitempty"`
}

// EncounterZone defines a random-encounter region and its monster table.
type EncounterZone struct {
	At     Coord    `json:"at"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Table  []string `json:"table"`
	Chance int      `json:"chance"`
}

// SpecialSquare marks a scripted square (teleporter, message, fountain, ...).
type SpecialSquare struct {
	ID   string `json:"id"`
	At   Coord  `json:"at"`
	Kind string `json:"kind"`
	Arg  string `json:"arg,omitempty"`
}

// Floor is one level of a dungeon instance.
type Floor struct {
	Number     int             `json:"number"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Tiles      [][]int         `json:"tiles"`
	Spawns     []Spawn         `json:"spawns,omitempty"`
	Treasures  []Treasure      `json:"treasures,omitempty"`
	Encounters []EncounterZone `json:"encounters,omitempty"`
	Specials   []SpecialSquare `json:"specials,omitempty"`
	StairsUp   *Coord          `json:"stairsUp,omitempty"`
	StairsDown *Coord          `json:"stairsDown,omitempty"`
}

// Validate checks the grid dimensions are coherent.
func (f Floor) Validate() error {
	if f.Number < 1 {
		return fmt.Errorf("floor number must be positive, got %d", f.Number)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("floor %d: dimensions must be positive", f.Number)
	}
	if len(f.Tiles) != f.Height {
		return fmt.Errorf("floor %d: expected %d tile rows, got %d", f.Number, f.Height, len(f.Tiles))
	}
	for y, row := range f.Tiles {
		if len(row) != f.Width {
			return fmt.Errorf("floor %d: row %d has %d tiles, expected %d", f.Number, y, len(row), f.Width)
		}
	}
	return nil
}

// Instance is a shared dungeon: static layouts only.
type Instance struct {
	ID           string        `json:"id"`
	OwnerPartyID string        `json:"ownerPartyId,omitempty"`
	Floors       map[int]Floor `json:"floors"`
	DateCreated  time.Time     `json:"dateCreated"`
	LastModified time.Time     `json:"lastModified"`
}

// Validate checks the instance identity and each floor grid.
func (i Instance) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("dungeon id is required")
	}
	if len(i.Floors) == 0 {
		return fmt.Errorf("dungeon %q has no floors", i.ID)
	}
	for number, floor := range i.Floors {
		if number != floor.Number {
			return fmt.Errorf("dungeon %q: floor keyed %d reports number %d", i.ID, number, floor.Number)
		}
		if err := floor.Validate(); err != nil {
			return err
		}
	}
	return nil
}
