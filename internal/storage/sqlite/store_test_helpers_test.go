package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/hollowspire/delve/internal/domain/character"
	"github.com/hollowspire/delve/internal/domain/dungeon"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open game store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close game store: %v", err)
		}
	})
	return store
}

func testCharacter(id, name string) character.Character {
	return character.Character{
		ID:     id,
		Name:   name,
		Race:   "human",
		Class:  "fighter",
		Level:  1,
		HP:     12,
		MaxHP:  12,
		Status: character.StatusAlive,
	}
}

func testFloor(number int) dungeon.Floor {
	tiles := make([][]int, 4)
	for y := range tiles {
		tiles[y] = make([]int, 4)
	}
	tiles[1][1] = dungeon.TileFloor
	tiles[1][2] = dungeon.TileFloor
	tiles[2][2] = dungeon.TileStairsDown
	return dungeon.Floor{
		Number: number,
		Width:  4,
		Height: 4,
		Tiles:  tiles,
	}
}

func testDungeon(id string) dungeon.Instance {
	return dungeon.Instance{
		ID: id,
		Floors: map[int]dungeon.Floor{
			1: testFloor(1),
			2: testFloor(2),
		},
	}
}
