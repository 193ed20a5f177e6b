package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path to be rejected")
	}
	if _, err := Open("   "); err == nil {
		t.Fatal("expected blank path to be rejected")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sqlite")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := first.PutCharacter(context.Background(), testCharacter("char-1", "Vex")); err != nil {
		t.Fatalf("put character: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Reopening must replay no migrations and keep existing data intact.
	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() {
		if err := second.Close(); err != nil {
			t.Fatalf("close reopened store: %v", err)
		}
	}()

	got, err := second.GetCharacter(context.Background(), "char-1")
	if err != nil {
		t.Fatalf("get character after reopen: %v", err)
	}
	if got.Name != "Vex" {
		t.Fatalf("expected data to survive reopen, got %+v", got)
	}
}

func TestCloseIsNilSafe(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("nil store close: %v", err)
	}
	if err := (&Store{}).Close(); err != nil {
		t.Fatalf("empty store close: %v", err)
	}
}
