package party

import (
	"testing"
	"time"

	"github.com/hollowspire/delve/internal/domain/character"
)

func fixedNow() time.Time {
	return time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
}

func fixedID() (string, error) {
	return "party-fixed", nil
}

func townParty(t *testing.T) Party {
	t.Helper()
	p, err := Create("Grave Robbers", fixedNow, fixedID)
	if err != nil {
		t.Fatalf("create party: %v", err)
	}
	return p
}

func TestCreateParty(t *testing.T) {
	p := townParty(t)

	if p.ID != "party-fixed" {
		t.Fatalf("expected generated id, got %q", p.ID)
	}
	if !p.InTown || p.CampID != "" || p.IsLost {
		t.Fatal("expected fresh party to start in town")
	}
	if p.Location() != LocationInTown {
		t.Fatalf("expected IN_TOWN, got %q", p.Location())
	}

	if _, err := Create("  ", fixedNow, fixedID); err == nil {
		t.Fatal("expected blank name to be rejected")
	}
}

func TestValidateRejectsTownAndCamp(t *testing.T) {
	p := townParty(t)
	p.CampID = "camp-1"

	if err := p.Validate(); err == nil {
		t.Fatal("expected in-town party with camp id to be invalid")
	}

	// A lost party may carry stale flags; the tombstone wins.
	p.IsLost = true
	if err := p.Validate(); err != nil {
		t.Fatalf("expected lost party to skip location check: %v", err)
	}
}

func TestStampCounts(t *testing.T) {
	p := townParty(t)
	members := []character.Character{
		{ID: "c1", Status: character.StatusAlive},
		{ID: "c2", Status: character.StatusUnconscious},
		{ID: "c3", Status: character.StatusDead},
	}

	stamped := p.StampCounts(members)
	if stamped.MemberCount != 3 {
		t.Fatalf("expected member count 3, got %d", stamped.MemberCount)
	}
	if stamped.AliveCount != 2 {
		t.Fatalf("expected alive count 2, got %d", stamped.AliveCount)
	}
}

func TestLocationStateMachine(t *testing.T) {
	p := townParty(t)

	inDungeon, err := p.EnterDungeon()
	if err != nil {
		t.Fatalf("enter dungeon: %v", err)
	}
	if inDungeon.Location() != LocationInDungeonActive {
		t.Fatalf("expected IN_DUNGEON_ACTIVE, got %q", inDungeon.Location())
	}

	camped, err := inDungeon.MakeCamp("camp-1")
	if err != nil {
		t.Fatalf("make camp: %v", err)
	}
	if camped.Location() != LocationCamped {
		t.Fatalf("expected CAMPED, got %q", camped.Location())
	}
	if camped.InTown {
		t.Fatal("camped party must not be in town")
	}

	resumed, err := camped.BreakCamp()
	if err != nil {
		t.Fatalf("break camp: %v", err)
	}
	if resumed.Location() != LocationInDungeonActive || resumed.CampID != "" {
		t.Fatal("expected camp reference cleared on resume")
	}

	home, err := resumed.ReturnToTown()
	if err != nil {
		t.Fatalf("return to town: %v", err)
	}
	if home.Location() != LocationInTown {
		t.Fatalf("expected IN_TOWN, got %q", home.Location())
	}
}

func TestStateMachineRejectsBadTransitions(t *testing.T) {
	p := townParty(t)

	if _, err := p.MakeCamp("camp-1"); err == nil {
		t.Fatal("expected camping in town to be rejected")
	}
	if _, err := p.BreakCamp(); err == nil {
		t.Fatal("expected breaking a missing camp to be rejected")
	}
	if _, err := p.ReturnToTown(); err == nil {
		t.Fatal("expected returning while already in town to be rejected")
	}

	inDungeon, err := p.EnterDungeon()
	if err != nil {
		t.Fatalf("enter dungeon: %v", err)
	}
	if _, err := inDungeon.EnterDungeon(); err == nil {
		t.Fatal("expected double entry to be rejected")
	}

	camped, err := inDungeon.MakeCamp("camp-1")
	if err != nil {
		t.Fatalf("make camp: %v", err)
	}
	if _, err := camped.MakeCamp("camp-2"); err == nil {
		t.Fatal("expected double camp to be rejected")
	}
	if _, err := camped.ReturnToTown(); err == nil {
		t.Fatal("expected camped party to break camp before leaving")
	}
}

func TestMarkLostIsTerminal(t *testing.T) {
	p := townParty(t)
	inDungeon, err := p.EnterDungeon()
	if err != nil {
		t.Fatalf("enter dungeon: %v", err)
	}
	camped, err := inDungeon.MakeCamp("camp-1")
	if err != nil {
		t.Fatalf("make camp: %v", err)
	}

	when := fixedNow().Add(time.Hour)
	lost, err := camped.MarkLost("party wipe", "floor 4 (12,3)", when)
	if err != nil {
		t.Fatalf("mark lost: %v", err)
	}
	if lost.Location() != LocationLost {
		t.Fatalf("expected LOST, got %q", lost.Location())
	}
	if lost.CampID != "" || lost.InTown {
		t.Fatal("expected lost transition to clear location flags")
	}
	if lost.LostDate == nil || !lost.LostDate.Equal(when) {
		t.Fatal("expected lost date stamped")
	}
	if lost.LostReason != "party wipe" || lost.LastKnownLocation != "floor 4 (12,3)" {
		t.Fatal("expected memorial fields recorded")
	}

	if _, err := lost.MarkLost("again", "", when); err == nil {
		t.Fatal("expected lost to be terminal")
	}
	if _, err := lost.EnterDungeon(); err == nil {
		t.Fatal("expected lost party to be barred from dungeons")
	}
}

func TestCloneDoesNotAliasMembers(t *testing.T) {
	p := townParty(t)
	p.MemberIDs = []string{"c1", "c2"}

	cloned := p.Clone()
	cloned.MemberIDs[0] = "swapped"

	if p.MemberIDs[0] != "c1" {
		t.Fatal("expected member ids not to alias")
	}
}
