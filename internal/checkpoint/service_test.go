package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hollowspire/delve/internal/domain/camp"
	"github.com/hollowspire/delve/internal/domain/character"
	"github.com/hollowspire/delve/internal/domain/dungeon"
	"github.com/hollowspire/delve/internal/domain/party"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/storage/flatkv"
	"github.com/hollowspire/delve/internal/storage/sqlite"
)

type testHarness struct {
	service *Service
	store   *sqlite.Store
	flat    *flatkv.Store
	now     *time.Time
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "game.sqlite"))
	if err != nil {
		t.Fatalf("open game store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close game store: %v", err)
		}
	})

	flat, err := flatkv.Open(filepath.Join(t.TempDir(), "flat.db"))
	if err != nil {
		t.Fatalf("open flat store: %v", err)
	}
	t.Cleanup(func() {
		if err := flat.Close(); err != nil {
			t.Fatalf("close flat store: %v", err)
		}
	})

	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	harness := &testHarness{store: store, flat: flat, now: &now}

	service, err := NewService(Config{
		Camps:      store,
		Characters: store,
		Parties:    store,
		Dungeons:   store,
		Positions:  store,
		Legacy:     flat,
		Now:        func() time.Time { return *harness.now },
	})
	if err != nil {
		t.Fatalf("new checkpoint service: %v", err)
	}
	harness.service = service
	return harness
}

func (h *testHarness) advance(d time.Duration) {
	next := h.now.Add(d)
	*h.now = next
}

// seedExpedition puts party p1 with members c1/c2 inside dungeon d1 at
// floor 3, position (5,7).
func seedExpedition(t *testing.T, h *testHarness) {
	t.Helper()
	ctx := context.Background()

	for _, member := range []character.Character{
		{ID: "c1", Name: "Vex", Race: "elf", Class: "mage", Level: 3, HP: 10, MaxHP: 10,
			Status: character.StatusAlive, PartyID: "p1"},
		{ID: "c2", Name: "Brog", Race: "dwarf", Class: "fighter", Level: 3, HP: 22, MaxHP: 22,
			Status: character.StatusAlive, PartyID: "p1"},
	} {
		if err := h.store.PutCharacter(ctx, member); err != nil {
			t.Fatalf("put character %s: %v", member.ID, err)
		}
	}

	partyRecord := party.Party{
		ID:        "p1",
		Name:      "Grave Robbers",
		MemberIDs: []string{"c1", "c2"},
		Gold:      50,
		InTown:    false,
	}
	if err := h.store.PutParty(ctx, partyRecord); err != nil {
		t.Fatalf("put party: %v", err)
	}

	tiles := make([][]int, 10)
	for y := range tiles {
		tiles[y] = make([]int, 10)
	}
	instance := dungeon.Instance{
		ID: "d1",
		Floors: map[int]dungeon.Floor{
			3: {Number: 3, Width: 10, Height: 10, Tiles: tiles},
		},
	}
	if err := h.store.PutDungeon(ctx, instance); err != nil {
		t.Fatalf("put dungeon: %v", err)
	}

	position, err := dungeon.NewPosition("p1", "d1", dungeon.Coord{X: 5, Y: 7})
	if err != nil {
		t.Fatalf("new position: %v", err)
	}
	position.Floor = 3
	if err := h.store.PutPosition(ctx, position); err != nil {
		t.Fatalf("put position: %v", err)
	}
}

func TestSaveAndResumeCamp(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	result := h.service.SaveCamp(ctx, SaveInput{
		PartyID:   "p1",
		Resources: camp.Resources{Food: 4, Torches: 2, LightLevel: 8},
		Progress:  camp.Progress{FloorsExplored: 3, EncountersDefeated: 12},
	})
	if !result.Success {
		t.Fatalf("save camp failed: %s (%v)", result.Message, result.Err)
	}
	if result.CampID == "" {
		t.Fatal("expected a camp id")
	}

	h.advance(2 * time.Hour)

	bundle, err := h.service.ResumeCamp(ctx, result.CampID)
	if err != nil {
		t.Fatalf("resume camp: %v", err)
	}
	if bundle.Party.Gold != 50 {
		t.Fatalf("expected snapshot gold 50, got %d", bundle.Party.Gold)
	}
	if bundle.Location.Floor != 3 || bundle.Location.X != 5 || bundle.Location.Y != 7 {
		t.Fatalf("expected camp location floor 3 (5,7), got %+v", bundle.Location)
	}
	if len(bundle.Members) != 2 || bundle.Members[0].ID != "c1" || bundle.Members[1].ID != "c2" {
		t.Fatalf("expected both members resolved, got %v", bundle.Members)
	}
	if bundle.Members[1].Class != "fighter" {
		t.Fatalf("expected full character records, got %+v", bundle.Members[1])
	}
	if bundle.TimeCamped != 2*time.Hour {
		t.Fatalf("expected 2h camped, got %s", bundle.TimeCamped)
	}

	// Resume never deletes; the camp must survive for a retry.
	if _, err := h.store.GetCamp(ctx, result.CampID); err != nil {
		t.Fatalf("expected camp retained after resume: %v", err)
	}
}

func TestSaveCampRequiresDungeonPosition(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	partyRecord := party.Party{ID: "p1", Name: "Grave Robbers", MemberIDs: []string{"c1"}, InTown: true}
	if err := h.store.PutParty(ctx, partyRecord); err != nil {
		t.Fatalf("put party: %v", err)
	}

	result := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1"})
	if result.Success {
		t.Fatal("expected save to fail without a position")
	}
	var typed *platformerrors.Error
	if !errors.As(result.Err, &typed) || typed.Code != platformerrors.CodePartyNotInDungeon {
		t.Fatalf("expected not-in-dungeon error, got %v", result.Err)
	}
}

func TestSaveCampUnknownParty(t *testing.T) {
	h := newTestHarness(t)

	result := h.service.SaveCamp(context.Background(), SaveInput{PartyID: "nope"})
	if result.Success {
		t.Fatal("expected save to fail for unknown party")
	}
	var typed *platformerrors.Error
	if !errors.As(result.Err, &typed) || typed.Code != platformerrors.CodePartyNotFound {
		t.Fatalf("expected party-not-found error, got %v", result.Err)
	}
}

func TestSaveCampPersistsLayoutBeforeCheckpoint(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	// Remove the layout: the save must refuse without one, then persist the
	// supplied layout before the camp row.
	if _, err := h.store.DeleteDungeon(ctx, "d1"); err != nil {
		t.Fatalf("delete dungeon: %v", err)
	}

	result := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1"})
	if result.Success {
		t.Fatal("expected save to fail with no durable layout")
	}

	tiles := make([][]int, 10)
	for y := range tiles {
		tiles[y] = make([]int, 10)
	}
	layout := dungeon.Instance{
		ID:     "d1",
		Floors: map[int]dungeon.Floor{3: {Number: 3, Width: 10, Height: 10, Tiles: tiles}},
	}
	result = h.service.SaveCamp(ctx, SaveInput{PartyID: "p1", Layout: &layout})
	if !result.Success {
		t.Fatalf("save with layout failed: %s (%v)", result.Message, result.Err)
	}
	if _, err := h.store.GetDungeon(ctx, "d1"); err != nil {
		t.Fatalf("expected layout durable after save: %v", err)
	}
}

func TestSaveCampRejectsMismatchedLayout(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	if _, err := h.store.DeleteDungeon(ctx, "d1"); err != nil {
		t.Fatalf("delete dungeon: %v", err)
	}

	// A layout for a different dungeon cannot stand in for the one the
	// position references.
	tiles := make([][]int, 10)
	for y := range tiles {
		tiles[y] = make([]int, 10)
	}
	stray := dungeon.Instance{
		ID:     "d2",
		Floors: map[int]dungeon.Floor{3: {Number: 3, Width: 10, Height: 10, Tiles: tiles}},
	}
	result := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1", Layout: &stray})
	if result.Success {
		t.Fatal("expected save to fail for a mismatched layout")
	}
	var typed *platformerrors.Error
	if !errors.As(result.Err, &typed) || typed.Code != platformerrors.CodeDungeonNotFound {
		t.Fatalf("expected dungeon-not-found error, got %v", result.Err)
	}

	// Nothing was written: no stray layout and no checkpoint row.
	if _, err := h.store.GetDungeon(ctx, "d2"); err == nil {
		t.Fatal("expected mismatched layout to stay unwritten")
	}
	camps, err := h.service.ListCamps(ctx)
	if err != nil {
		t.Fatalf("list camps: %v", err)
	}
	if len(camps) != 0 {
		t.Fatalf("expected no camps written, got %v", camps)
	}
}

func TestResumeCampMissingMember(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	result := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1"})
	if !result.Success {
		t.Fatalf("save camp: %v", result.Err)
	}
	if _, err := h.store.DeleteCharacter(ctx, "c2"); err != nil {
		t.Fatalf("delete character: %v", err)
	}

	_, err := h.service.ResumeCamp(ctx, result.CampID)
	var typed *platformerrors.Error
	if !errors.As(err, &typed) || typed.Code != platformerrors.CodeCampMemberMissing {
		t.Fatalf("expected missing-member error, got %v", err)
	}
}

func TestResumeCampNotFound(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.service.ResumeCamp(context.Background(), "no-such")
	var typed *platformerrors.Error
	if !errors.As(err, &typed) || typed.Code != platformerrors.CodeCampNotFound {
		t.Fatalf("expected camp-not-found error, got %v", err)
	}
}

func legacyCamp(campID string, at time.Time) camp.Record {
	return camp.Record{
		CampID:    campID,
		PartyID:   "p9",
		PartyName: "Old Guard",
		Members: []character.Character{
			{ID: "c9", Name: "Yorick", Race: "human", Class: "priest", Level: 2,
				HP: 8, MaxHP: 8, Status: character.StatusAlive, PartyID: "p9"},
		},
		Location: camp.Location{DungeonID: "d1", Floor: 2, X: 1, Y: 1},
		CampTime: at,
	}
}

func TestLegacyCampMigratesOnResume(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	record := legacyCamp("p9-500", h.now.Add(-time.Hour))
	if err := h.flat.PutLegacyCamp(ctx, record); err != nil {
		t.Fatalf("put legacy camp: %v", err)
	}

	bundle, err := h.service.ResumeCamp(ctx, "p9-500")
	if err != nil {
		t.Fatalf("resume legacy camp: %v", err)
	}
	if len(bundle.Members) != 1 || bundle.Members[0].ID != "c9" {
		t.Fatalf("expected embedded member resolved, got %v", bundle.Members)
	}

	// Member body extracted into the character store.
	if _, err := h.store.GetCharacter(ctx, "c9"); err != nil {
		t.Fatalf("expected migrated member persisted: %v", err)
	}
	// Record now reference-shaped in the camp store.
	migrated, err := h.store.GetCamp(ctx, "p9-500")
	if err != nil {
		t.Fatalf("expected migrated camp persisted: %v", err)
	}
	if migrated.IsLegacy() || len(migrated.MemberIDs) != 1 {
		t.Fatalf("expected reference shape, got %+v", migrated)
	}
	// Legacy key dropped.
	remaining, err := h.flat.ListLegacyCamps(ctx)
	if err != nil {
		t.Fatalf("list legacy camps: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected legacy key removed, got %v", remaining)
	}
}

func TestListCampsMergesLegacyNewestFirst(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	older := legacyCamp("p9-500", h.now.Add(-time.Hour))
	if err := h.flat.PutLegacyCamp(ctx, older); err != nil {
		t.Fatalf("put legacy camp: %v", err)
	}
	result := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1"})
	if !result.Success {
		t.Fatalf("save camp: %v", result.Err)
	}

	camps, err := h.service.ListCamps(ctx)
	if err != nil {
		t.Fatalf("list camps: %v", err)
	}
	if len(camps) != 2 {
		t.Fatalf("expected 2 camps, got %d", len(camps))
	}
	if camps[0].CampID != result.CampID || camps[1].CampID != "p9-500" {
		t.Fatalf("expected newest first, got %s then %s", camps[0].CampID, camps[1].CampID)
	}
	if camps[1].IsLegacy() {
		t.Fatal("expected legacy record converted in the listing")
	}
}

func TestCleanupOldCampsCountsBothStores(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	stale := legacyCamp("p9-500", h.now.AddDate(0, 0, -45))
	if err := h.flat.PutLegacyCamp(ctx, stale); err != nil {
		t.Fatalf("put legacy camp: %v", err)
	}

	old := camp.Record{
		CampID:    "p1-100",
		PartyID:   "p1",
		PartyName: "Grave Robbers",
		MemberIDs: []string{"c1", "c2"},
		Location:  camp.Location{DungeonID: "d1", Floor: 1},
		CampTime:  h.now.AddDate(0, 0, -60),
	}
	if err := h.store.PutCamp(ctx, old); err != nil {
		t.Fatalf("put old camp: %v", err)
	}
	fresh := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1"})
	if !fresh.Success {
		t.Fatalf("save fresh camp: %v", fresh.Err)
	}

	removed, err := h.service.CleanupOldCamps(ctx, 30)
	if err != nil {
		t.Fatalf("cleanup old camps: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 camps removed, got %d", removed)
	}

	camps, err := h.service.ListCamps(ctx)
	if err != nil {
		t.Fatalf("list camps: %v", err)
	}
	if len(camps) != 1 || camps[0].CampID != fresh.CampID {
		t.Fatalf("expected only the fresh camp, got %v", camps)
	}
}

func TestDeleteCampFromEitherStore(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	saved := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1"})
	if !saved.Success {
		t.Fatalf("save camp: %v", saved.Err)
	}
	deleted, err := h.service.DeleteCamp(ctx, saved.CampID)
	if err != nil || !deleted {
		t.Fatalf("delete camp: deleted=%v err=%v", deleted, err)
	}

	legacy := legacyCamp("p9-500", *h.now)
	if err := h.flat.PutLegacyCamp(ctx, legacy); err != nil {
		t.Fatalf("put legacy camp: %v", err)
	}
	deleted, err = h.service.DeleteCamp(ctx, "p9-500")
	if err != nil || !deleted {
		t.Fatalf("delete legacy camp: deleted=%v err=%v", deleted, err)
	}
	remaining, err := h.flat.ListLegacyCamps(ctx)
	if err != nil {
		t.Fatalf("list legacy camps: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected legacy camp gone, got %v", remaining)
	}
}

func TestExportImportCampRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	seedExpedition(t, h)

	saved := h.service.SaveCamp(ctx, SaveInput{PartyID: "p1",
		Resources: camp.Resources{Food: 4}})
	if !saved.Success {
		t.Fatalf("save camp: %v", saved.Err)
	}

	payload, err := h.service.ExportCamp(ctx, saved.CampID)
	if err != nil {
		t.Fatalf("export camp: %v", err)
	}

	h.advance(time.Minute)
	imported := h.service.ImportCamp(ctx, payload)
	if !imported.Success {
		t.Fatalf("import camp failed: %s (%v)", imported.Message, imported.Err)
	}
	if imported.CampID == saved.CampID {
		t.Fatal("expected a fresh camp id on import")
	}

	got, err := h.store.GetCamp(ctx, imported.CampID)
	if err != nil {
		t.Fatalf("get imported camp: %v", err)
	}
	if got.PartyID != "p1" || got.Location.Floor != 3 || got.Resources.Gold != 50 {
		t.Fatalf("expected imported camp to match the original, got %+v", got)
	}
}

func TestImportCampRejectsMissingLocation(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	blob := []byte(`{
		"campId": "p1-1000",
		"partyId": "p1",
		"partyName": "Grave Robbers",
		"memberIds": ["c1"],
		"campTime": "2026-05-02T08:00:00Z",
		"resources": {"gold": 10}
	}`)

	result := h.service.ImportCamp(ctx, blob)
	if result.Success {
		t.Fatal("expected import to fail without a location")
	}
	if result.Message != "Invalid camp data format" {
		t.Fatalf("expected format message, got %q", result.Message)
	}

	camps, err := h.service.ListCamps(ctx)
	if err != nil {
		t.Fatalf("list camps: %v", err)
	}
	if len(camps) != 0 {
		t.Fatalf("expected nothing written, got %v", camps)
	}
}
