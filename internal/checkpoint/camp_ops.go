package checkpoint

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hollowspire/delve/internal/domain/camp"
	"github.com/hollowspire/delve/internal/domain/character"
	"github.com/hollowspire/delve/internal/domain/dungeon"
	"github.com/hollowspire/delve/internal/domain/party"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/platform/id"
	"github.com/hollowspire/delve/internal/storage"
)

// SaveInput describes a camp save request. Gold is always snapshotted from
// the party record; the remaining resources and the progress counters come
// from the caller's run state.
type SaveInput struct {
	PartyID   string
	Resources camp.Resources
	Progress  camp.Progress

	// Layout is the dungeon instance to persist when it is not yet durable.
	// The layout write always completes before the checkpoint row that
	// references it.
	Layout *dungeon.Instance
}

// SaveCamp builds and persists a reference-shaped checkpoint for a party
// currently inside a dungeon.
func (s *Service) SaveCamp(ctx context.Context, input SaveInput) Result {
	ctx, span := s.tracer.Start(ctx, "checkpoint.SaveCamp")
	defer span.End()

	partyRecord, err := s.parties.GetParty(ctx, input.PartyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failure("Party not found",
				platformerrors.New(platformerrors.CodePartyNotFound, "party not found"))
		}
		return failure("Failed to load party", err)
	}

	position, err := s.positions.GetPosition(ctx, input.PartyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return failure("Party is not in a dungeon",
				platformerrors.New(platformerrors.CodePartyNotInDungeon, "party has no dungeon position"))
		}
		return failure("Failed to load party position", err)
	}

	// Static layout first, checkpoint second: the reference must point at a
	// durable dungeon before the camp row exists.
	if _, err := s.dungeons.GetDungeon(ctx, position.DungeonID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return failure("Failed to check dungeon layout", err)
		}
		if input.Layout == nil {
			return failure("Dungeon layout is not saved",
				platformerrors.New(platformerrors.CodeDungeonNotFound, "dungeon layout missing and none supplied"))
		}
		if input.Layout.ID != position.DungeonID {
			return failure("Dungeon layout is not saved",
				platformerrors.WithMetadata(platformerrors.CodeDungeonNotFound,
					"supplied layout does not match the party's dungeon",
					map[string]string{"dungeon_id": position.DungeonID, "layout_id": input.Layout.ID}))
		}
		if err := s.dungeons.PutDungeon(ctx, *input.Layout); err != nil {
			return failure("Failed to save dungeon layout", err)
		}
	}

	members, err := s.characters.ActivePartyMembers(ctx, input.PartyID)
	if err != nil {
		return failure("Failed to load party members", err)
	}
	if len(partyRecord.MemberIDs) != len(members) {
		_ = s.audit.Emit(ctx, storage.AuditEvent{
			EventName: "party.membership_inconsistent",
			Severity:  "warn",
			PartyID:   partyRecord.ID,
			Attributes: map[string]string{
				"listed":   strconv.Itoa(len(partyRecord.MemberIDs)),
				"resolved": strconv.Itoa(len(members)),
			},
		})
	}

	now := s.now().UTC()
	resources := input.Resources
	resources.Gold = partyRecord.Gold

	record := camp.Record{
		CampID:      id.NewCampID(partyRecord.ID, now),
		PartyID:     partyRecord.ID,
		PartyName:   partyRecord.Name,
		MemberIDs:   memberIDs(partyRecord, members),
		MemberCount: len(members),
		AliveCount:  aliveCount(members),
		Location: camp.Location{
			DungeonID: position.DungeonID,
			Floor:     position.Floor,
			X:         position.At.X,
			Y:         position.At.Y,
			Facing:    string(position.Facing),
		},
		CampTime:  now,
		Resources: resources,
		Progress:  input.Progress,
	}

	if err := record.Validate(); err != nil {
		return failure("Invalid camp data format", err)
	}
	if err := s.camps.PutCamp(ctx, record); err != nil {
		return failure("Failed to save camp", err)
	}

	_ = s.audit.Emit(ctx, storage.AuditEvent{
		EventName: "camp.saved",
		PartyID:   record.PartyID,
		CampID:    record.CampID,
		Attributes: map[string]string{
			"dungeon_id": record.Location.DungeonID,
			"floor":      strconv.Itoa(record.Location.Floor),
		},
	})
	return Result{Success: true, CampID: record.CampID}
}

// memberIDs prefers the party's roster; an empty roster falls back to the
// resolved member snapshot so legacy parties still checkpoint.
func memberIDs(partyRecord party.Party, members []character.Character) []string {
	if len(partyRecord.MemberIDs) > 0 {
		out := make([]string, len(partyRecord.MemberIDs))
		copy(out, partyRecord.MemberIDs)
		return out
	}
	out := make([]string, 0, len(members))
	for _, member := range members {
		out = append(out, member.ID)
	}
	return out
}

func aliveCount(members []character.Character) int {
	alive := 0
	for _, member := range members {
		if member.Status.Alive() {
			alive++
		}
	}
	return alive
}

// ResumeBundle is the reconstructed state handed back to gameplay. The party
// snapshot carries the camp-time gold; TimeCamped is computed at resume
// time, never stored.
type ResumeBundle struct {
	Party      party.Party
	Members    []character.Character
	Location   camp.Location
	Resources  camp.Resources
	Progress   camp.Progress
	TimeCamped time.Duration
}

// ResumeCamp loads and validates a checkpoint, fan-out loads its members,
// and returns the reconstructed bundle. The checkpoint itself is never
// deleted here; deletion is the caller's explicit follow-up so a resume can
// be retried if gameplay rejects it downstream.
func (s *Service) ResumeCamp(ctx context.Context, campID string) (ResumeBundle, error) {
	ctx, span := s.tracer.Start(ctx, "checkpoint.ResumeCamp")
	defer span.End()

	record, err := s.loadCamp(ctx, campID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ResumeBundle{}, campNotFound(campID)
		}
		return ResumeBundle{}, err
	}
	if err := record.Validate(); err != nil {
		return ResumeBundle{}, err
	}

	members := make([]character.Character, 0, len(record.MemberIDs))
	for _, memberID := range record.MemberIDs {
		member, err := s.characters.GetCharacter(ctx, memberID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ResumeBundle{}, platformerrors.WithMetadata(
					platformerrors.CodeCampMemberMissing,
					"camp references a missing character",
					map[string]string{"camp_id": campID, "character_id": memberID})
			}
			return ResumeBundle{}, err
		}
		members = append(members, member)
	}

	partyRecord, err := s.parties.GetParty(ctx, record.PartyID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return ResumeBundle{}, err
		}
		// Party record gone: rebuild a minimal snapshot from the checkpoint.
		partyRecord = party.Party{
			ID:        record.PartyID,
			Name:      record.PartyName,
			MemberIDs: record.MemberIDs,
		}
	}
	partyRecord = partyRecord.StampCounts(members)
	partyRecord.Gold = record.Resources.Gold

	_ = s.audit.Emit(ctx, storage.AuditEvent{
		EventName: "camp.resumed",
		PartyID:   record.PartyID,
		CampID:    campID,
	})

	return ResumeBundle{
		Party:      partyRecord,
		Members:    members,
		Location:   record.Location,
		Resources:  record.Resources,
		Progress:   record.Progress,
		TimeCamped: s.now().UTC().Sub(record.CampTime),
	}, nil
}
