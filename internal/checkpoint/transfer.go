package checkpoint

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hollowspire/delve/internal/domain/camp"
	platformerrors "github.com/hollowspire/delve/internal/platform/errors"
	"github.com/hollowspire/delve/internal/platform/id"
	"github.com/hollowspire/delve/internal/storage"
)

//go:embed camp_schema.json
var campSchemaJSON []byte

var campSchema = mustCompileCampSchema()

func mustCompileCampSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("camp_schema.json", bytes.NewReader(campSchemaJSON)); err != nil {
		panic(fmt.Sprintf("add camp schema resource: %v", err))
	}
	return compiler.MustCompile("camp_schema.json")
}

// ExportCamp serializes one checkpoint as indented JSON for sharing between
// installations.
func (s *Service) ExportCamp(ctx context.Context, campID string) ([]byte, error) {
	record, err := s.loadCamp(ctx, campID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, campNotFound(campID)
		}
		return nil, err
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal camp %s: %w", campID, err)
	}
	return payload, nil
}

// ImportCamp validates an externally produced checkpoint blob against the
// camp schema and persists it under a freshly minted camp ID so imports can
// never collide with existing saves. Legacy embedded-member blobs are
// converted on the way in.
func (s *Service) ImportCamp(ctx context.Context, payload []byte) Result {
	var probe any
	if err := json.Unmarshal(payload, &probe); err != nil {
		return failure("Invalid camp data format",
			platformerrors.Wrap(platformerrors.CodeCampInvalidFormat, "camp blob is not valid JSON", err))
	}
	if err := campSchema.Validate(probe); err != nil {
		return failure("Invalid camp data format",
			platformerrors.Wrap(platformerrors.CodeCampInvalidFormat, "camp blob failed schema validation", err))
	}

	var record camp.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return failure("Invalid camp data format",
			platformerrors.Wrap(platformerrors.CodeCampInvalidFormat, "camp blob does not decode", err))
	}

	record, members := record.ToReferenceShape()
	for _, member := range members {
		if err := s.characters.PutCharacter(ctx, member); err != nil {
			return failure("Failed to import camp members", err)
		}
	}

	record.CampID = id.NewCampID(record.PartyID, s.now().UTC())
	if err := record.Validate(); err != nil {
		return failure("Invalid camp data format", err)
	}
	if err := s.camps.PutCamp(ctx, record); err != nil {
		return failure("Failed to import camp", err)
	}

	_ = s.audit.Emit(ctx, storage.AuditEvent{
		EventName: "camp.imported",
		PartyID:   record.PartyID,
		CampID:    record.CampID,
	})
	return Result{Success: true, CampID: record.CampID}
}
