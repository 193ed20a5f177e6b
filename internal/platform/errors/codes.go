// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Catalog errors
	CodeCatalogDescriptorInvalid Code = "CATALOG_DESCRIPTOR_INVALID"
	CodeCatalogSeedFailed        Code = "CATALOG_SEED_FAILED"

	// Character errors
	CodeCharacterEmptyID     Code = "CHARACTER_EMPTY_ID"
	CodeCharacterEmptyName   Code = "CHARACTER_EMPTY_NAME"
	CodeCharacterBadStatus   Code = "CHARACTER_INVALID_STATUS"
	CodeCharacterNotFound    Code = "CHARACTER_NOT_FOUND"
	CodeCharacterOrphanParty Code = "CHARACTER_ORPHAN_PARTY"

	// Party errors
	CodePartyEmptyID          Code = "PARTY_EMPTY_ID"
	CodePartyEmptyName        Code = "PARTY_EMPTY_NAME"
	CodePartyNotFound         Code = "PARTY_NOT_FOUND"
	CodePartyLocationConflict Code = "PARTY_LOCATION_CONFLICT"
	CodePartyAlreadyLost      Code = "PARTY_ALREADY_LOST"
	CodePartyNotInDungeon     Code = "PARTY_NOT_IN_DUNGEON"
	CodePartyNotCamped        Code = "PARTY_NOT_CAMPED"

	// Dungeon errors
	CodeDungeonEmptyID    Code = "DUNGEON_EMPTY_ID"
	CodeDungeonNotFound   Code = "DUNGEON_NOT_FOUND"
	CodeDungeonNoFloors   Code = "DUNGEON_NO_FLOORS"
	CodePositionNotFound  Code = "POSITION_NOT_FOUND"
	CodePositionEmptyKeys Code = "POSITION_EMPTY_KEYS"

	// Camp errors
	CodeCampEmptyID       Code = "CAMP_EMPTY_ID"
	CodeCampNotFound      Code = "CAMP_NOT_FOUND"
	CodeCampInvalidFormat Code = "CAMP_INVALID_FORMAT"
	CodeCampMemberMissing Code = "CAMP_MEMBER_MISSING"

	// Save slot / settings errors
	CodeSaveInvalidFormat  Code = "SAVE_INVALID_FORMAT"
	CodeSaveVersionSkew    Code = "SAVE_VERSION_SKEW"
	CodeSettingsBadPayload Code = "SETTINGS_BAD_PAYLOAD"

	// Storage errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeStoreUnavailable   Code = "STORE_UNAVAILABLE"
	CodeStoreEngineFailure Code = "STORE_ENGINE_FAILURE"
)

// Class groups codes by caller-facing handling strategy.
type Class int

const (
	// ClassInternal is the default for unclassified failures.
	ClassInternal Class = iota
	// ClassInvalidArgument marks validation failures and bad input.
	ClassInvalidArgument
	// ClassFailedPrecondition marks operations the current state disallows.
	ClassFailedPrecondition
	// ClassNotFound marks missing records.
	ClassNotFound
	// ClassUnavailable marks an unusable storage engine.
	ClassUnavailable
)

// Classify maps domain codes to handling classes.
func (c Code) Classify() Class {
	switch c {
	case CodeCatalogDescriptorInvalid,
		CodeCharacterEmptyID,
		CodeCharacterEmptyName,
		CodeCharacterBadStatus,
		CodePartyEmptyID,
		CodePartyEmptyName,
		CodeDungeonEmptyID,
		CodeDungeonNoFloors,
		CodePositionEmptyKeys,
		CodeCampEmptyID,
		CodeCampInvalidFormat,
		CodeSaveInvalidFormat,
		CodeSettingsBadPayload:
		return ClassInvalidArgument

	case CodePartyLocationConflict,
		CodePartyAlreadyLost,
		CodePartyNotInDungeon,
		CodePartyNotCamped,
		CodeSaveVersionSkew:
		return ClassFailedPrecondition

	case CodeNotFound,
		CodeCharacterNotFound,
		CodePartyNotFound,
		CodeDungeonNotFound,
		CodePositionNotFound,
		CodeCampNotFound,
		CodeCampMemberMissing:
		return ClassNotFound

	case CodeStoreUnavailable:
		return ClassUnavailable

	default:
		return ClassInternal
	}
}
