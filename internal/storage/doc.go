// Package storage defines the persistence interfaces for the Delve data layer.
//
// It provides a high-level abstraction over the schema-versioned object
// stores: characters, parties, dungeon instances, party positions, camps,
// the entity catalog, and operational audit events. The SQLite
// implementation lives in the sqlite subpackage; the flat key-value
// companion store (settings, save slot, active-party pointer, legacy camp
// blobs) lives in flatkv.
//
// # Error Types
//
// The package defines common error types used across storage implementations:
//   - ErrNotFound: Indicates a requested record is missing. Loads never
//     treat a missing record as an engine failure.
package storage
