// Package sqlite implements the Delve storage interfaces on a single SQLite
// database file.
//
// Records are stored as JSON payloads alongside real columns for every field
// a query criterion can target, so lookups stay indexed without a rigid
// relational mapping of the domain structs. Dungeon floor layouts are the one
// exception: they compress so well that they are kept as zstd blobs.
package sqlite
