// Package metadata is the SQLite record store behind the metadata builder.
//
// It persists remotes with their build lease, vendors with their vendor-id
// restrictions, and firmware with component descriptors. Descriptors are
// stored as deterministic CBOR payloads next to the indexed columns.
// The read-then-write of a build claim runs in one IMMEDIATE transaction,
// so two workers can never both pass the re-entrancy guard.
package metadata
