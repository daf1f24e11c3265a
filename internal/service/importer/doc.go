// Package importer loads remotes, vendors and signed firmware records from a
// YAML seed file into the record store.
//
// Stored firmware marks its remote dirty, so the next build picks it up.
// DFU payloads can be checked before they are stored.
package importer
