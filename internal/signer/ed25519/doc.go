// Package ed25519 signs metadata with raw Ed25519 signatures.
//
// Keys live in a key store directory as <dir>/<identifier>/root.key, a hex
// encoded 32-byte seed followed by a newline.
package ed25519
