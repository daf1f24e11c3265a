// Package appstream merges firmware component descriptors into AppStream
// documents.
//
// GenerateComponents builds the gzip-compressed catalog published for a
// remote: one <component> per AppStream id, carrying the newest releases.
// GenerateMetainfo builds the single-component machine-readable variant.
// Output is deterministic: the same descriptors give the same bytes
// regardless of input order.
package appstream
