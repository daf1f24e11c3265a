package jcat

import "slices"

// Item groups the blobs that prove one named file.
type Item struct {
	// ID is the primary identity, usually a filename.
	ID string
	// AliasIDs are alternative names resolving to the same item.
	AliasIDs []string
	// Blobs are the proofs in insertion order.
	Blobs []*Blob
}

// NewItem creates an empty item with the given id.
func NewItem(id string) *Item {
	return &Item{ID: id}
}

// AddAliasID registers an alternative id; duplicates and the primary id are ignored.
func (i *Item) AddAliasID(id string) {
	if id == "" || id == i.ID || slices.Contains(i.AliasIDs, id) {
		return
	}

	i.AliasIDs = append(i.AliasIDs, id)
}

// HasID reports whether id is the primary id or one of the aliases.
func (i *Item) HasID(id string) bool {
	return i.ID == id || slices.Contains(i.AliasIDs, id)
}

// AddBlob appends a proof to the item. Nil blobs are ignored.
func (i *Item) AddBlob(blob *Blob) {
	if blob == nil {
		return
	}

	i.Blobs = append(i.Blobs, blob)
}

// BlobsByKind returns the blobs of the given kind in insertion order.
func (i *Item) BlobsByKind(kind BlobKind) []*Blob {
	var result []*Blob

	for _, blob := range i.Blobs {
		if blob.Kind == kind {
			result = append(result, blob)
		}
	}

	return result
}
