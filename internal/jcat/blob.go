package jcat

import (
	"crypto/sha1" //nolint:gosec // SHA1 digests are still consumed by older clients.
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// BlobFlags modify how the payload is stored.
type BlobFlags int

// BlobFlagIsUTF8 marks a payload stored verbatim as text instead of base64.
const BlobFlagIsUTF8 BlobFlags = 1

// Blob is one proof attached to an item.
type Blob struct {
	// Kind identifies the payload type.
	Kind BlobKind
	// Flags describes the payload encoding.
	Flags BlobFlags
	// Timestamp is the creation time in Unix seconds, zero when unknown.
	Timestamp int64
	// AppstreamID optionally scopes the blob to one component.
	AppstreamID string
	// Data is the raw payload.
	Data []byte
}

// NewBlobText creates a text blob such as an armored signature.
func NewBlobText(kind BlobKind, text string, ts time.Time) *Blob {
	return &Blob{
		Kind:      kind,
		Flags:     BlobFlagIsUTF8,
		Timestamp: unixOrZero(ts),
		Data:      []byte(text),
	}
}

// NewBlobBinary creates a blob whose payload is opaque bytes.
func NewBlobBinary(kind BlobKind, data []byte, ts time.Time) *Blob {
	return &Blob{
		Kind:      kind,
		Timestamp: unixOrZero(ts),
		Data:      append([]byte(nil), data...),
	}
}

// NewBlobSHA1 creates a SHA1 digest blob over data.
func NewBlobSHA1(data []byte, ts time.Time) *Blob {
	sum := sha1.Sum(data) //nolint:gosec // See import comment.

	return NewBlobText(BlobKindSHA1, hex.EncodeToString(sum[:]), ts)
}

// NewBlobSHA256 creates a SHA256 digest blob over data.
func NewBlobSHA256(data []byte, ts time.Time) *Blob {
	sum := sha256.Sum256(data)

	return NewBlobText(BlobKindSHA256, hex.EncodeToString(sum[:]), ts)
}

// IsUTF8 reports whether the payload is stored as text.
func (b *Blob) IsUTF8() bool {
	return b.Flags&BlobFlagIsUTF8 != 0
}

// FilenameExt returns the sidecar extension hint of the blob kind.
func (b *Blob) FilenameExt() string {
	return b.Kind.FilenameExt()
}

// DataAsString returns the payload as text.
func (b *Blob) DataAsString() string {
	return string(b.Data)
}

func unixOrZero(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}

	return ts.Unix()
}
