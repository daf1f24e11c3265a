package jcat

import "fmt"

// BlobKind tags the payload type of a blob. Values are wire constants shared
// with every Jcat reader; never renumber them.
type BlobKind int

// Known blob kinds.
const (
	BlobKindUnknown BlobKind = 0
	BlobKindSHA256  BlobKind = 1
	BlobKindGPG     BlobKind = 2
	BlobKindPKCS7   BlobKind = 3
	BlobKindSHA1    BlobKind = 4
	BlobKindED25519 BlobKind = 9
	BlobKindSHA512  BlobKind = 10
)

// String returns the lowercase name of the kind.
func (k BlobKind) String() string {
	switch k {
	case BlobKindSHA256:
		return "sha256"
	case BlobKindGPG:
		return "gpg"
	case BlobKindPKCS7:
		return "pkcs7"
	case BlobKindSHA1:
		return "sha1"
	case BlobKindED25519:
		return "ed25519"
	case BlobKindSHA512:
		return "sha512"
	case BlobKindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FilenameExt returns the extension used when the blob is written as a
// sidecar next to the signed file, or "" when the kind has none.
func (k BlobKind) FilenameExt() string {
	switch k {
	case BlobKindSHA256:
		return "sha256"
	case BlobKindGPG:
		return "asc"
	case BlobKindPKCS7:
		return "p7b"
	case BlobKindSHA1:
		return "sha1"
	case BlobKindED25519:
		return "ed25519"
	case BlobKindSHA512:
		return "sha512"
	default:
		return ""
	}
}

// IsSignature reports whether the kind is a detached signature rather than a digest.
func (k BlobKind) IsSignature() bool {
	switch k {
	case BlobKindGPG, BlobKindPKCS7, BlobKindED25519:
		return true
	default:
		return false
	}
}
