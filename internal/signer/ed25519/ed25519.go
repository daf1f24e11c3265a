package ed25519

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"

	"github.com/oshokin/fwmeta/internal/jcat"
	"github.com/oshokin/fwmeta/internal/signer"
)

// Name is the signer name used in logs.
const Name = "sign-ed25519"

const (
	rootKeyFilename = "root.key"
	keyDirMode      = 0o700
	keyFileMode     = 0o600
)

var (
	errEmptyIdentifier = errors.New("identifier cannot be empty")
	errSeedLength      = errors.New("unexpected seed length")
)

// Signer creates ED25519 blobs.
type Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	now     func() time.Time
}

// New loads the seed of identifier from the key store in dir.
func New(dir, identifier string) (*Signer, error) {
	seed, err := ReadSeed(dir, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", signer.ErrConfiguration, err)
	}

	return NewFromSeed(seed)
}

// NewFromSeed creates a signer from a 32-byte seed.
func NewFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: %w: got %d bytes", signer.ErrConfiguration, errSeedLength, len(seed))
	}

	private := ed25519.NewKeyFromSeed(seed)

	public, ok := private.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: derive public key", signer.ErrConfiguration)
	}

	return &Signer{
		private: private,
		public:  public,
		now:     time.Now,
	}, nil
}

// KeyPath returns the seed file of identifier inside dir.
func KeyPath(dir, identifier string) string {
	return filepath.Join(dir, identifier, rootKeyFilename)
}

// ReadSeed reads and decodes the hex seed of identifier.
func ReadSeed(dir, identifier string) ([]byte, error) {
	if identifier == "" {
		return nil, errEmptyIdentifier
	}

	contents, err := os.ReadFile(filepath.Clean(KeyPath(dir, identifier)))
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	return ParseSeedHex(string(contents))
}

// WriteSeed stores seed for identifier, refusing to overwrite an existing key.
func WriteSeed(dir, identifier string, seed []byte) error {
	if identifier == "" {
		return errEmptyIdentifier
	}

	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("%w: got %d bytes", errSeedLength, len(seed))
	}

	path := KeyPath(dir, identifier)
	if err := os.MkdirAll(filepath.Dir(path), keyDirMode); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyFileMode)
	if err != nil {
		return fmt.Errorf("create seed file: %w", err)
	}

	if _, err = file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		_ = file.Close()

		return fmt.Errorf("write seed: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close seed file: %w", err)
	}

	return nil
}

// ParseSeedHex decodes a hex seed, optionally prefixed with 0x.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")

	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", errSeedLength, ed25519.SeedSize, len(seed))
	}

	return seed, nil
}

// Name implements signer.Signer.
func (s *Signer) Name() string {
	return Name
}

// PublicKey returns the verification key.
func (s *Signer) PublicKey() []byte {
	return append([]byte(nil), s.public...)
}

// Sign implements signer.Signer.
func (s *Signer) Sign(_ context.Context, data []byte) ([]*jcat.Blob, error) {
	sig := ed25519.Sign(s.private, data)

	return []*jcat.Blob{jcat.NewBlobBinary(jcat.BlobKindED25519, sig, s.now())}, nil
}

// Verify implements signer.Verifier.
func (s *Signer) Verify(_ context.Context, data []byte, blob *jcat.Blob) (bool, error) {
	if blob == nil || blob.Kind != jcat.BlobKindED25519 {
		return false, fmt.Errorf("%w: not an ed25519 blob", signer.ErrSigning)
	}

	if !ed25519.Verify(s.public, data, blob.Data) {
		return false, fmt.Errorf("%w: ed25519 signature mismatch", signer.ErrSigning)
	}

	return true, nil
}
