package gpg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/openpgp" //nolint:staticcheck // Detached armored signatures are all fwupd needs.

	"github.com/oshokin/fwmeta/internal/jcat"
	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/signer"
)

// Name is the signer name used in logs.
const Name = "sign-gpg"

// Signer creates GPG blobs with the key selected by user id.
type Signer struct {
	keyring openpgp.EntityList
	entity  *openpgp.Entity
	now     func() time.Time
}

// New loads every key file in keyringDir and selects the private key whose
// identity contains uid.
func New(ctx context.Context, keyringDir, uid string) (*Signer, error) {
	keyring, err := LoadKeyring(ctx, keyringDir)
	if err != nil {
		return nil, err
	}

	return NewFromKeyring(keyring, uid)
}

// NewFromKeyring selects the signing key from an already loaded keyring.
func NewFromKeyring(keyring openpgp.EntityList, uid string) (*Signer, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty signing uid", signer.ErrConfiguration)
	}

	entity := findPrivateKey(keyring, uid)
	if entity == nil {
		return nil, fmt.Errorf("%w: no imported private key for %s", signer.ErrConfiguration, uid)
	}

	return &Signer{
		keyring: keyring,
		entity:  entity,
		now:     time.Now,
	}, nil
}

// LoadKeyring reads armored or binary OpenPGP keys from every regular file
// in dir. Files that hold no keys are skipped.
func LoadKeyring(ctx context.Context, dir string) (openpgp.EntityList, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read keyring %s: %w", signer.ErrConfiguration, dir, err)
	}

	var keyring openpgp.EntityList

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("%w: read key %s: %w", signer.ErrConfiguration, path, err)
		}

		keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
		if err != nil {
			keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		}

		if err != nil {
			logger.DebugKV(ctx, "Skipping file without OpenPGP keys", "path", path, "error", err)

			continue
		}

		keyring = append(keyring, keys...)
	}

	return keyring, nil
}

// Name implements signer.Signer.
func (s *Signer) Name() string {
	return Name
}

// KeyID returns the hex id of the signing key.
func (s *Signer) KeyID() string {
	return s.entity.PrimaryKey.KeyIdString()
}

// Sign implements signer.Signer. The signature is checked against the
// keyring before it is returned.
func (s *Signer) Sign(ctx context.Context, data []byte) ([]*jcat.Blob, error) {
	var armored bytes.Buffer

	if err := openpgp.ArmoredDetachSign(&armored, s.entity, bytes.NewReader(data), nil); err != nil {
		return nil, fmt.Errorf("create detached signature: %w", err)
	}

	blob := jcat.NewBlobText(jcat.BlobKindGPG, armored.String(), s.now())

	if _, err := s.Verify(ctx, data, blob); err != nil {
		return nil, err
	}

	return []*jcat.Blob{blob}, nil
}

// Verify implements signer.Verifier.
func (s *Signer) Verify(_ context.Context, data []byte, blob *jcat.Blob) (bool, error) {
	if blob == nil || blob.Kind != jcat.BlobKindGPG {
		return false, fmt.Errorf("%w: not a gpg blob", signer.ErrSigning)
	}

	_, err := openpgp.CheckArmoredDetachedSignature(s.keyring, bytes.NewReader(data), bytes.NewReader(blob.Data))
	if err != nil {
		return false, fmt.Errorf("%w: signed with an unknown private key: %w", signer.ErrSigning, err)
	}

	return true, nil
}

func findPrivateKey(keyring openpgp.EntityList, uid string) *openpgp.Entity {
	for _, entity := range keyring {
		if entity.PrivateKey == nil || entity.PrivateKey.Encrypted {
			continue
		}

		for name := range entity.Identities {
			if strings.Contains(name, uid) {
				return entity
			}
		}
	}

	return nil
}
