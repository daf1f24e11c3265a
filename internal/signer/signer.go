package signer

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/fwmeta/internal/jcat"
	"github.com/oshokin/fwmeta/internal/logger"
)

var (
	// ErrConfiguration is returned when a signer cannot run at all, e.g. its key is missing.
	ErrConfiguration = errors.New("signer configuration error")
	// ErrSigning is returned when a signature was produced or checked but is not trusted.
	ErrSigning = errors.New("signature not trusted")
)

// Signer produces proof blobs over raw bytes.
type Signer interface {
	// Name identifies the signer in logs.
	Name() string
	// Sign returns detached proofs over exactly data.
	Sign(ctx context.Context, data []byte) ([]*jcat.Blob, error)
}

// Verifier checks a blob produced by the matching Signer.
// An untrusted signature is reported as (false, ErrSigning), never (false, nil).
type Verifier interface {
	Verify(ctx context.Context, data []byte, blob *jcat.Blob) (bool, error)
}

// Set is an ordered collection of signers.
type Set struct {
	signers []Signer
}

// NewSet creates a set with the given signers in registration order.
func NewSet(signers ...Signer) *Set {
	set := new(Set)
	for _, s := range signers {
		set.Register(s)
	}

	return set
}

// Register appends a signer. Nil signers are ignored.
func (s *Set) Register(signer Signer) {
	if signer == nil {
		return
	}

	s.signers = append(s.signers, signer)
}

// Len returns the number of registered signers.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}

	return len(s.signers)
}

// Names lists the registered signers.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}

	names := make([]string, 0, len(s.signers))
	for _, signer := range s.signers {
		names = append(names, signer.Name())
	}

	return names
}

// SignAll runs every signer over data and concatenates the blobs in
// registration order. It stops at the first ErrConfiguration; other
// signer failures are logged and skipped.
func (s *Set) SignAll(ctx context.Context, data []byte) ([]*jcat.Blob, error) {
	if s == nil {
		return nil, nil
	}

	var result []*jcat.Blob

	for _, signer := range s.signers {
		blobs, err := signer.Sign(ctx, data)
		if err != nil {
			if errors.Is(err, ErrConfiguration) {
				return nil, fmt.Errorf("signer %s: %w", signer.Name(), err)
			}

			logger.ErrorKV(ctx, "Signer failed, skipping its blobs",
				"signer", signer.Name(),
				"error", err,
			)

			continue
		}

		for _, blob := range blobs {
			if blob != nil {
				result = append(result, blob)
			}
		}
	}

	return result, nil
}
