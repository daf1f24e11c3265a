package signer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fwmeta/internal/jcat"
)

type stubSigner struct {
	name  string
	blobs []*jcat.Blob
	err   error
	calls int
}

func (s *stubSigner) Name() string { return s.name }

func (s *stubSigner) Sign(context.Context, []byte) ([]*jcat.Blob, error) {
	s.calls++

	return s.blobs, s.err
}

// TestSignAllAggregates verifies blobs are concatenated in registration order.
func TestSignAllAggregates(t *testing.T) {
	t.Parallel()

	first := &stubSigner{name: "a", blobs: []*jcat.Blob{jcat.NewBlobText(jcat.BlobKindGPG, "sig", time.Time{})}}
	empty := &stubSigner{name: "b"}
	last := &stubSigner{name: "c", blobs: []*jcat.Blob{jcat.NewBlobBinary(jcat.BlobKindED25519, []byte{1}, time.Time{}), nil}}

	set := NewSet(first, empty, nil, last)
	require.Equal(t, 3, set.Len())
	require.Equal(t, []string{"a", "b", "c"}, set.Names())

	blobs, err := set.SignAll(context.Background(), []byte("data"))
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	require.Equal(t, jcat.BlobKindGPG, blobs[0].Kind)
	require.Equal(t, jcat.BlobKindED25519, blobs[1].Kind)
}

// TestSignAllIsolatesFailures ensures a broken signer does not stop the others.
func TestSignAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	broken := &stubSigner{name: "broken", err: fmt.Errorf("self check: %w", ErrSigning)}
	good := &stubSigner{name: "good", blobs: []*jcat.Blob{jcat.NewBlobText(jcat.BlobKindGPG, "sig", time.Time{})}}

	blobs, err := NewSet(broken, good).SignAll(context.Background(), []byte("data"))
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	require.Equal(t, 1, good.calls)
}

// TestSignAllStopsOnConfiguration ensures configuration errors abort immediately.
func TestSignAllStopsOnConfiguration(t *testing.T) {
	t.Parallel()

	unconfigured := &stubSigner{name: "gpg", err: fmt.Errorf("no key: %w", ErrConfiguration)}
	next := &stubSigner{name: "next"}

	blobs, err := NewSet(unconfigured, next).SignAll(context.Background(), []byte("data"))
	require.ErrorIs(t, err, ErrConfiguration)
	require.Nil(t, blobs)
	require.Zero(t, next.calls)
	require.False(t, errors.Is(err, ErrSigning))
}

// TestNilSet ensures an unset signer set signs nothing.
func TestNilSet(t *testing.T) {
	t.Parallel()

	var set *Set

	blobs, err := set.SignAll(context.Background(), []byte("data"))
	require.NoError(t, err)
	require.Empty(t, blobs)
	require.Zero(t, set.Len())
}
