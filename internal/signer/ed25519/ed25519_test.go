package ed25519

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fwmeta/internal/jcat"
	"github.com/oshokin/fwmeta/internal/signer"
)

func testSeed(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

// TestSignVerify checks signatures round-trip through the key store.
func TestSignVerify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, WriteSeed(dir, "metadata", testSeed(7)))
	require.Error(t, WriteSeed(dir, "metadata", testSeed(8)))

	s, err := New(dir, "metadata")
	require.NoError(t, err)
	require.Len(t, s.PublicKey(), 32)

	data := []byte("<components/>")

	blobs, err := s.Sign(ctx, data)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	require.Equal(t, jcat.BlobKindED25519, blobs[0].Kind)
	require.False(t, blobs[0].IsUTF8())
	require.Len(t, blobs[0].Data, 64)

	ok, err := s.Verify(ctx, data, blobs[0])
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Verify(ctx, []byte("tampered"), blobs[0])
	require.ErrorIs(t, err, signer.ErrSigning)
	require.False(t, ok)
}

// TestDeterministicSignature ensures the same seed signs identically.
func TestDeterministicSignature(t *testing.T) {
	t.Parallel()

	a, err := NewFromSeed(testSeed(1))
	require.NoError(t, err)

	b, err := NewFromSeed(testSeed(1))
	require.NoError(t, err)

	sa, err := a.Sign(context.Background(), []byte("x"))
	require.NoError(t, err)

	sb, err := b.Sign(context.Background(), []byte("x"))
	require.NoError(t, err)

	require.Equal(t, sa[0].Data, sb[0].Data)
}

// TestMissingKey ensures absent or malformed seeds are configuration errors.
func TestMissingKey(t *testing.T) {
	t.Parallel()

	_, err := New(t.TempDir(), "absent")
	require.ErrorIs(t, err, signer.ErrConfiguration)

	_, err = New(t.TempDir(), "")
	require.ErrorIs(t, err, signer.ErrConfiguration)

	_, err = NewFromSeed([]byte{1, 2, 3})
	require.ErrorIs(t, err, signer.ErrConfiguration)

	_, err = ParseSeedHex("0xzz")
	require.Error(t, err)
}
