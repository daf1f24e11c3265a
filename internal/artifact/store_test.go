package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWriteReplaces ensures writes create and then atomically replace files.
func TestWriteReplaces(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "downloads"))
	require.NoError(t, store.Ensure())

	path, err := store.Write("firmware.xml.gz", []byte("first"))
	require.NoError(t, err)
	require.Equal(t, store.Path("firmware.xml.gz"), path)

	_, err = store.Write("firmware.xml.gz", []byte("second"))
	require.NoError(t, err)

	data, err := store.Read("firmware.xml.gz")
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	// No temporary or backup files are left behind.
	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestGlobRemove checks listing and deletion.
func TestGlobRemove(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())

	for _, name := range []string{"firmware-00002-tok.xml.gz", "firmware-00001-tok.xml.gz", "firmware.xml.gz"} {
		_, err := store.Write(name, []byte(name))
		require.NoError(t, err)
	}

	names, err := store.Glob("firmware-*-tok.*")
	require.NoError(t, err)
	require.Equal(t, []string{"firmware-00001-tok.xml.gz", "firmware-00002-tok.xml.gz"}, names)

	require.NoError(t, store.Remove("firmware-00001-tok.xml.gz"))
	require.NoError(t, store.Remove("firmware-00001-tok.xml.gz"))

	names, err = store.Glob("firmware-*-tok.*")
	require.NoError(t, err)
	require.Equal(t, []string{"firmware-00002-tok.xml.gz"}, names)
}

// TestEnsureWithoutDirectory ensures an unset directory is reported.
func TestEnsureWithoutDirectory(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, New("").Ensure(), ErrNoDirectory)
}
