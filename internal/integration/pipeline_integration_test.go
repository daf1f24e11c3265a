package integration

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/jcat"
	"github.com/oshokin/fwmeta/internal/service/importer"
	"github.com/oshokin/fwmeta/internal/service/regen"
	"github.com/oshokin/fwmeta/internal/signer/ed25519"
)

const seedDocument = `
remotes:
  - name: stable
    public: true
    signed: true
    access_token: abc
    filename_newest: firmware.xml.gz
  - name: testing
    public: true
    signed: true
    access_token: tst
    filename_prefix: firmware-testing
    filename_newest: firmware-testing.xml.gz
vendors:
  - group_id: acme
    restrictions: ["USB:0x1234"]
firmware:
  - filename: dock.cab
    remote: stable
    vendor: acme
    signed_at: 2026-03-01T10:00:00Z
    payload: dock.bin
    components:
      - appstream_id: com.acme.Dock.firmware
        name: Dock
        summary: Firmware for the Acme dock
        version: 1.2.3
        guids: [2082b5e0-7a64-478a-b1b2-e3404fab6dad]
`

// fixture is a workspace with a config file, a seed document and an Ed25519 key.
type fixture struct {
	dir        string
	configPath string
	seedPath   string
	settings   *config.Config
}

// newFixture writes the workspace. serverAddress may be any valid address when no server runs.
func newFixture(t *testing.T, serverAddress string) *fixture {
	t.Helper()

	dir := t.TempDir()
	keyDir := filepath.Join(dir, "keys")

	require.NoError(t, ed25519.WriteSeed(keyDir, "fwmeta", bytes.Repeat([]byte{7}, 32)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(seedDocument), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dock.bin"), []byte("dock firmware image"), 0o600))

	settings := &config.Config{
		ServerAddress:   serverAddress,
		Database:        filepath.Join(dir, "fwmeta.db"),
		DownloadDir:     filepath.Join(dir, "downloads"),
		FirmwareBaseURI: "https://fwupd.example.com/downloads/",
		Timeout:         5 * time.Second,
		Log:             config.Log{Level: "warn"},
		Signing: config.Signing{
			Ed25519: config.Ed25519{Enabled: true, KeyDir: keyDir, Identifier: "fwmeta"},
		},
	}

	configPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, config.Save(configPath, settings))

	return &fixture{
		dir:        dir,
		configPath: configPath,
		seedPath:   filepath.Join(dir, "seed.yaml"),
		settings:   settings,
	}
}

// download returns the path of a published artifact.
func (f *fixture) download(name string) string {
	return filepath.Join(f.settings.DownloadDir, name)
}

// reserveAddress returns a free loopback address.
func reserveAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// readCatalog returns the decompressed XML of a published catalog.
func readCatalog(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	xml, err := io.ReadAll(zr)
	require.NoError(t, err)

	return string(xml)
}

// requireSignedCatalog checks the Jcat sidecar of a catalog carries digests and an Ed25519 signature.
func requireSignedCatalog(t *testing.T, f *fixture, latest string) {
	t.Helper()

	data, err := os.ReadFile(f.download(latest + ".jcat"))
	require.NoError(t, err)

	file, err := jcat.Load(data)
	require.NoError(t, err)

	item, ok := file.LookupItem(latest)
	require.True(t, ok)
	require.Len(t, item.BlobsByKind(jcat.BlobKindSHA256), 1)
	require.Len(t, item.BlobsByKind(jcat.BlobKindED25519), 1)
}

// TestImportThenRegenerate runs the offline pipeline: import records, build every remote, export a catalog.
func TestImportThenRegenerate(t *testing.T) {
	// Commands reconfigure the global logger, so these tests run serially.
	f := newFixture(t, "127.0.0.1:50051")
	ctx := context.Background()

	require.NoError(t, importer.Run(ctx, &importer.Options{ConfigPath: f.configPath, SeedPath: f.seedPath}))
	require.NoError(t, regen.Run(ctx, &regen.Options{ConfigPath: f.configPath}))

	// Stable firmware is published in both remotes.
	for _, latest := range []string{"firmware.xml.gz", "firmware-testing.xml.gz"} {
		catalog := readCatalog(t, f.download(latest))
		require.Contains(t, catalog, "com.acme.Dock.firmware")
		require.Contains(t, catalog, "https://fwupd.example.com/downloads/dock.cab")

		requireSignedCatalog(t, f, latest)
	}

	require.FileExists(t, f.download("firmware-00000-abc.xml.gz"))
	require.FileExists(t, f.download("firmware-testing-00000-tst.xml.gz"))

	// Nothing is dirty anymore, so a second run publishes no new build.
	require.NoError(t, regen.Run(ctx, &regen.Options{ConfigPath: f.configPath, Remotes: []string{"stable"}}))
	require.NoFileExists(t, f.download("firmware-00001-abc.xml.gz"))

	var exported bytes.Buffer

	require.NoError(t, regen.Export(ctx, &regen.ExportOptions{ConfigPath: f.configPath, Remote: "stable"}, &exported))

	zr, err := gzip.NewReader(&exported)
	require.NoError(t, err)

	xml, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(xml), "com.acme.Dock.firmware")
}

// TestRegenerateUnknownRemoteIsSkipped builds nothing for a remote that was never imported.
func TestRegenerateUnknownRemoteIsSkipped(t *testing.T) {
	f := newFixture(t, "127.0.0.1:50051")
	ctx := context.Background()

	require.NoError(t, importer.Run(ctx, &importer.Options{ConfigPath: f.configPath, SeedPath: f.seedPath}))
	require.NoError(t, regen.Run(ctx, &regen.Options{ConfigPath: f.configPath, Remotes: []string{"nightly"}}))
	require.NoFileExists(t, f.download("firmware.xml.gz"))
}
