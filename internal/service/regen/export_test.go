package regen

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/fwmeta/internal/appstream"
	"github.com/oshokin/fwmeta/internal/domain/firmware"
	repo "github.com/oshokin/fwmeta/internal/repository/metadata"
)

func seededRepository(t *testing.T) *repo.SQLiteRepository {
	t.Helper()

	ctx := context.Background()

	repository, err := repo.Open(repo.Options{Path: filepath.Join(t.TempDir(), "fwmeta.db"), PoolSize: 2})
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, repository.Close()) })

	stableID, err := repository.UpsertRemote(ctx, &firmware.Remote{Name: firmware.RemoteStable, IsPublic: true, IsSigned: true})
	require.NoError(t, err)

	testingID, err := repository.UpsertRemote(ctx, &firmware.Remote{Name: firmware.RemoteTesting, IsPublic: true, IsSigned: true})
	require.NoError(t, err)

	vendorID, err := repository.UpsertVendor(ctx, &firmware.Vendor{GroupID: "acme", Restrictions: []string{"USB:0x1234"}})
	require.NoError(t, err)

	signedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, fw := range []*firmware.Firmware{
		{
			RemoteID: stableID, VendorID: vendorID, Filename: "dock-1.cab", SignedAt: &signedAt,
			ChecksumUploadSHA1: "1111111111111111111111111111111111111111",
			Components: []*firmware.Component{{
				AppstreamID: "com.acme.Dock.firmware", Name: "Dock", Version: "1.0.0",
				Keywords: []firmware.Keyword{{Value: "dock", Priority: 5}},
			}},
		},
		{
			RemoteID: testingID, VendorID: vendorID, Filename: "dock-2.cab", SignedAt: &signedAt,
			Components: []*firmware.Component{{AppstreamID: "com.acme.Dock.firmware", Name: "Dock", Version: "2.0.0"}},
		},
	} {
		_, err = repository.SaveFirmware(ctx, fw)
		require.NoError(t, err)
	}

	return repository
}

func gunzip(t *testing.T, data []byte) string {
	t.Helper()

	reader, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	plain, err := io.ReadAll(reader)
	require.NoError(t, err)

	return string(plain)
}

// TestExportLocalCatalog writes upload checksums and no vendor-id rule.
func TestExportLocalCatalog(t *testing.T) {
	t.Parallel()

	repository := seededRepository(t)

	data, err := exportDocument(context.Background(), repository,
		&ExportOptions{Remote: firmware.RemoteStable, Local: true},
		appstream.Options{Local: true})
	require.NoError(t, err)

	doc := gunzip(t, data)
	require.Contains(t, doc, `version="1.0.0"`)
	require.NotContains(t, doc, `version="2.0.0"`)
	require.Contains(t, doc, "1111111111111111111111111111111111111111")
	require.NotContains(t, doc, "vendor-id")
}

// TestExportTestingIncludesStable checks the testing remote carries stable firmware.
func TestExportTestingIncludesStable(t *testing.T) {
	t.Parallel()

	data, err := exportDocument(context.Background(), seededRepository(t),
		&ExportOptions{Remote: firmware.RemoteTesting}, appstream.Options{})
	require.NoError(t, err)

	doc := gunzip(t, data)
	require.Contains(t, doc, `version="1.0.0"`)
	require.Contains(t, doc, `version="2.0.0"`)
}

// TestExportMetainfo writes the plain single-component document.
func TestExportMetainfo(t *testing.T) {
	t.Parallel()

	repository := seededRepository(t)

	data, err := exportDocument(context.Background(), repository,
		&ExportOptions{Metainfo: "com.acme.Dock.firmware"}, appstream.Options{})
	require.NoError(t, err)
	require.Contains(t, string(data), "<component")
	require.Contains(t, string(data), "<keyword>dock</keyword>")

	_, err = exportDocument(context.Background(), repository,
		&ExportOptions{Metainfo: "com.acme.Missing"}, appstream.Options{})
	require.ErrorIs(t, err, errNoComponent)
}
