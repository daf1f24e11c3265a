package metadata

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func openTestRepository(t *testing.T, alive func(pid int) bool) *SQLiteRepository {
	t.Helper()

	repo, err := Open(Options{
		Path:         filepath.Join(t.TempDir(), "fwmeta.db"),
		PoolSize:     2,
		Hostname:     "builder-1",
		ProcessAlive: alive,
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, repo.Close()) })

	return repo
}

type seeded struct {
	stable  *firmware.Remote
	testing *firmware.Remote
	vendor  int64
}

func seedRepository(ctx context.Context, t *testing.T, repo *SQLiteRepository) seeded {
	t.Helper()

	stable := &firmware.Remote{
		Name:           firmware.RemoteStable,
		IsPublic:       true,
		IsSigned:       true,
		AccessToken:    "abc",
		FilenameNewest: "firmware.xml.gz",
	}
	testingRemote := &firmware.Remote{
		Name:           firmware.RemoteTesting,
		IsPublic:       true,
		IsSigned:       true,
		AccessToken:    "def",
		FilenameNewest: "firmware-testing.xml.gz",
	}

	var err error

	stable.ID, err = repo.UpsertRemote(ctx, stable)
	require.NoError(t, err)

	testingRemote.ID, err = repo.UpsertRemote(ctx, testingRemote)
	require.NoError(t, err)

	_, err = repo.UpsertRemote(ctx, &firmware.Remote{Name: firmware.RemotePrivate})
	require.NoError(t, err)

	vendorID, err := repo.UpsertVendor(ctx, &firmware.Vendor{
		GroupID:      "acme",
		Restrictions: []string{"USB:0x1234", "USB:0x5678"},
	})
	require.NoError(t, err)

	return seeded{stable: stable, testing: testingRemote, vendor: vendorID}
}

func signedFirmware(remoteID, vendorID int64, filename string) *firmware.Firmware {
	signedAt := testNow.Add(-time.Hour)

	return &firmware.Firmware{
		RemoteID: remoteID,
		VendorID: vendorID,
		Filename: filename,
		SignedAt: &signedAt,
		Components: []*firmware.Component{{
			AppstreamID: "com.acme.Dock.firmware",
			Name:        "Dock",
			Version:     "1.2.3",
			GUIDs:       []string{"2082b5e0-7a64-478a-b1b2-e3404fab6dad"},
			Requirements: []firmware.Requirement{
				{Kind: firmware.RequirementID, Value: "org.freedesktop.fwupd", Compare: "ge", Version: "1.5.0"},
			},
		}},
	}
}

// TestUpsertRemoteKeepsState ensures reconfiguring a remote leaves counters and dirty flags alone.
func TestUpsertRemoteKeepsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, nil)
	seed := seedRepository(ctx, t, repo)

	_, err := repo.SaveFirmware(ctx, signedFirmware(seed.stable.ID, seed.vendor, "a.cab"))
	require.NoError(t, err)

	update := seed.stable.Clone()
	update.FilenamePrefix = "lvfs"

	id, err := repo.UpsertRemote(ctx, update)
	require.NoError(t, err)
	require.Equal(t, seed.stable.ID, id)

	stored, err := repo.GetRemote(ctx, firmware.RemoteStable)
	require.NoError(t, err)
	require.True(t, stored.IsDirty)
	require.Equal(t, "lvfs", stored.FilenamePrefix)

	remotes, err := repo.ListRemotes(ctx)
	require.NoError(t, err)
	require.Len(t, remotes, 3)
	require.Equal(t, firmware.RemotePrivate, remotes[0].Name)

	_, err = repo.GetRemote(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestListFirmwareFilters checks unsigned and private archives are left out and descriptors survive storage.
func TestListFirmwareFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, nil)
	seed := seedRepository(ctx, t, repo)

	private, err := repo.GetRemote(ctx, firmware.RemotePrivate)
	require.NoError(t, err)

	_, err = repo.SaveFirmware(ctx, signedFirmware(seed.stable.ID, seed.vendor, "a.cab"))
	require.NoError(t, err)

	_, err = repo.SaveFirmware(ctx, signedFirmware(private.ID, seed.vendor, "hidden.cab"))
	require.NoError(t, err)

	unsigned := signedFirmware(seed.testing.ID, seed.vendor, "unsigned.cab")
	unsigned.SignedAt = nil
	_, err = repo.SaveFirmware(ctx, unsigned)
	require.NoError(t, err)

	fws, err := repo.ListFirmware(ctx)
	require.NoError(t, err)
	require.Len(t, fws, 1)

	fw := fws[0]
	require.Equal(t, "a.cab", fw.Filename)
	require.Equal(t, firmware.RemoteStable, fw.RemoteName)
	require.NotNil(t, fw.VendorODM)
	require.Equal(t, []string{"USB:0x1234", "USB:0x5678"}, fw.VendorODM.Restrictions)
	require.Len(t, fw.Components, 1)

	md := fw.Components[0]
	require.NotZero(t, md.ID)
	require.Same(t, fw, md.Firmware)
	require.Equal(t, "1.2.3", md.Version)
	require.Equal(t, []string{"2082b5e0-7a64-478a-b1b2-e3404fab6dad"}, md.GUIDs)
	require.Equal(t, "1.5.0", md.Requirements[0].Version)
}

// TestClaimGuards walks the skip reasons in guard order.
func TestClaimGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, nil)
	seed := seedRepository(ctx, t, repo)
	owner := firmware.Owner{Hostname: "builder-1", PID: 42, Token: "t1"}

	_, reason, err := repo.ClaimRemote(ctx, "missing", owner, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNotFound, reason)

	_, reason, err = repo.ClaimRemote(ctx, firmware.RemotePrivate, owner, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNotSigned, reason)

	_, reason, err = repo.ClaimRemote(ctx, firmware.RemoteStable, owner, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNotDirty, reason)

	_, err = repo.SaveFirmware(ctx, signedFirmware(seed.stable.ID, seed.vendor, "a.cab"))
	require.NoError(t, err)

	remote, reason, err := repo.ClaimRemote(ctx, firmware.RemoteStable, owner, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)
	require.NotNil(t, remote.Claim)
	require.Equal(t, owner.String(), remote.Claim.Owner)

	other := firmware.Owner{Hostname: "builder-2", PID: 7, Token: "t2"}

	_, reason, err = repo.ClaimRemote(ctx, firmware.RemoteStable, other, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipClaimed, reason)

	// Another owner's release does nothing.
	require.NoError(t, repo.ReleaseClaim(ctx, remote.ID, other.String()))

	_, reason, err = repo.ClaimRemote(ctx, firmware.RemoteStable, other, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipClaimed, reason)

	require.NoError(t, repo.ReleaseClaim(ctx, remote.ID, owner.String()))

	_, reason, err = repo.ClaimRemote(ctx, firmware.RemoteStable, other, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)
}

// TestClaimNoFilename ensures a dirty remote without an alias is skipped.
func TestClaimNoFilename(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, nil)
	seed := seedRepository(ctx, t, repo)

	embargo := &firmware.Remote{Name: "embargo-acme", IsSigned: true, AccessToken: "xyz"}
	id, err := repo.UpsertRemote(ctx, embargo)
	require.NoError(t, err)

	_, err = repo.SaveFirmware(ctx, signedFirmware(id, seed.vendor, "e.cab"))
	require.NoError(t, err)

	_, reason, err := repo.ClaimRemote(ctx, embargo.Name, firmware.Owner{Hostname: "h", PID: 1, Token: "t"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNoFilename, reason)
}

// TestClaimStaleTakeover covers expired leases and leases of dead local processes.
func TestClaimStaleTakeover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, func(pid int) bool { return pid != 13 })
	seed := seedRepository(ctx, t, repo)

	_, err := repo.SaveFirmware(ctx, signedFirmware(seed.stable.ID, seed.vendor, "a.cab"))
	require.NoError(t, err)

	dead := firmware.Owner{Hostname: "builder-1", PID: 13, Token: "gone"}

	_, reason, err := repo.ClaimRemote(ctx, firmware.RemoteStable, dead, time.Hour)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)

	next := firmware.Owner{Hostname: "builder-1", PID: 14, Token: "next"}

	remote, reason, err := repo.ClaimRemote(ctx, firmware.RemoteStable, next, time.Hour)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)
	require.Equal(t, next.String(), remote.Claim.Owner)

	// Zero lifetime leases expire at once.
	require.NoError(t, repo.ReleaseClaim(ctx, remote.ID, next.String()))

	_, reason, err = repo.ClaimRemote(ctx, firmware.RemoteStable, firmware.Owner{Hostname: "builder-9", PID: 1, Token: "a"}, 0)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)

	_, reason, err = repo.ClaimRemote(ctx, firmware.RemoteStable, firmware.Owner{Hostname: "builder-9", PID: 2, Token: "b"}, time.Hour)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)
}

// TestClaimSelfHeal promotes a clean remote that still holds dirty firmware.
func TestClaimSelfHeal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, nil)
	seed := seedRepository(ctx, t, repo)
	owner := firmware.Owner{Hostname: "builder-1", PID: 42, Token: "t1"}

	fw := signedFirmware(seed.stable.ID, seed.vendor, "a.cab")
	_, err := repo.SaveFirmware(ctx, fw)
	require.NoError(t, err)

	remote, reason, err := repo.ClaimRemote(ctx, firmware.RemoteStable, owner, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)

	// Completing without listing the firmware leaves it dirty while the remote is clean.
	counter, err := repo.CompleteBuild(ctx, remote.ID, owner.String(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, counter)

	stored, err := repo.GetRemote(ctx, firmware.RemoteStable)
	require.NoError(t, err)
	require.False(t, stored.IsDirty)
	require.Nil(t, stored.Claim)

	remote, reason, err = repo.ClaimRemote(ctx, firmware.RemoteStable, owner, time.Minute)
	require.NoError(t, err)
	require.Equal(t, firmware.SkipNone, reason)
	require.True(t, remote.IsDirty)

	fws, err := repo.ListFirmware(ctx)
	require.NoError(t, err)
	require.False(t, fws[0].IsDirty)
}

// TestCompleteBuild verifies counter, flags and lease after a finished build.
func TestCompleteBuild(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, nil)
	seed := seedRepository(ctx, t, repo)
	owner := firmware.Owner{Hostname: "builder-1", PID: 42, Token: "t1"}

	fwID, err := repo.SaveFirmware(ctx, signedFirmware(seed.stable.ID, seed.vendor, "a.cab"))
	require.NoError(t, err)

	remote, _, err := repo.ClaimRemote(ctx, firmware.RemoteStable, owner, time.Minute)
	require.NoError(t, err)

	_, err = repo.CompleteBuild(ctx, remote.ID, "someone/1/else", []int64{fwID})
	require.ErrorIs(t, err, ErrClaimLost)

	counter, err := repo.CompleteBuild(ctx, remote.ID, owner.String(), []int64{fwID})
	require.NoError(t, err)
	require.Equal(t, 1, counter)

	stored, err := repo.GetRemote(ctx, firmware.RemoteStable)
	require.NoError(t, err)
	require.Equal(t, 1, stored.BuildCounter)
	require.False(t, stored.IsDirty)
	require.Nil(t, stored.Claim)

	fws, err := repo.ListFirmware(ctx)
	require.NoError(t, err)
	require.False(t, fws[0].IsDirty)
}

// TestClaimExclusive races several owners for one remote.
func TestClaimExclusive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTestRepository(t, nil)
	seed := seedRepository(ctx, t, repo)

	_, err := repo.SaveFirmware(ctx, signedFirmware(seed.stable.ID, seed.vendor, "a.cab"))
	require.NoError(t, err)

	const workers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)

	for i := range workers {
		wg.Go(func() {
			owner := firmware.Owner{Hostname: "builder-1", PID: 100 + i, Token: "race"}

			_, reason, err := repo.ClaimRemote(ctx, firmware.RemoteStable, owner, time.Minute)
			if err != nil || reason != firmware.SkipNone {
				return
			}

			mu.Lock()
			claimed++
			mu.Unlock()
		})
	}

	wg.Wait()
	require.Equal(t, 1, claimed)
}
