package firmware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRemoteFilename checks dated filenames and the remotes that never publish.
func TestRemoteFilename(t *testing.T) {
	t.Parallel()

	r := &Remote{Name: RemoteStable, AccessToken: "abc", BuildCounter: 42}
	require.Equal(t, "firmware-00042-abc.xml.gz", r.Filename())

	r.FilenamePrefix = "metadata"
	require.Equal(t, "metadata-00042-abc.xml.gz", r.Filename())

	require.Empty(t, (&Remote{Name: RemotePrivate, AccessToken: "abc"}).Filename())
	require.Empty(t, (&Remote{Name: RemoteStable}).Filename())
}

// TestRemoteIncludes covers the inclusion rules for exact, testing and embargo remotes.
func TestRemoteIncludes(t *testing.T) {
	t.Parallel()

	stable := &Remote{ID: 1, Name: RemoteStable, IsPublic: true}
	testingRemote := &Remote{ID: 2, Name: RemoteTesting, IsPublic: true}
	embargo := &Remote{ID: 3, Name: "embargo-acme"}

	fwStable := &Firmware{RemoteID: 1, RemoteName: RemoteStable}
	fwTesting := &Firmware{RemoteID: 2, RemoteName: RemoteTesting}
	fwVendor := &Firmware{RemoteID: 1, RemoteName: RemoteStable, VendorODM: &Vendor{EmbargoRemoteID: 3}}

	require.True(t, stable.Includes(fwStable))
	require.False(t, stable.Includes(fwTesting))
	require.True(t, testingRemote.Includes(fwStable))
	require.True(t, testingRemote.Includes(fwTesting))
	require.True(t, embargo.Includes(fwVendor))
	require.False(t, embargo.Includes(fwStable))
	require.False(t, stable.Includes(nil))
}

// TestClaimStaleness checks expiry and dead-owner detection.
func TestClaimStaleness(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	claim := NewClaim(Owner{Hostname: "builder-1", PID: 4242, Token: "t"}, now, time.Minute)

	alive := func(int) bool { return true }
	dead := func(int) bool { return false }

	require.False(t, claim.IsStale(now, "builder-1", alive))
	require.True(t, claim.IsStale(now.Add(time.Minute), "builder-1", alive))
	require.True(t, claim.IsStale(now, "builder-1", dead))
	require.False(t, claim.IsStale(now, "builder-2", dead))

	owner, err := ParseOwner(claim.Owner)
	require.NoError(t, err)
	require.Equal(t, 4242, owner.PID)

	_, err = ParseOwner("nonsense")
	require.Error(t, err)
}

// TestRemoteClone verifies the claim is deep-copied.
func TestRemoteClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*Remote)(nil).Clone())

	r := &Remote{Name: RemoteStable, Claim: &Claim{Owner: "a/1/b"}}
	c := r.Clone()

	require.Equal(t, r, c)
	require.NotSame(t, r.Claim, c.Claim)
}

// TestCompareVersions checks the fwupd ordering rules.
func TestCompareVersions(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, CompareVersions("1.2.3", "1.2.3"))
	require.Equal(t, 1, CompareVersions("1.2.10", "1.2.9"))
	require.Equal(t, -1, CompareVersions("1.2", "1.2.1"))
	require.Equal(t, 1, CompareVersions("1.2.b", "1.2.a"))
	require.Equal(t, 1, CompareVersions("100", "99"))
	require.Equal(t, 0, CompareVersions("1.02", "1.2"))
	require.Equal(t, 1, CompareVersions("10", "1a"))
	require.Equal(t, 1, CompareVersions("9", "1a"))
	require.Equal(t, 1, CompareVersions("1.2.1", "1.2a"))
	require.Equal(t, 1, CompareVersions("123456789012345678901234", "99"))
}

// TestSortNewestFirstMixedSections checks that numeric and lettered sections
// sort the same way whatever the input order.
func TestSortNewestFirstMixedSections(t *testing.T) {
	t.Parallel()

	fw := &Firmware{ID: 1}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	versions := []string{"9", "10", "1a"}

	for _, order := range orders {
		mds := make([]*Component, 0, len(order))
		for _, i := range order {
			mds = append(mds, &Component{ID: int64(i), Version: versions[i], Firmware: fw})
		}

		SortNewestFirst(mds)

		sorted := make([]string, 0, len(mds))
		for _, md := range mds {
			sorted = append(sorted, md.Version)
		}

		require.Equal(t, []string{"10", "9", "1a"}, sorted, "input order %v", order)
	}
}

// TestSortNewestFirst verifies the total order including tie-breaks.
func TestSortNewestFirst(t *testing.T) {
	t.Parallel()

	fwA := &Firmware{ID: 1}
	fwB := &Firmware{ID: 2}

	mds := []*Component{
		{ID: 10, Version: "1.0.0", Firmware: fwA},
		{ID: 11, Version: "1.10.0", Firmware: fwA},
		{ID: 13, Version: "1.2.0", Firmware: fwB},
		{ID: 12, Version: "1.2.0", Firmware: fwA},
	}

	SortNewestFirst(mds)

	ids := make([]int64, 0, len(mds))
	for _, md := range mds {
		ids = append(ids, md.ID)
	}

	require.Equal(t, []int64{11, 12, 13, 10}, ids)
}

// TestNameWithCategory checks suffix and category decoration.
func TestNameWithCategory(t *testing.T) {
	t.Parallel()

	md := &Component{Name: "ColorHug2"}
	require.Equal(t, "ColorHug2", md.NameWithCategory())

	md.NameVariantSuffix = "Black"
	md.Category = &Category{Value: "X-Device"}
	require.Equal(t, "ColorHug2 (Black) X-Device", md.NameWithCategory())

	md.Category.Name = "Device Firmware"
	require.Equal(t, "ColorHug2 (Black) Device Firmware", md.NameWithCategory())
}

// TestVersionFormatSupport checks the fwupd requirement detection and hex rendering.
func TestVersionFormatSupport(t *testing.T) {
	t.Parallel()

	md := &Component{
		Version:       "65563",
		VersionFormat: &VersionFormat{Value: "quad", FwupdVersion: "1.2.0"},
	}
	require.False(t, md.SupportsVersionFormat())
	require.True(t, md.UsesHexVersion())

	md.Requirements = []Requirement{{Kind: RequirementID, Value: "org.freedesktop.fwupd", Compare: "ge", Version: "1.3.1"}}
	require.True(t, md.SupportsVersionFormat())

	md.Requirements[0].Version = "1.1.9"
	require.False(t, md.SupportsVersionFormat())

	md.VersionFormat.Value = VersionPlain
	require.False(t, md.UsesHexVersion())

	md.VersionFormat.Value = "quad"
	md.Version = "1.2.3"
	require.False(t, md.UsesHexVersion())
}
