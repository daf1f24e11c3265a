package firmware

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// errStrictVersion is returned for versions that are not X.Y or X.Y.Z.
var errStrictVersion = errors.New("not a strict version")

// VersionPlain is the format that never renders as hex.
const VersionPlain = "plain"

// CompareVersions compares versions the way fwupd does. Each version is
// split into runs of digits and runs of letters, any other character only
// separating runs. Runs are compared pairwise: digit runs numerically,
// letter runs lexically, and a digit run is newer than a letter run.
// When one version runs out of runs first, the longer one is newer.
func CompareVersions(a, b string) int {
	ra := versionRuns(a)
	rb := versionRuns(b)

	for i := range min(len(ra), len(rb)) {
		if c := compareRun(ra[i], rb[i]); c != 0 {
			return c
		}
	}

	return cmp.Compare(len(ra), len(rb))
}

// versionRuns splits s into maximal digit and letter runs.
func versionRuns(s string) []string {
	var runs []string

	start := -1

	for i := 0; i <= len(s); i++ {
		if start >= 0 && (i == len(s) || runClass(s[i]) != runClass(s[start])) {
			runs = append(runs, s[start:i])
			start = -1
		}

		if i < len(s) && start < 0 && runClass(s[i]) != 0 {
			start = i
		}
	}

	return runs
}

// runClass is 2 for digits, 1 for letters and 0 for separators.
func runClass(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return 2
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return 1
	default:
		return 0
	}
}

func compareRun(x, y string) int {
	cx, cy := runClass(x[0]), runClass(y[0])
	if cx != cy {
		return cmp.Compare(cx, cy)
	}

	if cx == 1 {
		return strings.Compare(x, y)
	}

	// Digit runs of any length compare without overflow.
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")

	if c := cmp.Compare(len(x), len(y)); c != 0 {
		return c
	}

	return strings.Compare(x, y)
}

// SortNewestFirst orders components by version descending.
// Equal versions are ordered by firmware id and then component id so the order is total.
func SortNewestFirst(mds []*Component) {
	slices.SortStableFunc(mds, func(x, y *Component) int {
		if c := CompareVersions(y.Version, x.Version); c != 0 {
			return c
		}

		if c := cmp.Compare(x.FirmwareID(), y.FirmwareID()); c != 0 {
			return c
		}

		return cmp.Compare(x.ID, y.ID)
	})
}

// SupportsVersionFormat reports whether the component requires a fwupd
// release new enough to understand its version format natively.
func (c *Component) SupportsVersionFormat() bool {
	vf := c.VersionFormat
	if vf == nil || vf.FwupdVersion == "" {
		return false
	}

	rq, ok := c.FindRequirement(RequirementID, "org.freedesktop.fwupd")
	if !ok || rq.Compare != "ge" {
		return false
	}

	have, err := parseStrictVersion(rq.Version)
	if err != nil {
		return false
	}

	want, err := parseStrictVersion(vf.FwupdVersion)
	if err != nil {
		return false
	}

	return slices.Compare(have[:], want[:]) >= 0
}

// UsesHexVersion reports whether the release version should be rendered as hex.
func (c *Component) UsesHexVersion() bool {
	if c.Version == "" || strings.Trim(c.Version, "0123456789") != "" {
		return false
	}

	return c.VersionFormat != nil && c.VersionFormat.Value != VersionPlain
}

// parseStrictVersion accepts X.Y or X.Y.Z with decimal sections.
func parseStrictVersion(s string) ([3]uint64, error) {
	var result [3]uint64

	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return result, fmt.Errorf("%w: %q", errStrictVersion, s)
	}

	for i, part := range parts {
		if part == "" || strings.Trim(part, "0123456789") != "" {
			return result, fmt.Errorf("%w: %q", errStrictVersion, s)
		}

		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return result, fmt.Errorf("%w: %q: %w", errStrictVersion, s, err)
		}

		result[i] = n
	}

	return result, nil
}
