package firmware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// errMalformedOwner is returned for owner tokens not shaped host/pid/id.
var errMalformedOwner = errors.New("malformed claim owner")

// Owner identifies the process holding a claim.
type Owner struct {
	Hostname string
	PID      int
	// Token distinguishes claims made by the same process.
	Token string
}

// String renders the owner as host/pid/token.
func (o Owner) String() string {
	return fmt.Sprintf("%s/%d/%s", o.Hostname, o.PID, o.Token)
}

// ParseOwner is the inverse of Owner.String.
func ParseOwner(s string) (Owner, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Owner{}, fmt.Errorf("%w: %q", errMalformedOwner, s)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Owner{}, fmt.Errorf("%w: %q: %w", errMalformedOwner, s, err)
	}

	return Owner{Hostname: parts[0], PID: pid, Token: parts[2]}, nil
}

// Claim is a build lease on a remote.
type Claim struct {
	Owner     string
	ClaimedAt time.Time
	ExpiresAt time.Time
}

// NewClaim creates a lease held by owner for ttl starting at now.
func NewClaim(owner Owner, now time.Time, ttl time.Duration) *Claim {
	return &Claim{
		Owner:     owner.String(),
		ClaimedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the lease ran out at now.
func (c *Claim) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsStale reports whether another worker may take over the lease.
// A lease is stale once expired, or when its owner ran on hostname and
// alive says that process is gone.
func (c *Claim) IsStale(now time.Time, hostname string, alive func(pid int) bool) bool {
	if c.Expired(now) {
		return true
	}

	owner, err := ParseOwner(c.Owner)
	if err != nil {
		return false
	}

	if alive == nil || owner.Hostname != hostname {
		return false
	}

	return !alive(owner.PID)
}

// Clone returns a copy of the claim.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}

	cloned := *c

	return &cloned
}
