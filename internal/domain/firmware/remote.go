package firmware

import (
	"fmt"
	"time"
)

// Well-known remote names.
const (
	RemotePrivate = "private"
	RemoteDeleted = "deleted"
	RemoteStable  = "stable"
	RemoteTesting = "testing"
)

// DefaultFilenamePrefix is used for dated artifacts when a remote does not set one.
const DefaultFilenamePrefix = "firmware"

// Remote is a named distribution channel.
type Remote struct {
	// ID is the record id.
	ID int64
	// Name identifies the remote.
	Name string
	// IsPublic marks remotes visible to anonymous clients.
	IsPublic bool
	// IsSigned marks remotes whose metadata is built and signed.
	IsSigned bool
	// IsDirty marks remotes whose published metadata is out of date.
	IsDirty bool
	// BuildCounter counts successful builds.
	BuildCounter int
	// AccessToken is embedded in dated filenames.
	AccessToken string
	// FilenamePrefix starts dated filenames.
	FilenamePrefix string
	// FilenameNewest is the "latest" alias filename.
	FilenameNewest string
	// Claim is the build lease, nil when no build is in flight.
	Claim *Claim
}

// Filename returns the dated artifact name for the current build counter,
// or "" when the remote never publishes one.
func (r *Remote) Filename() string {
	if r.Name == RemotePrivate || r.AccessToken == "" {
		return ""
	}

	prefix := r.FilenamePrefix
	if prefix == "" {
		prefix = DefaultFilenamePrefix
	}

	return fmt.Sprintf("%s-%05d-%s.xml.gz", prefix, r.BuildCounter, r.AccessToken)
}

// Prefix returns the configured filename prefix or the default one.
func (r *Remote) Prefix() string {
	if r.FilenamePrefix == "" {
		return DefaultFilenamePrefix
	}

	return r.FilenamePrefix
}

// IsClaimed reports whether a live build lease is held at now.
func (r *Remote) IsClaimed(now time.Time) bool {
	return r.Claim != nil && !r.Claim.Expired(now)
}

// Includes reports whether fw belongs in the metadata of this remote.
// Firmware is included by its own remote, stable firmware also appears in
// testing, and a vendor embargo remote carries that vendor's firmware.
func (r *Remote) Includes(fw *Firmware) bool {
	if fw == nil {
		return false
	}

	if fw.RemoteID == r.ID {
		return true
	}

	if r.Name == RemoteTesting && fw.RemoteName == RemoteStable {
		return true
	}

	if !r.IsPublic && fw.VendorODM != nil && fw.VendorODM.EmbargoRemoteID == r.ID {
		return true
	}

	return false
}

// Clone returns a deep copy of the remote.
func (r *Remote) Clone() *Remote {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Claim = r.Claim.Clone()

	return &cloned
}
