package firmware

// Vendor owns firmware and restricts which devices it may target.
type Vendor struct {
	ID int64
	// GroupID is the short vendor name.
	GroupID string
	// IsUnrestricted vendors may ship to any hardware.
	IsUnrestricted bool
	// Restrictions are the vendor-id values the vendor may target, "*" is ignored.
	Restrictions []string
	// EmbargoRemoteID is the private remote used for embargoed firmware, zero when absent.
	EmbargoRemoteID int64
}
