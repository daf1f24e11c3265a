package firmware

import "time"

// Firmware is one uploaded firmware archive.
type Firmware struct {
	ID       int64
	RemoteID int64
	// RemoteName is the name of RemoteID, filled by the repository.
	RemoteName string
	VendorID   int64
	// VendorODM is the vendor that uploaded the archive.
	VendorODM *Vendor
	// Filename is the archive name below the firmware base URI.
	Filename string
	IsDirty  bool
	// SignedAt is nil until the archive has been signed.
	SignedAt *time.Time

	ChecksumUploadSHA1   string
	ChecksumUploadSHA256 string
	ChecksumSignedSHA1   string
	ChecksumSignedSHA256 string

	Components []*Component
}

// IsSigned reports whether the archive has been signed.
func (fw *Firmware) IsSigned() bool {
	return fw.SignedAt != nil
}

// Attach sets the back-reference of every component to fw.
func (fw *Firmware) Attach() {
	for _, md := range fw.Components {
		md.Firmware = fw
	}
}
