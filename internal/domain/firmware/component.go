package firmware

import (
	"fmt"
	"slices"
)

// Requirement kinds.
const (
	RequirementID       = "id"
	RequirementFirmware = "firmware"
	RequirementHardware = "hardware"
)

// Requirement restricts where a component may be installed.
type Requirement struct {
	Kind    string `yaml:"kind,omitempty"`
	Value   string `yaml:"value,omitempty"`
	Compare string `yaml:"compare,omitempty"`
	Version string `yaml:"version,omitempty"`
	Depth   string `yaml:"depth,omitempty"`
}

// String is the uniqueness key of the requirement.
func (r Requirement) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", r.Kind, r.Value, r.Compare, r.Version, r.Depth)
}

// Category groups components for display.
type Category struct {
	Value string `yaml:"value,omitempty"`
	// Name is the display name, Value is used when empty.
	Name     string    `yaml:"name,omitempty"`
	Fallback *Category `yaml:"fallback,omitempty"`
}

// VersionFormat describes how a numeric version is rendered.
type VersionFormat struct {
	Value string `yaml:"value,omitempty"`
	// Fallbacks are emitted for clients too old to know Value.
	Fallbacks []string `yaml:"fallbacks,omitempty"`
	// FwupdVersion is the first fwupd release that understands Value.
	FwupdVersion string `yaml:"fwupd_version,omitempty"`
}

// Checksum is a device-reported digest.
type Checksum struct {
	Kind  string `yaml:"kind,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Issue references a security advisory.
type Issue struct {
	Kind  string `yaml:"kind,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Keyword is a search keyword with a priority.
type Keyword struct {
	Value    string `yaml:"value,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

// Component is one descriptor: a product at one version inside a firmware archive.
type Component struct {
	ID int64 `cbor:"-" yaml:"-"`
	// Firmware is the owning archive.
	Firmware *Firmware `cbor:"-" yaml:"-"`

	AppstreamID       string `yaml:"appstream_id,omitempty"`
	Name              string `yaml:"name,omitempty"`
	NameVariantSuffix string `yaml:"name_variant_suffix,omitempty"`
	Summary           string `yaml:"summary,omitempty"`
	Description       string `yaml:"description,omitempty"`
	Branch            string `yaml:"branch,omitempty"`
	Priority          int    `yaml:"priority,omitempty"`
	URLHomepage       string `yaml:"url_homepage,omitempty"`
	Icon              string `yaml:"icon,omitempty"`
	MetadataLicense   string `yaml:"metadata_license,omitempty"`
	ProjectLicense    string `yaml:"project_license,omitempty"`
	DeveloperName     string `yaml:"developer_name,omitempty"`

	ScreenshotURL     string `yaml:"screenshot_url,omitempty"`
	ScreenshotURLSafe string `yaml:"screenshot_url_safe,omitempty"`
	ScreenshotCaption string `yaml:"screenshot_caption,omitempty"`

	Category *Category `yaml:"category,omitempty"`

	InhibitDownload  bool           `yaml:"inhibit_download,omitempty"`
	ReleaseMessage   string         `yaml:"release_message,omitempty"`
	ReleaseImage     string         `yaml:"release_image,omitempty"`
	ReleaseImageSafe string         `yaml:"release_image_safe,omitempty"`
	VersionFormat    *VersionFormat `yaml:"version_format,omitempty"`
	Protocol         string         `yaml:"protocol,omitempty"`

	Version              string `yaml:"version,omitempty"`
	ReleaseTimestamp     int64  `yaml:"release_timestamp,omitempty"`
	ReleaseUrgency       string `yaml:"release_urgency,omitempty"`
	ReleaseTag           string `yaml:"release_tag,omitempty"`
	ReleaseDescription   string `yaml:"release_description,omitempty"`
	DetailsURL           string `yaml:"details_url,omitempty"`
	SourceURL            string `yaml:"source_url,omitempty"`
	ReleaseInstalledSize int64  `yaml:"release_installed_size,omitempty"`
	ReleaseDownloadSize  int64  `yaml:"release_download_size,omitempty"`

	ChecksumContentsSHA1   string `yaml:"checksum_contents_sha1,omitempty"`
	ChecksumContentsSHA256 string `yaml:"checksum_contents_sha256,omitempty"`
	FilenameContents       string `yaml:"filename_contents,omitempty"`

	GUIDs           []string      `yaml:"guids,omitempty"`
	DeviceChecksums []Checksum    `yaml:"device_checksums,omitempty"`
	Issues          []Issue       `yaml:"issues,omitempty"`
	Requirements    []Requirement `yaml:"requirements,omitempty"`
	Keywords        []Keyword     `yaml:"keywords,omitempty"`
}

// NameWithCategory returns the name decorated with the variant suffix and category.
func (c *Component) NameWithCategory() string {
	name := c.Name
	if c.NameVariantSuffix != "" {
		name += " (" + c.NameVariantSuffix + ")"
	}

	if c.Category != nil {
		if c.Category.Name != "" {
			name += " " + c.Category.Name
		} else {
			name += " " + c.Category.Value
		}
	}

	return name
}

// FindRequirement returns the first requirement of the given kind and value.
func (c *Component) FindRequirement(kind, value string) (Requirement, bool) {
	idx := slices.IndexFunc(c.Requirements, func(rq Requirement) bool {
		return rq.Kind == kind && rq.Value == value
	})
	if idx < 0 {
		return Requirement{}, false
	}

	return c.Requirements[idx], true
}

// FirmwareID returns the id of the owning archive, zero when detached.
func (c *Component) FirmwareID() int64 {
	if c.Firmware == nil {
		return 0
	}

	return c.Firmware.ID
}
