package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
)

// Seed is the document read by the importer.
type Seed struct {
	Remotes  []SeedRemote   `yaml:"remotes"`
	Vendors  []SeedVendor   `yaml:"vendors"`
	Firmware []SeedFirmware `yaml:"firmware"`
}

// SeedRemote describes a remote.
type SeedRemote struct {
	Name           string `yaml:"name"`
	Public         bool   `yaml:"public"`
	Signed         bool   `yaml:"signed"`
	AccessToken    string `yaml:"access_token"`
	FilenamePrefix string `yaml:"filename_prefix"`
	FilenameNewest string `yaml:"filename_newest"`
}

// SeedVendor describes a vendor.
type SeedVendor struct {
	GroupID      string   `yaml:"group_id"`
	Unrestricted bool     `yaml:"unrestricted"`
	Restrictions []string `yaml:"restrictions"`
	// EmbargoRemote names the private remote carrying embargoed firmware.
	EmbargoRemote string `yaml:"embargo_remote"`
}

// SeedFirmware describes one uploaded archive.
type SeedFirmware struct {
	Filename string `yaml:"filename"`
	Remote   string `yaml:"remote"`
	Vendor   string `yaml:"vendor"`
	// SignedAt is left empty for archives still waiting for signing.
	SignedAt *time.Time `yaml:"signed_at"`
	// Payload is the firmware image, relative to the seed file.
	Payload string `yaml:"payload"`

	ChecksumUploadSHA1   string `yaml:"checksum_upload_sha1"`
	ChecksumUploadSHA256 string `yaml:"checksum_upload_sha256"`
	ChecksumSignedSHA1   string `yaml:"checksum_signed_sha1"`
	ChecksumSignedSHA256 string `yaml:"checksum_signed_sha256"`

	Components []*firmware.Component `yaml:"components"`
}

var (
	// errEmptyName is returned for records without an identifying name.
	errEmptyName = errors.New("name must be provided")
	// errNoComponents is returned for firmware without descriptors.
	errNoComponents = errors.New("firmware has no components")
	// errNoVersion is returned for descriptors without an id or version.
	errNoVersion = errors.New("component needs appstream_id and version")
)

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(contents, &seed); err != nil {
		return nil, fmt.Errorf("unmarshal seed: %w", err)
	}

	if err := seed.Validate(); err != nil {
		return nil, err
	}

	return &seed, nil
}

// Validate checks every record has the fields the store needs.
func (s *Seed) Validate() error {
	for i, remote := range s.Remotes {
		if remote.Name == "" {
			return fmt.Errorf("remotes[%d]: %w", i, errEmptyName)
		}
	}

	for i, vendor := range s.Vendors {
		if vendor.GroupID == "" {
			return fmt.Errorf("vendors[%d]: %w", i, errEmptyName)
		}
	}

	for i, fw := range s.Firmware {
		if fw.Filename == "" || fw.Remote == "" || fw.Vendor == "" {
			return fmt.Errorf("firmware[%d]: filename, remote and vendor: %w", i, errEmptyName)
		}

		if len(fw.Components) == 0 {
			return fmt.Errorf("firmware[%d] %s: %w", i, fw.Filename, errNoComponents)
		}

		for j, md := range fw.Components {
			if md == nil || md.AppstreamID == "" || md.Version == "" {
				return fmt.Errorf("firmware[%d] %s components[%d]: %w", i, fw.Filename, j, errNoVersion)
			}
		}
	}

	return nil
}
