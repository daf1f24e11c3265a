package importer

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA1 digests are part of the catalog format.
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/domain/firmware"
	"github.com/oshokin/fwmeta/internal/firmwaretest/dfu"
	"github.com/oshokin/fwmeta/internal/logger"
	repo "github.com/oshokin/fwmeta/internal/repository/metadata"
	"github.com/oshokin/fwmeta/internal/service/common"
)

// Options contains inputs for the importer entry point.
type Options struct {
	// ConfigPath is the settings file naming the record store.
	ConfigPath string
	// SeedPath is the YAML document to import.
	SeedPath string
	// CheckDFU rejects DFU firmware whose payload suffix is invalid.
	CheckDFU bool
}

// Summary counts what an import stored.
type Summary struct {
	Remotes  int
	Vendors  int
	Firmware int
	Rejected int
}

var (
	// errUnknownReference is returned when a record names a missing remote or vendor.
	errUnknownReference = errors.New("unknown reference")
	// errDFURejected is returned when at least one payload failed the DFU check.
	errDFURejected = errors.New("firmware rejected by DFU check")
)

// Run imports the seed file into the configured record store.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger.Configure(settings.Log.Level, settings.Log.Format)

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fwmeta-import")

	seed, err := LoadSeed(opts.SeedPath)
	if err != nil {
		return err
	}

	repository, err := common.OpenRepository(settings)
	if err != nil {
		return err
	}

	defer func() {
		_ = repository.Close()
	}()

	imp := &importer{
		repo:     repository,
		baseDir:  filepath.Dir(opts.SeedPath),
		checkDFU: opts.CheckDFU,
	}

	summary, err := imp.Import(ctx, seed)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Import completed",
		"remotes", summary.Remotes,
		"vendors", summary.Vendors,
		"firmware", summary.Firmware,
		"rejected", summary.Rejected,
	)

	if summary.Rejected > 0 {
		return fmt.Errorf("%d archives: %w", summary.Rejected, errDFURejected)
	}

	return nil
}

// importer writes seed records to the store.
// It is unexported; callers should use Run.
type importer struct {
	repo     repo.Repository
	baseDir  string
	checkDFU bool
}

// Import stores remotes, then vendors, then firmware.
func (i *importer) Import(ctx context.Context, seed *Seed) (*Summary, error) {
	summary := new(Summary)
	remoteIDs := make(map[string]int64, len(seed.Remotes))

	for _, sr := range seed.Remotes {
		id, err := i.repo.UpsertRemote(ctx, &firmware.Remote{
			Name:           sr.Name,
			IsPublic:       sr.Public,
			IsSigned:       sr.Signed,
			AccessToken:    sr.AccessToken,
			FilenamePrefix: sr.FilenamePrefix,
			FilenameNewest: sr.FilenameNewest,
		})
		if err != nil {
			return nil, err
		}

		remoteIDs[sr.Name] = id
		summary.Remotes++
	}

	vendorIDs := make(map[string]int64, len(seed.Vendors))

	for _, sv := range seed.Vendors {
		vendor := &firmware.Vendor{
			GroupID:        sv.GroupID,
			IsUnrestricted: sv.Unrestricted,
			Restrictions:   sv.Restrictions,
		}

		if sv.EmbargoRemote != "" {
			id, err := i.remoteID(ctx, remoteIDs, sv.EmbargoRemote)
			if err != nil {
				return nil, fmt.Errorf("vendor %s: %w", sv.GroupID, err)
			}

			vendor.EmbargoRemoteID = id
		}

		id, err := i.repo.UpsertVendor(ctx, vendor)
		if err != nil {
			return nil, err
		}

		vendorIDs[sv.GroupID] = id
		summary.Vendors++
	}

	for _, sf := range seed.Firmware {
		fw, err := i.firmware(ctx, sf, remoteIDs, vendorIDs)
		if err != nil {
			return nil, err
		}

		if fw == nil {
			summary.Rejected++

			continue
		}

		if _, err := i.repo.SaveFirmware(ctx, fw); err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Stored firmware", "filename", fw.Filename, "remote", sf.Remote, "components", len(fw.Components))
		summary.Firmware++
	}

	return summary, nil
}

// remoteID resolves a remote declared in this seed or already stored.
func (i *importer) remoteID(ctx context.Context, known map[string]int64, name string) (int64, error) {
	if id, ok := known[name]; ok {
		return id, nil
	}

	remote, err := i.repo.GetRemote(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, fmt.Errorf("remote %s: %w", name, errUnknownReference)
	}

	if err != nil {
		return 0, err
	}

	known[name] = remote.ID

	return remote.ID, nil
}

// firmware builds the record for sf, or returns nil when its payload fails the DFU check.
func (i *importer) firmware(
	ctx context.Context,
	sf SeedFirmware,
	remoteIDs, vendorIDs map[string]int64,
) (*firmware.Firmware, error) {
	remoteID, err := i.remoteID(ctx, remoteIDs, sf.Remote)
	if err != nil {
		return nil, fmt.Errorf("firmware %s: %w", sf.Filename, err)
	}

	vendorID, ok := vendorIDs[sf.Vendor]
	if !ok {
		return nil, fmt.Errorf("firmware %s: vendor %s: %w", sf.Filename, sf.Vendor, errUnknownReference)
	}

	fw := &firmware.Firmware{
		RemoteID:             remoteID,
		VendorID:             vendorID,
		Filename:             sf.Filename,
		SignedAt:             sf.SignedAt,
		ChecksumUploadSHA1:   sf.ChecksumUploadSHA1,
		ChecksumUploadSHA256: sf.ChecksumUploadSHA256,
		ChecksumSignedSHA1:   sf.ChecksumSignedSHA1,
		ChecksumSignedSHA256: sf.ChecksumSignedSHA256,
		Components:           sf.Components,
	}

	if sf.Payload == "" {
		return fw, nil
	}

	payload, err := os.ReadFile(filepath.Clean(filepath.Join(i.baseDir, sf.Payload)))
	if err != nil {
		return nil, fmt.Errorf("read payload of %s: %w", sf.Filename, err)
	}

	if fw.ChecksumUploadSHA1 == "" {
		sum := sha1.Sum(payload) //nolint:gosec // SHA1 digests are part of the catalog format.
		fw.ChecksumUploadSHA1 = hex.EncodeToString(sum[:])
	}

	if fw.ChecksumUploadSHA256 == "" {
		sum := sha256.Sum256(payload)
		fw.ChecksumUploadSHA256 = hex.EncodeToString(sum[:])
	}

	if i.checkDFU && !passesDFU(ctx, fw, payload) {
		return nil, nil //nolint:nilnil // A rejected archive is not an import error.
	}

	return fw, nil
}

// passesDFU runs the suffix check when any component speaks the DFU protocol.
func passesDFU(ctx context.Context, fw *firmware.Firmware, payload []byte) bool {
	for _, md := range fw.Components {
		if md.Protocol != dfu.Protocol {
			continue
		}

		result := dfu.Check(payload)
		for _, attr := range result.Attributes {
			logger.DebugKV(ctx, "DFU check", "filename", fw.Filename, "title", attr.Title,
				"message", attr.Message, "success", attr.Success)
		}

		if !result.Passed() {
			for _, attr := range result.Failures() {
				logger.ErrorKV(ctx, "DFU check failed", "filename", fw.Filename, "title", attr.Title, "message", attr.Message)
			}

			return false
		}

		return true
	}

	return true
}
