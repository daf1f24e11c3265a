package regen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/fwmeta/internal/appstream"
	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/domain/firmware"
	"github.com/oshokin/fwmeta/internal/logger"
	repo "github.com/oshokin/fwmeta/internal/repository/metadata"
	"github.com/oshokin/fwmeta/internal/service/common"
)

// ExportOptions selects an unsigned catalog variant.
type ExportOptions struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Remote limits the catalog to firmware included by that remote; empty exports everything.
	Remote string
	// Local writes upload checksums and omits the vendor-id rule.
	Local bool
	// Metainfo writes the single-component document of this AppStream id instead of a catalog.
	Metainfo string
}

// errNoComponent is returned when no stored component has the requested AppStream id.
var errNoComponent = errors.New("no component with this appstream id")

// Export writes the requested document to out. Catalogs are gzip-compressed,
// metainfo documents are plain XML.
func Export(ctx context.Context, opts *ExportOptions, out io.Writer) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// The document may go to stdout.
	logger.ConfigureTo(os.Stderr, settings.Log.Level, settings.Log.Format)

	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fwmeta-export")

	repository, err := common.OpenRepository(settings)
	if err != nil {
		return err
	}

	defer func() {
		_ = repository.Close()
	}()

	data, err := exportDocument(ctx, repository, opts, appstream.Options{
		FirmwareBaseURI: settings.FirmwareBaseURI,
		Origin:          settings.Origin,
		Local:           opts.Local,
	})
	if err != nil {
		return err
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	logger.InfoKV(ctx, "Exported document", "remote", opts.Remote, "metainfo", opts.Metainfo, "size", len(data))

	return nil
}

func exportDocument(
	ctx context.Context,
	repository repo.Repository,
	opts *ExportOptions,
	generate appstream.Options,
) ([]byte, error) {
	fws, err := repository.ListFirmware(ctx)
	if err != nil {
		return nil, fmt.Errorf("list firmware: %w", err)
	}

	if opts.Remote != "" {
		remote, err := repository.GetRemote(ctx, opts.Remote)
		if err != nil {
			return nil, err
		}

		generate.AllowUnrestricted = remote.IsPublic

		included := fws[:0]
		for _, fw := range fws {
			if remote.Includes(fw) {
				included = append(included, fw)
			}
		}

		fws = included
	}

	if opts.Metainfo == "" {
		return appstream.GenerateComponents(fws, generate)
	}

	var mds []*firmware.Component

	for _, fw := range fws {
		for _, md := range fw.Components {
			if md.AppstreamID == opts.Metainfo {
				mds = append(mds, md)
			}
		}
	}

	if len(mds) == 0 {
		return nil, fmt.Errorf("%s: %w", opts.Metainfo, errNoComponent)
	}

	return appstream.GenerateMetainfo(mds, generate)
}
