//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/fwmeta/internal/artifact"
	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/purge"
	repo "github.com/oshokin/fwmeta/internal/repository/metadata"
	"github.com/oshokin/fwmeta/internal/service/builder"
)

// OpenRepository opens the record store named in settings.
func OpenRepository(settings *config.Config) (*repo.SQLiteRepository, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	repository, err := repo.Open(repo.Options{
		Path:         settings.Database,
		Hostname:     hostname,
		ProcessAlive: ProcessAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	return repository, nil
}

// NewBuilder wires a metadata builder from settings.
func NewBuilder(ctx context.Context, settings *config.Config, repository repo.Repository) (*builder.Builder, error) {
	signers, err := NewSigners(ctx, settings.Signing)
	if err != nil {
		return nil, err
	}

	owner, err := DetectOwner()
	if err != nil {
		return nil, err
	}

	return builder.New(repository, builder.Options{
		Store:           artifact.New(settings.DownloadDir),
		Signers:         signers,
		Invalidator:     purge.New(settings.Purge.BaseURL, settings.Purge.Method),
		Owner:           owner,
		LeaseTTL:        settings.LeaseTTL,
		FirmwareBaseURI: settings.FirmwareBaseURI,
		Origin:          settings.Origin,
	}), nil
}
