//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"

	"github.com/oshokin/fwmeta/internal/config"
	"github.com/oshokin/fwmeta/internal/logger"
	"github.com/oshokin/fwmeta/internal/signer"
	"github.com/oshokin/fwmeta/internal/signer/ed25519"
	"github.com/oshokin/fwmeta/internal/signer/gpg"
)

// NewSigners builds the signer set enabled in settings, GPG first.
func NewSigners(ctx context.Context, settings config.Signing) (*signer.Set, error) {
	set := signer.NewSet()

	if settings.GPG.Enabled {
		s, err := gpg.New(ctx, settings.GPG.KeyringDir, settings.GPG.MetadataUID)
		if err != nil {
			return nil, fmt.Errorf("gpg signer: %w", err)
		}

		set.Register(s)
	}

	if settings.Ed25519.Enabled {
		s, err := ed25519.New(settings.Ed25519.KeyDir, settings.Ed25519.Identifier)
		if err != nil {
			return nil, fmt.Errorf("ed25519 signer: %w", err)
		}

		set.Register(s)
	}

	if set.Len() == 0 {
		logger.Warn(ctx, "No signer enabled, metadata will carry digests only")
	}

	return set, nil
}
