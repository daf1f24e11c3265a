package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	settings := new(Config)

	err := Validate(settings)
	require.Error(t, err)

	// Bad socket.
	settings = &Config{
		ServerAddress: "bad:address",
	}

	err = Validate(settings)
	require.Error(t, err)

	// GPG enabled without a key selector.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		Signing:       Signing{GPG: GPG{Enabled: true}},
	}

	err = Validate(settings)
	require.ErrorIs(t, err, errGPGUIDRequired)

	// Okay with purge endpoint.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		Purge:         Purge{BaseURL: "https://cdn.example.com/downloads"},
	}

	err = Validate(settings)
	require.NoError(t, err)
}

// TestValidateFillsDefaults ensures optional settings receive defaults.
func TestValidateFillsDefaults(t *testing.T) {
	t.Parallel()

	settings := &Config{ServerAddress: "127.0.0.1:50051"}
	require.NoError(t, Validate(settings))

	require.Equal(t, DefaultDatabaseFilename, settings.Database)
	require.Equal(t, DefaultDownloadDir, settings.DownloadDir)
	require.Equal(t, DefaultOrigin, settings.Origin)
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultLeaseTTL, settings.LeaseTTL)
	require.Equal(t, DefaultScheduleInterval, settings.ScheduleInterval)
	require.Equal(t, DefaultPurgeMethod, settings.Purge.Method)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress:   "127.0.0.1:50051",
		DownloadDir:     filepath.Join(dir, "downloads"),
		FirmwareBaseURI: "https://fwupd.example.com/downloads/",
		Signing: Signing{
			GPG: GPG{Enabled: true, KeyringDir: filepath.Join(dir, "gnupg"), MetadataUID: "sign-test@fwupd.org"},
		},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.ServerAddress, loaded.ServerAddress)
	require.Equal(t, settings.DownloadDir, loaded.DownloadDir)
	require.Equal(t, settings.FirmwareBaseURI, loaded.FirmwareBaseURI)
	require.Equal(t, settings.Signing.GPG, loaded.Signing.GPG)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}
