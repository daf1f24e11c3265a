package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the fwmeta binaries.
type Config struct {
	// ServerAddress is the gRPC address of the metadata service.
	ServerAddress string `yaml:"server_addr"`
	// Database is the path of the SQLite record store.
	Database string `yaml:"database"`
	// DownloadDir is where metadata artifacts and sidecars are written.
	DownloadDir string `yaml:"download_dir"`
	// FirmwareBaseURI is prepended to firmware filenames in release locations.
	FirmwareBaseURI string `yaml:"firmware_baseuri"`
	// Origin is the AppStream origin attribute of generated catalogs.
	Origin string `yaml:"origin"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// LeaseTTL bounds how long a build claim stays valid without being released.
	LeaseTTL time.Duration `yaml:"lease_ttl"`
	// ScheduleInterval is how often the server rebuilds every dirty remote.
	ScheduleInterval time.Duration `yaml:"schedule_interval"`
	// Log controls the global logger.
	Log Log `yaml:"log"`
	// Signing configures the metadata signers.
	Signing Signing `yaml:"signing"`
	// Purge configures cache invalidation for written files.
	Purge Purge `yaml:"purge"`
	// Tasks configures retry behaviour of background builds.
	Tasks Tasks `yaml:"tasks"`
}

// Log holds logger settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Signing lists the signer backends.
type Signing struct {
	GPG     GPG     `yaml:"gpg"`
	Ed25519 Ed25519 `yaml:"ed25519"`
}

// GPG configures the OpenPGP detached-signature signer.
type GPG struct {
	Enabled bool `yaml:"enabled"`
	// KeyringDir contains the exported public and secret keys.
	KeyringDir string `yaml:"keyring_dir"`
	// MetadataUID selects the signing key by user id substring.
	MetadataUID string `yaml:"metadata_uid"`
}

// Ed25519 configures the raw Ed25519 signer.
type Ed25519 struct {
	Enabled bool `yaml:"enabled"`
	// KeyDir is the key store root holding <identifier>/root.key seeds.
	KeyDir string `yaml:"key_dir"`
	// Identifier names the key inside KeyDir.
	Identifier string `yaml:"identifier"`
}

// Purge configures the CDN invalidation endpoint. An empty BaseURL disables HTTP purging.
type Purge struct {
	BaseURL string `yaml:"base_url"`
	Method  string `yaml:"method"`
}

// Tasks configures the retry policy applied to background builds.
type Tasks struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	TimeLimit  time.Duration `yaml:"time_limit"`
}

const (
	// DefaultConfigFilename is the default filename for service settings.
	DefaultConfigFilename = "fwmeta-settings.yaml"

	// DefaultDatabaseFilename is the default SQLite record store.
	DefaultDatabaseFilename = "fwmeta.db"

	// DefaultDownloadDir is where artifacts land when nothing is configured.
	DefaultDownloadDir = "downloads"

	// DefaultOrigin is the AppStream origin used by fwupd clients to identify the catalog.
	DefaultOrigin = "lvfs"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultLeaseTTL is how long a claim protects a remote from concurrent builds.
	DefaultLeaseTTL = 5 * time.Minute

	// DefaultScheduleInterval is the period of the "regenerate everything" sweep.
	DefaultScheduleInterval = 4 * time.Hour

	// DefaultPurgeMethod is the HTTP verb sent to the cache.
	DefaultPurgeMethod = "PURGE"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errGPGUIDRequired is returned when GPG signing is enabled without a key selector.
	errGPGUIDRequired = errors.New("gpg signing requires metadata_uid")
	// errEd25519IdentifierRequired is returned when Ed25519 signing is enabled without a key name.
	errEd25519IdentifierRequired = errors.New("ed25519 signing requires identifier")
	// errNegativeRetries is returned for a negative retry budget.
	errNegativeRetries = errors.New("tasks.max_retries must not be negative")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file names key locations.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	applyDefaults(settings)

	if settings.Signing.GPG.Enabled && settings.Signing.GPG.MetadataUID == "" {
		return errGPGUIDRequired
	}

	if settings.Signing.Ed25519.Enabled && settings.Signing.Ed25519.Identifier == "" {
		return errEd25519IdentifierRequired
	}

	if settings.Tasks.MaxRetries < 0 {
		return errNegativeRetries
	}

	if settings.Purge.BaseURL != "" {
		if _, err := url.ParseRequestURI(settings.Purge.BaseURL); err != nil {
			return fmt.Errorf("invalid purge base URL: %w", err)
		}
	}

	if settings.FirmwareBaseURI != "" {
		if _, err := url.ParseRequestURI(settings.FirmwareBaseURI); err != nil {
			return fmt.Errorf("invalid firmware base URI: %w", err)
		}
	}

	return nil
}

// applyDefaults fills every optional field left empty.
func applyDefaults(settings *Config) {
	if settings.Database == "" {
		settings.Database = DefaultDatabaseFilename
	}

	if settings.DownloadDir == "" {
		settings.DownloadDir = DefaultDownloadDir
	}

	if settings.Origin == "" {
		settings.Origin = DefaultOrigin
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.LeaseTTL <= 0 {
		settings.LeaseTTL = DefaultLeaseTTL
	}

	if settings.ScheduleInterval <= 0 {
		settings.ScheduleInterval = DefaultScheduleInterval
	}

	if settings.Purge.Method == "" {
		settings.Purge.Method = DefaultPurgeMethod
	}
}
