package artifact

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	goupdate "github.com/doitdistributed/go-update"
)

const (
	// DefaultDirMode is used when the download directory is created.
	DefaultDirMode os.FileMode = 0o755
	// DefaultFileMode is applied to every written artifact.
	DefaultFileMode os.FileMode = 0o644
)

// ErrNoDirectory is returned when the store has no directory configured.
var ErrNoDirectory = errors.New("download directory is not configured")

// Store writes files below Dir.
type Store struct {
	// Dir is the download directory.
	Dir string
	// Mode is the permission of written files.
	Mode os.FileMode
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir, Mode: DefaultFileMode}
}

// Ensure creates the directory if needed.
func (s *Store) Ensure() error {
	if s.Dir == "" {
		return ErrNoDirectory
	}

	if err := os.MkdirAll(s.Dir, DefaultDirMode); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	return nil
}

// Path returns the absolute location of name inside the store.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

// Write atomically replaces name with data and returns its path.
func (s *Store) Write(name string, data []byte) (string, error) {
	path := s.Path(name)

	// The updater renames the current target aside, so one has to exist.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		file, createErr := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY, s.mode())
		if createErr != nil {
			return "", fmt.Errorf("create %s: %w", name, createErr)
		}

		if createErr = file.Close(); createErr != nil {
			return "", fmt.Errorf("create %s: %w", name, createErr)
		}
	}

	checksum := sha256.Sum256(data)

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: s.mode(),
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	return path, nil
}

// Read returns the contents of name.
func (s *Store) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(s.Path(name)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// Glob returns the sorted base names in the store matching pattern.
func (s *Store) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, filepath.Base(match))
	}

	sort.Strings(names)

	return names, nil
}

// Remove deletes name. A missing file is not an error.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}

	return nil
}

func (s *Store) mode() os.FileMode {
	if s.Mode == 0 {
		return DefaultFileMode
	}

	return s.Mode
}
