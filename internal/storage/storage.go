package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"media-catalog/internal/logging"
)

// DerivativePrefixes are the known derived-asset name prefixes, used by the
// failure cleanup scan.
var DerivativePrefixes = []string{"display", "blur", "thumb", "video", "poster"}

// Store addresses files by (collection, record id, filename) under a
// permanent root, and provides per-record scratch directories under a
// separate scratch root. Derivatives are generated in scratch first and then
// atomically renamed into the permanent location, so readers of the
// permanent path never observe a partial write. Scratch and permanent roots
// must live on the same filesystem for the rename to stay atomic.
type Store struct {
	root        string
	scratchRoot string
	urlPrefix   string
}

// New creates a Store rooted at root with scratch space under scratchRoot.
// Both directories are created if missing.
func New(root, scratchRoot string) (*Store, error) {
	for _, dir := range []string{root, scratchRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return &Store{
		root:        root,
		scratchRoot: scratchRoot,
		urlPrefix:   "/files",
	}, nil
}

// FilePath returns the permanent path for (collection, recordID, filename).
func (s *Store) FilePath(collection, recordID, filename string) string {
	return filepath.Join(s.root, collection, recordID, filename)
}

// URL returns the relative URL a stored file is served under.
func (s *Store) URL(collection, recordID, filename string) string {
	return strings.Join([]string{s.urlPrefix, collection, recordID, filename}, "/")
}

// Root returns the permanent storage root, for mounting a file server.
func (s *Store) Root() string {
	return s.root
}

// SaveOriginal streams an upload into the record's permanent directory.
// The write goes to a temporary name first and is renamed into place.
func (s *Store) SaveOriginal(collection, recordID, filename string, r io.Reader) (string, error) {
	dir := filepath.Join(s.root, collection, recordID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create record directory: %w", err)
	}

	dst := filepath.Join(dir, filename)
	tmp := dst + ".part"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	return s.URL(collection, recordID, filename), nil
}

// ScratchDir returns the scratch directory path for a record id.
func (s *Store) ScratchDir(recordID string) string {
	return filepath.Join(s.scratchRoot, recordID)
}

// EnsureScratchDir creates and returns the record's scratch directory.
func (s *Store) EnsureScratchDir(recordID string) (string, error) {
	dir := s.ScratchDir(recordID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return dir, nil
}

// RemoveScratch deletes a record's scratch directory. Errors are logged
// only; scratch removal runs on every pipeline exit path.
func (s *Store) RemoveScratch(recordID string) {
	if err := os.RemoveAll(s.ScratchDir(recordID)); err != nil {
		logging.Warn("failed to remove scratch directory for %s: %v", recordID, err)
	}
}

// Place atomically relocates a generated file from scratch into the
// permanent location and returns its URL. Rename, not copy: a reader of the
// permanent path sees either nothing or the complete file.
func (s *Store) Place(scratchPath, collection, recordID, filename string) (string, error) {
	dir := filepath.Join(s.root, collection, recordID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create record directory: %w", err)
	}

	dst := filepath.Join(dir, filename)
	if err := os.Rename(scratchPath, dst); err != nil {
		return "", fmt.Errorf("failed to place %s: %w", filename, err)
	}

	return s.URL(collection, recordID, filename), nil
}

// CleanupDerivatives removes files in the record's permanent directory whose
// names match a known derivative prefix, preserving keep (the original
// upload). Returns the number of files removed. Used after a structural
// pipeline failure to avoid orphaned partial artifacts.
func (s *Store) CleanupDerivatives(collection, recordID, keep string) int {
	dir := filepath.Join(s.root, collection, recordID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("failed to scan %s for cleanup: %v", dir, err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == keep {
			continue
		}
		if !hasDerivativePrefix(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn("failed to remove orphaned derivative %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Info("Removed %d orphaned derivatives for record %s", removed, recordID)
	}
	return removed
}

func hasDerivativePrefix(name string) bool {
	for _, prefix := range DerivativePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
