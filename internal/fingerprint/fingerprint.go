package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"media-catalog/internal/logging"
	"media-catalog/internal/transform"
)

// Service computes content fingerprints for uploaded files. The checksum
// tool does the hashing; if it is unavailable the hash is computed
// in-process so dedup metadata is never silently missing.
type Service struct {
	exec transform.Executor
}

// New creates a fingerprint Service using the given executor.
func New(exec transform.Executor) *Service {
	return &Service{exec: exec}
}

// Fingerprint returns the lowercase hex SHA-256 of the file's raw bytes.
func (s *Service) Fingerprint(ctx context.Context, path string) (string, error) {
	out, err := s.exec.Run(ctx, transform.Checksum(path))
	if err == nil {
		sum, parseErr := parseChecksumOutput(string(out))
		if parseErr == nil {
			return sum, nil
		}
		logging.Warn("checksum tool output unparseable for %s: %v", path, parseErr)
	} else {
		logging.Warn("checksum tool failed for %s, hashing in-process: %v", path, err)
	}

	return hashFile(path)
}

// parseChecksumOutput parses "<hex> <filename>" tool output.
func parseChecksumOutput(out string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 1 {
		return "", fmt.Errorf("empty checksum output")
	}

	sum := strings.ToLower(fields[0])
	if len(sum) != sha256.Size*2 {
		return "", fmt.Errorf("checksum %q has length %d, want %d", sum, len(sum), sha256.Size*2)
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return "", fmt.Errorf("checksum %q is not hex: %w", sum, err)
	}
	return sum, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s after hashing: %v", path, err)
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
