package artifact

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA256 available for checksum calculation.
	_ "crypto/sha256"
)

// ChecksumFunction is the digest recorded in the appcast.
const ChecksumFunction crypto.Hash = crypto.SHA256

var (
	// ErrNotFound is returned when the artifact is missing or is not a regular file.
	ErrNotFound = errors.New("release artifact not found")

	errHashUnavailable = errors.New("hash function unavailable")
)

// EnsureExists fails with ErrNotFound unless path is a regular file.
func EnsureExists(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file: %w", path, ErrNotFound)
	}

	return nil
}

// Checksum returns the lowercase hex SHA-256 digest of the file at path.
func Checksum(path string) (string, error) {
	if !ChecksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}

	// Read-only file.
	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
