package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when the metadata file does not exist.
	ErrNotFound = errors.New("metadata not found")
	// ErrMalformed is returned when the metadata is not a JSON object with a string version.
	ErrMalformed = errors.New("malformed metadata")
)

// Info is the subset of the plugin info.json used to publish a release.
type Info struct {
	// Version is the release version. Required.
	Version string `json:"version"`
	// Identifier is the plugin identifier, when the file declares one.
	Identifier string `json:"identifier"`
	// MinBobVersion is the minimum host version, when the file declares one.
	MinBobVersion string `json:"minBobVersion"`
}

// Load reads and validates the metadata file at path.
func Load(path string) (*Info, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}

		return nil, fmt.Errorf("read metadata: %w", err)
	}

	return Parse(contents)
}

// Parse decodes metadata contents.
func Parse(contents []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(contents, &info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if strings.TrimSpace(info.Version) == "" {
		return nil, fmt.Errorf("%w: missing version", ErrMalformed)
	}

	return &info, nil
}
