package appcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ChecksumLength is the length of a hex-encoded SHA-256 digest.
const ChecksumLength = 64

var (
	// ErrInvalidEntry is returned by Entry.Validate.
	ErrInvalidEntry = errors.New("invalid appcast entry")

	checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

	entryKeys = []string{"version", "desc", "sha256", "url", "minBobVersion"}
)

// Entry describes one published release.
type Entry struct {
	// Version is the plugin version of the release.
	Version string `json:"version"`
	// Desc is the free-text release note.
	Desc string `json:"desc"`
	// SHA256 is the lowercase hex digest of the release artifact.
	SHA256 string `json:"sha256"`
	// URL is where clients download the artifact.
	URL string `json:"url"`
	// MinBobVersion is the oldest host version able to run the release.
	MinBobVersion string `json:"minBobVersion"`
	// Extra holds unknown fields read from an existing feed.
	Extra map[string]json.RawMessage `json:"-"`

	// keys is the member order of the entry as read, if it differs from the default.
	keys []string
}

type plainEntry Entry

// Validate reports whether the entry can be published.
func (e *Entry) Validate() error {
	if e.Version == "" {
		return fmt.Errorf("%w: empty version", ErrInvalidEntry)
	}

	if !checksumPattern.MatchString(e.SHA256) {
		return fmt.Errorf("%w: sha256 %q is not %d lowercase hex characters", ErrInvalidEntry, e.SHA256, ChecksumLength)
	}

	if e.URL == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidEntry)
	}

	return nil
}

// MarshalJSON writes the known fields in their canonical order, then Extra.
// An entry read from a feed keeps the keys and key order it was read with.
func (e Entry) MarshalJSON() ([]byte, error) {
	return encodeObject(plainEntry(e), entryKeys, e.Extra, e.keys)
}

// UnmarshalJSON reads the known fields and collects the rest into Extra.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var plain plainEntry

	extra, keys, err := decodeObject(data, &plain, entryKeys)
	if err != nil {
		return err
	}

	*e = Entry(plain)
	e.Extra = extra
	e.keys = keys

	return nil
}
