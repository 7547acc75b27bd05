package appcast

import (
	"encoding/json"
	"slices"
)

var feedKeys = []string{"identifier", "versions"}

// Feed is the appcast document. Versions are ordered newest first.
type Feed struct {
	// Identifier is the plugin identifier the feed belongs to.
	Identifier string `json:"identifier"`
	// Versions lists every published release, newest first.
	Versions []Entry `json:"versions"`
	// Extra holds unknown top-level fields read from an existing feed.
	Extra map[string]json.RawMessage `json:"-"`

	// keys is the member order of the document as read, if it differs from the default.
	keys []string
}

type plainFeed Feed

// NewFeed returns an empty feed for identifier.
func NewFeed(identifier string) *Feed {
	return &Feed{
		Identifier: identifier,
		Versions:   []Entry{},
	}
}

// Prepend inserts entry as the newest release. Existing entries are kept,
// including ones with the same version.
func (f *Feed) Prepend(entry Entry) {
	f.Versions = slices.Insert(f.Versions, 0, entry)
}

// Latest returns the newest entry, if any.
func (f *Feed) Latest() (Entry, bool) {
	if len(f.Versions) == 0 {
		return Entry{}, false
	}

	return f.Versions[0], true
}

// MarshalJSON writes identifier and versions first, then Extra.
// A feed read from a document keeps the keys and key order it was read with.
func (f Feed) MarshalJSON() ([]byte, error) {
	plain := plainFeed(f)
	if plain.Versions == nil {
		plain.Versions = []Entry{}
	}

	return encodeObject(plain, feedKeys, f.Extra, f.keys)
}

// UnmarshalJSON reads the known fields and collects the rest into Extra.
func (f *Feed) UnmarshalJSON(data []byte) error {
	var plain plainFeed

	extra, keys, err := decodeObject(data, &plain, feedKeys)
	if err != nil {
		return err
	}

	*f = Feed(plain)
	f.Extra = extra
	f.keys = keys

	if f.Versions == nil {
		f.Versions = []Entry{}
	}

	return nil
}
