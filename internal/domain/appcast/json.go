package appcast

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
)

var errNotObject = errors.New("not a JSON object")

// member is one name/value pair of a JSON object.
type member struct {
	name  string
	value json.RawMessage
}

// decodeObject decodes data into known and returns the members that are not
// in knownKeys along with the member names in document order. The order is
// nil when encodeObject reproduces it without help. Keys are matched
// case-insensitively, like encoding/json matches struct fields.
func decodeObject(data []byte, known any, knownKeys []string) (map[string]json.RawMessage, []string, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, nil, err
	}

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil, nil
	}

	members, err := readObject(data)
	if err != nil {
		return nil, nil, err
	}

	var extra map[string]json.RawMessage

	names := make([]string, 0, len(members))

	for _, m := range members {
		names = append(names, m.name)

		if _, ok := knownKey(knownKeys, m.name); ok {
			continue
		}

		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}

		extra[m.name] = m.value
	}

	if slices.Equal(names, defaultOrder(knownKeys, extra)) {
		return extra, nil, nil
	}

	return extra, names, nil
}

// encodeObject encodes the fields of known followed by extra.
// Without an order every known key is written first and extra follows sorted.
// With an order, members are written in that order; known keys missing from
// it are added only when they hold a value, and new extra keys go last.
// HTML characters are written as is.
func encodeObject(known any, knownKeys []string, extra map[string]json.RawMessage, order []string) ([]byte, error) {
	encoded, err := encode(known)
	if err != nil {
		return nil, err
	}

	members, err := readObject(encoded)
	if err != nil {
		return nil, err
	}

	values := make(map[string]json.RawMessage, len(members))
	for _, m := range members {
		values[m.name] = m.value
	}

	if order == nil {
		order = defaultOrder(knownKeys, extra)
	}

	var (
		out     = []byte{'{'}
		written = make(map[string]bool, len(order))
	)

	write := func(name string, value json.RawMessage) error {
		key, err := encode(name)
		if err != nil {
			return err
		}

		if len(out) > 1 {
			out = append(out, ',')
		}

		out = append(out, key...)
		out = append(out, ':')
		out = append(out, value...)
		written[name] = true

		return nil
	}

	for _, name := range order {
		if written[name] {
			continue
		}

		value, ok := extra[name]

		if key, isKnown := knownKey(knownKeys, name); isKnown {
			if written[key] {
				continue
			}

			written[key] = true
			value, ok = values[key], true
		}

		if !ok {
			continue
		}

		if err = write(name, value); err != nil {
			return nil, err
		}
	}

	for _, key := range knownKeys {
		if written[key] || isBlank(values[key]) {
			continue
		}

		if err = write(key, values[key]); err != nil {
			return nil, err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(extra)) {
		if written[name] {
			continue
		}

		if err = write(name, extra[name]); err != nil {
			return nil, err
		}
	}

	return append(out, '}'), nil
}

// readObject splits a JSON object into its members, keeping their order.
func readObject(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	token, err := dec.Token()
	if err != nil {
		return nil, err
	}

	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var members []member

	for dec.More() {
		token, err = dec.Token()
		if err != nil {
			return nil, err
		}

		name, ok := token.(string)
		if !ok {
			return nil, errNotObject
		}

		var value json.RawMessage
		if err = dec.Decode(&value); err != nil {
			return nil, err
		}

		members = append(members, member{name: name, value: value})
	}

	if _, err = dec.Token(); err != nil {
		return nil, err
	}

	return members, nil
}

func defaultOrder(knownKeys []string, extra map[string]json.RawMessage) []string {
	return slices.Concat(knownKeys, slices.Sorted(maps.Keys(extra)))
}

func knownKey(knownKeys []string, name string) (string, bool) {
	i := slices.IndexFunc(knownKeys, func(k string) bool {
		return strings.EqualFold(k, name)
	})
	if i < 0 {
		return "", false
	}

	return knownKeys[i], true
}

// isBlank reports whether an encoded field holds no value worth adding.
func isBlank(value json.RawMessage) bool {
	switch string(value) {
	case "", `""`, "null":
		return true
	default:
		return false
	}
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
