package stats

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ID is a bundler-native module or chunk identifier. Bundlers emit either small
// integers or opaque strings; both are kept as text and compared verbatim.
type ID struct {
	Value   string
	Numeric bool
}

// NumericID returns an ID for an integer identifier.
func NumericID(n int) ID {
	return ID{Value: fmt.Sprint(n), Numeric: true}
}

// StringID returns an ID for a string identifier.
func StringID(s string) ID {
	return ID{Value: s}
}

// Key returns the stringified identifier used to index modules and chunks.
func (id ID) Key() string {
	return id.Value
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id.Value == "" && !id.Numeric
}

// String implements fmt.Stringer.
func (id ID) String() string {
	if id.Numeric {
		return id.Value
	}
	return fmt.Sprintf("%q", id.Value)
}

// MarshalJSON writes numeric ids as JSON numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.Numeric {
		return []byte(id.Value), nil
	}
	return json.Marshal(id.Value)
}

// MarshalYAML writes numeric ids as integer scalars, keeping their text.
func (id ID) MarshalYAML() (any, error) {
	if id.Numeric {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: id.Value}, nil
	}
	return id.Value, nil
}

// UnmarshalJSON accepts a JSON number or string. The number text is kept
// verbatim and never converted.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ID{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID{Value: s}
		return nil
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*id = ID{Value: string(data), Numeric: true}
		return nil
	default:
		return fmt.Errorf("invalid identifier %s", data)
	}
}

// Keys returns the stringified form of every id.
func Keys(ids []ID) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.Key()
	}
	return keys
}
