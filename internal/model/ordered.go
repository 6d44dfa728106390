package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// Document order of mappings is significant (column order, function
// signatures, rule labels), and neither codec preserves it when decoding into
// Go maps. These helpers decode an object into ordered key/value pairs.

type pair struct {
	key   string
	value any
}

func orderedJSONObject(bs []byte) ([]pair, error) {
	dec := json.NewDecoder(bytes.NewReader(bs))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var pairs []pair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return pairs, nil
}

func orderedYAMLObject(bs []byte) ([]pair, error) {
	var ms yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(bs, &ms, yaml.UseOrderedMap()); err != nil {
		return nil, err
	}

	pairs := make([]pair, 0, len(ms))
	for _, item := range ms {
		key, ok := item.Key.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", item.Key)
		}
		pairs = append(pairs, pair{key: key, value: item.Value})
	}
	return pairs, nil
}

// stringList coerces a decoded scalar-or-sequence value into a string slice.
func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("expected string or list of strings, got %T", value)
	}
}
