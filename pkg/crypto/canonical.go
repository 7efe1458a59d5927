// Package crypto provides canonical JSON serialization and the hash
// functions used for on-chain integrity commitments.
//
// The canonical form matches the convention the registry contracts hash
// against: keys sorted bytewise ascending at every nesting level, "," and
// ":" separators with no whitespace, UTF-8 with non-ASCII characters
// emitted literally.
package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize serializes v to canonical JSON bytes.
//
// v may be a map, slice, scalar, or any struct with JSON tags; structs are
// round-tripped through encoding/json first so the canonical form depends
// only on the resulting field set. Numbers are preserved verbatim.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("not JSON-representable: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to decode intermediate JSON: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalizeString is Canonicalize with a string result.
func CanonicalizeString(v any) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		return writeJSONString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported canonical value type %T", v)
	}
	return nil
}

// writeJSONString encodes s as a JSON string without HTML escaping, so
// characters like '<' and non-ASCII text survive byte-for-byte.
func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode string: %w", err)
	}
	// Encode appends a newline
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
