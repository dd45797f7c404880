package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Values is a JSON object that remembers key order. Curation results are
// returned in the order of the caller's headers, so a plain map won't do.
type Values struct {
	keys []string
	m    map[string]any
}

// NewValues returns an empty Values.
func NewValues() Values {
	return Values{m: make(map[string]any)}
}

// Set assigns key, appending it if new.
func (v *Values) Set(key string, val any) {
	if v.m == nil {
		v.m = make(map[string]any)
	}
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = val
}

// Get returns the value stored under key.
func (v Values) Get(key string) (any, bool) {
	val, ok := v.m[key]
	return val, ok
}

// Keys returns the keys in insertion order.
func (v Values) Keys() []string {
	return append([]string(nil), v.keys...)
}

// Len returns the number of keys.
func (v Values) Len() int { return len(v.keys) }

// Map returns an unordered copy.
func (v Values) Map() map[string]any {
	out := make(map[string]any, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeNoEscape(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeNoEscape(&buf, v.m[k]); err != nil {
			return nil, fmt.Errorf("encoding %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeNoEscape(buf *bytes.Buffer, val any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(val); err != nil {
		return err
	}
	// Encoder appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON decodes a JSON object, keeping its top-level key order.
// Nested values decode as plain Go values.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	out := NewValues()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object")
	}
	*v = out
	return nil
}
