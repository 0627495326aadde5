package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MarshalJSON writes the keys in insertion order. HTML is not escaped so
// email and page bodies survive a dump unchanged.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		kb, err := encode(pair.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := encode(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %q: %w", pair.Key, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var errInvalidJSON = errors.New("invalid JSON")

// UnmarshalJSON decodes an object, keeping key order at every depth
func (r *Record) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return errInvalidJSON
	}
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("expected JSON object, got %.20s", data)
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	fields := orderedmap.New[string, any](raw.Len())
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		v, err := decodeValue(pair.Value)
		if err != nil {
			return fmt.Errorf("failed to decode key %q: %w", pair.Key, err)
		}
		fields.Set(pair.Key, v)
	}
	r.fields = fields
	return nil
}

// Decode parses any JSON document. Objects become *Record.
func Decode(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, errInvalidJSON
	}
	return decodeValue(data)
}

// DecodeRecord parses a single JSON object
func DecodeRecord(data []byte) (*Record, error) {
	r := New()
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// decodeValue expects data already checked by json.Valid
func decodeValue(data json.RawMessage) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errInvalidJSON
	}
	switch data[0] {
	case '{':
		return DecodeRecord(data)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Records extracts the objects of a decoded array, skipping anything that
// is not an object.
func Records(list []any) []*Record {
	out := make([]*Record, 0, len(list))
	for _, item := range list {
		if r, ok := item.(*Record); ok {
			out = append(out, r)
		}
	}
	return out
}
