package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is an ordered JSON object. Nested objects are held as *Record,
// arrays as []any and numbers as json.Number so a decode/encode round trip
// keeps both key order and numeric precision.
type Record struct {
	fields *orderedmap.OrderedMap[string, any]
}

// New creates an empty record
func New() *Record {
	return &Record{fields: orderedmap.New[string, any]()}
}

func (r *Record) init() {
	if r.fields == nil {
		r.fields = orderedmap.New[string, any]()
	}
}

// FromMap builds a record from a plain map. Keys are sorted because map
// iteration order is random.
func FromMap(m map[string]any) *Record {
	r := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Set(k, normalizeValue(m[k]))
	}
	return r
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return FromMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = FromMap(item)
		}
		return out
	default:
		return v
	}
}

// Len returns the number of keys
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys returns the keys in insertion order
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Has reports whether key is present
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Get returns the raw value stored under key
func (r *Record) Get(key string) (any, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Set stores a value. Existing keys keep their position.
func (r *Record) Set(key string, value any) {
	r.init()
	r.fields.Set(key, value)
}

// Delete removes key and reports whether it was present
func (r *Record) Delete(key string) bool {
	if r == nil || r.fields == nil {
		return false
	}
	_, ok := r.fields.Delete(key)
	return ok
}

// Rename moves the value under from to to, keeping the position of from.
// A value already stored under to is replaced.
func (r *Record) Rename(from, to string) bool {
	if r == nil || r.fields == nil || from == to {
		return false
	}
	v, ok := r.fields.Get(from)
	if !ok {
		return false
	}
	r.fields.Delete(to)
	r.fields.Set(to, v)
	if err := r.fields.MoveBefore(to, from); err != nil {
		return false
	}
	r.fields.Delete(from)
	return true
}

// GetString returns the value as a string, or def when it is missing or not
// a string or number.
func (r *Record) GetString(key, def string) string {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	return asString(v, def)
}

func asString(v any, def string) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return def
	}
}

// GetInt64 returns the value as an integer, or def when it cannot be read as one
func (r *Record) GetInt64(key string, def int64) int64 {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	n, ok := asInt64(v)
	if !ok {
		return def
	}
	return n
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// GetBool returns the value as a bool, or def
func (r *Record) GetBool(key string, def bool) bool {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// GetRecord returns the nested object stored under key, or nil
func (r *Record) GetRecord(key string) *Record {
	v, ok := r.Get(key)
	if !ok {
		return nil
	}
	nested, _ := v.(*Record)
	return nested
}

// GetList returns the array stored under key, or nil
func (r *Record) GetList(key string) []any {
	v, ok := r.Get(key)
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	return list
}

// Path resolves a dotted path such as "paging.next.link". Numeric segments
// index into arrays.
func (r *Record) Path(path string) (any, bool) {
	if path == "" {
		return r, r != nil
	}
	var cur any = r
	for _, seg := range strings.Split(path, ".") {
		switch t := cur.(type) {
		case *Record:
			v, ok := t.Get(seg)
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			cur = t[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// PathString resolves path and returns it as a string, or def
func (r *Record) PathString(path, def string) string {
	v, ok := r.Path(path)
	if !ok || v == nil {
		return def
	}
	return asString(v, def)
}

// ID returns the server-assigned identifier, or "" when absent
func (r *Record) ID() string {
	return r.GetString("id", "")
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{fields: orderedmap.New[string, any](r.Len())}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out.fields.Set(pair.Key, CloneValue(pair.Value))
	}
	return out
}

// CloneValue deep-copies a decoded JSON value
func CloneValue(v any) any {
	switch t := v.(type) {
	case *Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Equal compares the encoded form of two records, key order included
func (r *Record) Equal(other *Record) bool {
	a, errA := r.MarshalJSON()
	b, errB := other.MarshalJSON()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// ToMap converts the record into plain maps, dropping key order
func (r *Record) ToMap() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, r.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = toPlain(pair.Value)
	}
	return out
}

func toPlain(v any) any {
	switch t := v.(type) {
	case *Record:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toPlain(item)
		}
		return out
	default:
		return v
	}
}

// String renders the record as compact JSON
func (r *Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid record: %v>", err)
	}
	return string(b)
}
