// Package movement defines the vessel movement record scraped from the harbour
// schedule table and the timestamp normalization applied to it.
package movement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is one row of the movements table keyed by the table's header labels.
// Keys keep the order in which they were first set.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty Record.
func NewRecord() Record {
	return Record{values: make(map[string]any)}
}

// Set stores value under key. A key that is already present keeps its
// position and has its value replaced.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the record's keys in order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len reports the number of keys.
func (r Record) Len() int {
	return len(r.keys)
}

// First returns the first key and its value. ok is false for an empty record.
func (r Record) First() (key string, value any, ok bool) {
	if len(r.keys) == 0 {
		return "", nil, false
	}
	key = r.keys[0]
	return key, r.values[key], true
}

// MarshalJSON encodes the record as a flat object in key order. Timestamps
// are rendered with FormatTimestamp.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(&buf, key); err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", key, err)
		}
		buf.WriteByte(':')

		value := r.values[key]
		if ts, ok := value.(time.Time); ok {
			value = FormatTimestamp(ts)
		}
		if err := encodeValue(&buf, value); err != nil {
			return nil, fmt.Errorf("marshal value for %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeValue writes v without HTML escaping so header labels such as
// "Date & Time" stay readable.
func encodeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// String is used by debug logging.
func (r Record) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", r.values)
	}
	return string(data)
}

// FormatTimestamp renders ts as ISO-8601 with a numeric UTC offset,
// e.g. 2024-01-15T09:30:00+11:00.
func FormatTimestamp(ts time.Time) string {
	return ts.Format(isoLayout)
}

// isoLayout is RFC 3339 without the "Z" shorthand for UTC.
const isoLayout = "2006-01-02T15:04:05-07:00"
