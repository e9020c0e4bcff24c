package timetable

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Key orders rows. By convention timestamps are Unix milliseconds (UTC).
type Key = float64

// Row is one key plus its field values. Rows are immutable: NewRow copies
// its input and accessors never expose the backing slice, so tables can
// hand rows out without aliasing their storage.
type Row struct {
	Key    Key
	fields []Value
}

// NewRow builds a row from a key and its fields.
func NewRow(key Key, fields ...Value) Row {
	f := make([]Value, len(fields))
	copy(f, fields)
	return Row{Key: key, fields: f}
}

// Len returns the number of fields.
func (r Row) Len() int { return len(r.fields) }

// Field returns field i, or Missing when i is out of range.
func (r Row) Field(i int) Value {
	if i < 0 || i >= len(r.fields) {
		return Missing
	}
	return r.fields[i]
}

// Fields returns a copy of the row's fields.
func (r Row) Fields() []Value {
	out := make([]Value, len(r.fields))
	copy(out, r.fields)
	return out
}

func validKey(k Key) bool {
	return !math.IsNaN(k) && !math.IsInf(k, 0)
}

var errNotAKey = errors.New("not a number or timestamp")

var keyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// KeyOf extracts a key from a value: numbers and numeric strings are used
// as-is, date and timestamp strings become Unix milliseconds.
func KeyOf(v Value) (Key, error) {
	if f, ok := v.Numeric(); ok {
		if !validKey(f) {
			return 0, errNotAKey
		}
		return f, nil
	}
	s, ok := v.Str()
	if !ok {
		return 0, errNotAKey
	}
	s = strings.TrimSpace(s)
	for _, layout := range keyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixMilli()), nil
		}
	}
	return 0, errNotAKey
}

// KeyFromTime converts a time to a Unix-millisecond key.
func KeyFromTime(t time.Time) Key {
	return float64(t.UnixMilli())
}

// TimeOfKey converts a Unix-millisecond key back to a UTC time.
func TimeOfKey(k Key) time.Time {
	return time.UnixMilli(int64(math.Floor(k))).UTC()
}
