// Package feed decodes external wire formats into raw records: slices of
// values laid out in a table's column order.
package feed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/go-faster/jx"

	"github.com/chronicle-db/timetable/internal/value"
)

const maxLineBytes = 10 << 20

// DecodeNDJSON reads newline-delimited JSON. A line holding an array is a
// record in column order; a line holding an object is laid out by columns,
// and keys outside columns are an error. Blank lines are skipped. On a
// malformed line the records decoded so far are returned with the error.
func DecodeNDJSON(r io.Reader, columns []string) ([][]value.Value, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var records [][]value.Value
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := decodeLine(b, columns, index)
		if err != nil {
			return records, fmt.Errorf("ndjson line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("ndjson: %w", err)
	}
	return records, nil
}

func decodeLine(b []byte, columns []string, index map[string]int) ([]value.Value, error) {
	d := jx.DecodeBytes(b)
	switch d.Next() {
	case jx.Array:
		var rec []value.Value
		err := d.Arr(func(d *jx.Decoder) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			rec = append(rec, v)
			return nil
		})
		return rec, err
	case jx.Object:
		if len(columns) == 0 {
			return nil, fmt.Errorf("object record without column names")
		}
		rec := make([]value.Value, len(columns))
		err := d.Obj(func(d *jx.Decoder, key string) error {
			i, ok := index[key]
			if !ok {
				return fmt.Errorf("field %s not found", key)
			}
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			rec[i] = v
			return nil
		})
		return rec, err
	default:
		return nil, fmt.Errorf("expected array or object, got %s", d.Next())
	}
}

func decodeValue(d *jx.Decoder) (value.Value, error) {
	switch d.Next() {
	case jx.Number:
		f, err := d.Float64()
		if err != nil {
			return value.Missing, err
		}
		return value.Number(f), nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return value.Missing, err
		}
		return value.String(s), nil
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return value.Missing, err
		}
		return value.Of(b), nil
	case jx.Null:
		return value.Missing, d.Null()
	case jx.Array:
		var items []value.Value
		err := d.Arr(func(d *jx.Decoder) error {
			v, err := decodeValue(d)
			if err != nil {
				return err
			}
			items = append(items, v)
			return nil
		})
		return value.List(items), err
	default:
		return value.Missing, fmt.Errorf("unsupported value type %s", d.Next())
	}
}
