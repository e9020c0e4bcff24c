package feed

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/influxdata/influxdb/models"

	"github.com/chronicle-db/timetable/internal/value"
)

// LineProtocolOptions lays InfluxDB line protocol points out as records.
type LineProtocolOptions struct {
	// Columns names the record columns. Tags and fields land in the column
	// of the same name; others are dropped.
	Columns []string
	// KeyColumn receives the point timestamp in Unix milliseconds.
	KeyColumn int
	// Measurement, when set, keeps only points of that measurement.
	Measurement string
	// Precision is the timestamp unit: "ns" (default), "us", "ms" or "s".
	Precision string
}

// DecodeLineProtocol parses line protocol into records. Malformed lines are
// reported in the error while the records of the valid lines are still
// returned.
func DecodeLineProtocol(r io.Reader, opts LineProtocolOptions) ([][]value.Value, error) {
	if opts.KeyColumn < 0 || opts.KeyColumn >= len(opts.Columns) {
		return nil, fmt.Errorf("line protocol: key column %d outside %d columns", opts.KeyColumn, len(opts.Columns))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("line protocol: %w", err)
	}
	precision := opts.Precision
	if precision == "" {
		precision = "ns"
	}
	var errs []error
	points, err := models.ParsePointsWithPrecision(data, time.Now().UTC(), precision)
	if err != nil {
		errs = append(errs, fmt.Errorf("error parsing line: %w", err))
	}

	index := make(map[string]int, len(opts.Columns))
	for i, c := range opts.Columns {
		index[c] = i
	}
	records := make([][]value.Value, 0, len(points))
	for _, p := range points {
		if opts.Measurement != "" && string(p.Name()) != opts.Measurement {
			continue
		}
		fields, err := p.Fields()
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting fields: %w", err))
			continue
		}
		rec := make([]value.Value, len(opts.Columns))
		for _, t := range p.Tags() {
			if i, ok := index[string(t.Key)]; ok {
				rec[i] = value.String(string(t.Value))
			}
		}
		for k, v := range fields {
			if i, ok := index[k]; ok {
				rec[i] = value.Of(v)
			}
		}
		rec[opts.KeyColumn] = value.Number(float64(p.UnixNano()) / float64(time.Millisecond))
		records = append(records, rec)
	}
	return records, errors.Join(errs...)
}
