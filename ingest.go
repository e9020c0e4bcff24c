package timetable

import (
	"errors"
	"fmt"
	"io"

	"github.com/chronicle-db/timetable/internal/feed"
)

// LineProtocolOptions selects points from a line protocol feed.
type LineProtocolOptions struct {
	// Measurement keeps only points of that measurement when set.
	Measurement string
	// Precision is the timestamp unit: "ns" (default), "us", "ms" or "s".
	Precision string
}

// IngestNDJSON decodes newline-delimited JSON records into a table. Object
// lines are laid out by the table's declared columns. Records decoded
// before a malformed line are still applied; the decode error is returned
// alongside any rejected keys.
func (s *Store) IngestNDJSON(table string, r io.Reader) (int, error) {
	t, err := s.Table(table)
	if err != nil {
		return 0, err
	}
	records, decErr := feed.DecodeNDJSON(r, s.columns[table])
	n, err := t.AddRecords(records)
	return n, errors.Join(decErr, err)
}

// IngestLineProtocol decodes InfluxDB line protocol into a table. Tags and
// fields land in the declared column of the same name; the timestamp goes
// to the key column. Valid lines are applied even when others fail to
// parse; the parse error is returned alongside any rejected keys.
func (s *Store) IngestLineProtocol(table string, r io.Reader, opts LineProtocolOptions) (int, error) {
	t, err := s.Table(table)
	if err != nil {
		return 0, err
	}
	records, decErr := feed.DecodeLineProtocol(r, feed.LineProtocolOptions{
		Columns:     s.columns[table],
		KeyColumn:   t.KeyColumn(),
		Measurement: opts.Measurement,
		Precision:   opts.Precision,
	})
	n, err := t.AddRecords(records)
	return n, errors.Join(decErr, err)
}

// IngestPromWrite decodes a Prometheus remote-write body. Each series goes
// to the table named after its metric as [timestamp_ms, value] records.
// Series without a table are skipped and counted in the result.
func (s *Store) IngestPromWrite(body []byte) (PromWriteResult, error) {
	series, err := feed.DecodePromWrite(body)
	if err != nil {
		return PromWriteResult{}, err
	}
	var res PromWriteResult
	var errs []error
	for _, ps := range series {
		t, ok := s.tables[ps.Metric]
		if !ok {
			res.Skipped += len(ps.Records)
			s.logger.Debug("remote write for unknown table", "metric", ps.Metric, "samples", len(ps.Records))
			continue
		}
		n, err := t.AddRecords(ps.Records)
		res.Applied += n
		if err != nil {
			errs = append(errs, fmt.Errorf("metric %q: %w", ps.Metric, err))
		}
	}
	if res.Skipped > 0 {
		s.logger.Warn("remote write samples without a table", "skipped", res.Skipped)
	}
	return res, errors.Join(errs...)
}

// PromWriteResult counts the samples of a remote-write request.
type PromWriteResult struct {
	Applied int
	Skipped int
}
