package feed

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"

	"github.com/chronicle-db/timetable/internal/value"
)

// Series is one Prometheus time series from a remote-write request.
type Series struct {
	Metric string
	Labels map[string]string
	// Records holds one [timestamp_ms, value] record per sample.
	Records [][]value.Value
}

// DecodePromWrite decodes a snappy-compressed remote-write body.
func DecodePromWrite(body []byte) ([]Series, error) {
	decoded, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("remote write: %w", err)
	}
	var req prompb.WriteRequest
	if err := req.Unmarshal(decoded); err != nil {
		return nil, fmt.Errorf("remote write: %w", err)
	}
	return convertPromWrite(&req), nil
}

func convertPromWrite(req *prompb.WriteRequest) []Series {
	out := make([]Series, 0, len(req.Timeseries))
	for i := range req.Timeseries {
		ts := &req.Timeseries[i]
		s := Series{Labels: make(map[string]string)}
		for _, label := range ts.Labels {
			if label.Name == "__name__" {
				s.Metric = label.Value
			} else {
				s.Labels[label.Name] = label.Value
			}
		}
		s.Records = make([][]value.Value, 0, len(ts.Samples))
		for _, sample := range ts.Samples {
			s.Records = append(s.Records, []value.Value{
				value.Number(float64(sample.Timestamp)),
				value.Number(sample.Value),
			})
		}
		out = append(out, s)
	}
	return out
}
