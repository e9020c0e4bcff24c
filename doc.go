// Package timetable keeps keyed, ordered tables of records and derives
// interval series from them.
//
// A Table holds rows sorted by a numeric key, usually Unix milliseconds.
// Writes merge batches into the table: a row whose key already exists is
// replaced, new keys are inserted in order. Writes can be grouped into a
// transaction that is applied atomically on Commit, and observers are told
// once per applied write whether the table's structure or only its values
// changed.
//
// # Basic Usage
//
//	t := timetable.NewTable(timetable.WithName("btc"))
//	_, err := t.AddRecords([][]timetable.Value{
//	    timetable.Record("2024-01-01T00:00:00Z", 100, 110, 95, 105),
//	    timetable.Record("2024-01-01T00:30:00Z", 105, 120, 101, 115),
//	})
//
// Group rows into hourly candles:
//
//	specs, _ := timetable.DefaultRegistry().Build("ohlc",
//	    map[string]int{"open": 1, "high": 2, "low": 3, "close": 4})
//	hourly, err := t.Group(timetable.CalendarInterval(timetable.Hour, 1), specs...)
//
// A GroupedTable follows its source and regroups lazily on the next read.
// Both tables can be viewed through a Mapping, which names fields, coalesces
// alternative columns and evaluates computed fields:
//
//	m, err := hourly.MapAs(timetable.ColumnSpec{
//	    "close": timetable.Col(3),
//	    "mid":   timetable.Computed("(high + low) / 2"),
//	    "high":  timetable.Col(1),
//	    "low":   timetable.Col(2),
//	})
//
// A mapping is bound to the structure it was created against and reports
// ErrStaleView once rows are inserted or removed; Refresh rebinds it.
//
// # Store
//
// Open builds tables and their named series from a Config, usually loaded
// from YAML with LoadConfig. The store ingests NDJSON, InfluxDB line protocol
// and Prometheus remote write, and publishes table changes on a ChangeHub
// that WebSocket clients can subscribe to.
//
// Tables are not safe for concurrent use. Callers that share one across
// goroutines serialize access themselves.
package timetable
