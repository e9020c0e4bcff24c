package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/spf13/cobra"

	"github.com/chronicle-db/timetable"
)

const (
	adhocTable  = "input"
	adhocSeries = "series"
)

var groupCmd = &cobra.Command{
	Use:   "group [flags] [file]",
	Short: "Group a record feed and print the series as JSON lines.",
	Long: `Group reads NDJSON or line protocol records from a file (or stdin) and
prints one JSON object per bucket.

Either name a configured series with --table and --series, or describe an
ad hoc grouping with --interval (or --width) and one --agg per output column:

  timetable group --interval 1h --agg high=max:2 --agg vwap=weighted_average:4:5 trades.ndjson`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGroup,
}

func init() {
	f := groupCmd.Flags()
	f.String("table", "", "configured table to load")
	f.String("series", "", "configured series to print")
	f.String("interval", "", "ad hoc bucket span, e.g. 5m, 1h, 1d, 1M")
	f.Float64("width", 0, "ad hoc fixed bucket width in key units")
	f.StringArray("agg", nil, "ad hoc aggregate as name=kind:column[:weight_column]")
	f.Int("key-column", 0, "ad hoc key column")
	f.StringSlice("columns", nil, "ad hoc column names, used to lay out object lines")
	f.String("format", "ndjson", "input format: ndjson or lineproto")
	f.String("measurement", "", "line protocol measurement to keep")
	f.String("precision", "", "line protocol timestamp precision")
	f.Bool("time", false, "add an RFC 3339 \"time\" field for each bucket key")
}

func runGroup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	table, series := getString(cmd, "table"), getString(cmd, "series")
	if table == "" {
		tc, err := adhocTableConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Tables = append(cfg.Tables, tc)
		table, series = adhocTable, adhocSeries
	} else if series == "" {
		return fmt.Errorf("--series is required with --table")
	}
	cfg.Notify.Enabled = false

	store, err := timetable.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	in := io.Reader(os.Stdin)
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var n int
	switch format := getString(cmd, "format"); format {
	case "ndjson", "json":
		n, err = store.IngestNDJSON(table, in)
	case "lineproto", "influx":
		n, err = store.IngestLineProtocol(table, in, timetable.LineProtocolOptions{
			Measurement: getString(cmd, "measurement"),
			Precision:   getString(cmd, "precision"),
		})
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		store.Logger().Warn("input partially rejected", "applied", n, "err", err)
	}
	store.Logger().Debug("input loaded", "table", table, "records", n)

	g, err := store.Series(table, series)
	if err != nil {
		return err
	}
	out := bufio.NewWriter(cmd.OutOrStdout())
	if err := printSeries(out, g, getFlag(cmd, "time")); err != nil {
		return err
	}
	return out.Flush()
}

func adhocTableConfig(cmd *cobra.Command) (timetable.TableConfig, error) {
	width, err := cmd.Flags().GetFloat64("width")
	if err != nil {
		return timetable.TableConfig{}, err
	}
	specs, err := cmd.Flags().GetStringArray("agg")
	if err != nil {
		return timetable.TableConfig{}, err
	}
	keyColumn, err := cmd.Flags().GetInt("key-column")
	if err != nil {
		return timetable.TableConfig{}, err
	}
	columns, err := cmd.Flags().GetStringSlice("columns")
	if err != nil {
		return timetable.TableConfig{}, err
	}
	if len(specs) == 0 {
		return timetable.TableConfig{}, fmt.Errorf("at least one --agg is required without --table")
	}

	sc := timetable.SeriesConfig{
		Name:     adhocSeries,
		Interval: getString(cmd, "interval"),
		Width:    width,
	}
	for _, spec := range specs {
		ac, err := parseAgg(spec)
		if err != nil {
			return timetable.TableConfig{}, err
		}
		sc.Aggregates = append(sc.Aggregates, ac)
	}
	return timetable.TableConfig{
		Name:      adhocTable,
		KeyColumn: keyColumn,
		Columns:   columns,
		Series:    []timetable.SeriesConfig{sc},
	}, nil
}

// parseAgg parses name=kind:column[:weight_column].
func parseAgg(spec string) (timetable.AggregateConfig, error) {
	name, rest, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return timetable.AggregateConfig{}, fmt.Errorf("--agg %q: want name=kind:column", spec)
	}
	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return timetable.AggregateConfig{}, fmt.Errorf("--agg %q: want name=kind:column[:weight_column]", spec)
	}
	col, err := strconv.Atoi(parts[1])
	if err != nil {
		return timetable.AggregateConfig{}, fmt.Errorf("--agg %q: column: %w", spec, err)
	}
	ac := timetable.AggregateConfig{Name: name, Kind: parts[0], Column: col}
	if len(parts) == 3 {
		w, err := strconv.Atoi(parts[2])
		if err != nil {
			return timetable.AggregateConfig{}, fmt.Errorf("--agg %q: weight column: %w", spec, err)
		}
		ac.Weight = &w
	}
	return ac, nil
}

// printSeries writes one JSON object per bucket.
func printSeries(w io.Writer, g *timetable.GroupedTable, withTime bool) error {
	columns := g.Columns()
	var e jx.Encoder
	for _, row := range g.Rows() {
		e.Reset()
		e.Obj(func(e *jx.Encoder) {
			e.Field("key", func(e *jx.Encoder) { e.Float64(row.Key) })
			if withTime {
				e.Field("time", func(e *jx.Encoder) {
					e.Str(timetable.TimeOfKey(row.Key).Format(time.RFC3339))
				})
			}
			for i, name := range columns {
				e.Field(name, func(e *jx.Encoder) { encodeValue(e, row.Field(i)) })
			}
		})
		e.RawStr("\n")
		if _, err := w.Write(e.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(e *jx.Encoder, v timetable.Value) {
	if f, ok := v.Float(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			e.Null()
			return
		}
		e.Float64(f)
		return
	}
	if s, ok := v.Str(); ok {
		e.Str(s)
		return
	}
	if v.IsMissing() {
		e.Null()
		return
	}
	e.Arr(func(e *jx.Encoder) {
		for _, item := range v.Items() {
			encodeValue(e, item)
		}
	})
}
