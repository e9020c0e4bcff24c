package timetable

import (
	"github.com/chronicle-db/timetable/internal/aggregate"
	"github.com/chronicle-db/timetable/internal/interval"
	"github.com/chronicle-db/timetable/internal/value"
)

// Aliases exposing the internal leaf packages under the root API.
//
// Value, the aggregator kinds and the interval generators live in internal
// packages so the feed decoders and the aggregators can share them without
// importing the table; the root re-exports what callers need.

// Value is a dynamically typed cell: a number, a string, a list, or Missing.
type Value = value.Value

// Missing is the "no data" marker. It is neither zero nor the empty string.
var Missing = value.Missing

// Number returns a numeric Value.
func Number(f float64) Value { return value.Number(f) }

// String returns a string Value.
func String(s string) Value { return value.String(s) }

// ValueOf converts a plain Go value (numbers, strings, bools, nil).
func ValueOf(v any) Value { return value.Of(v) }

// Record builds a raw record from plain Go values.
func Record(vs ...any) []Value { return value.Record(vs...) }

// AggregateKind selects the fold applied by an aggregator.
type AggregateKind = aggregate.Kind

const (
	AggFirst           = aggregate.First
	AggFirstValue      = aggregate.FirstValue
	AggLast            = aggregate.Last
	AggLastValue       = aggregate.LastValue
	AggSum             = aggregate.Sum
	AggList            = aggregate.List
	AggMin             = aggregate.Min
	AggMax             = aggregate.Max
	AggAverage         = aggregate.Average
	AggWeightedAverage = aggregate.WeightedAverage
)

// ParseAggregateKind resolves an aggregate kind by name ("first", "sum", ...).
func ParseAggregateKind(name string) (AggregateKind, error) {
	return aggregate.ParseKind(name)
}

// IntervalGenerator produces the bucket boundaries used by Table.Group.
type IntervalGenerator = interval.Generator

// IntervalUnit is a calendar unit for CalendarInterval.
type IntervalUnit = interval.Unit

const (
	Millisecond = interval.Millisecond
	Second      = interval.Second
	Minute      = interval.Minute
	Hour        = interval.Hour
	Day         = interval.Day
	Week        = interval.Week
	Month       = interval.Month
	Quarter     = interval.Quarter
	Year        = interval.Year
)

// FixedInterval returns boundaries every width keys, aligned to origin.
func FixedInterval(width, origin float64) IntervalGenerator {
	return interval.Fixed(width, origin)
}

// CalendarInterval returns UTC calendar boundaries over Unix-millisecond keys.
func CalendarInterval(unit IntervalUnit, count int) IntervalGenerator {
	return interval.Calendar(unit, count)
}

// ParseInterval parses spans like "5m", "1h", "1d", "1w", "1M", "1y".
func ParseInterval(span string) (IntervalGenerator, error) {
	return interval.Parse(span)
}
