// Package aggregate implements the per-bucket reducers used when grouping
// table rows into coarser intervals.
package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/chronicle-db/timetable/internal/value"
)

// Kind selects the fold an Aggregator applies.
type Kind uint8

const (
	// First keeps the first numeric, non-NaN value.
	First Kind = iota
	// FirstValue keeps the first defined value of any type.
	FirstValue
	// Last keeps the most recent numeric, non-NaN value.
	Last
	// LastValue keeps the most recent defined value of any type.
	LastValue
	// Sum adds numeric values.
	Sum
	// List collects every defined value in order.
	List
	// Min keeps the smallest numeric value.
	Min
	// Max keeps the largest numeric value.
	Max
	// Average is the arithmetic mean of numeric values.
	Average
	// WeightedAverage is sum(v*w)/sum(w) over numeric values with a finite weight.
	WeightedAverage
)

var kindNames = [...]string{
	First:           "first",
	FirstValue:      "first_value",
	Last:            "last",
	LastValue:       "last_value",
	Sum:             "sum",
	List:            "list",
	Min:             "min",
	Max:             "max",
	Average:         "average",
	WeightedAverage: "weighted_average",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind resolves a kind by name. Names are case-insensitive and accept
// the short aliases "avg" and "wavg".
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "avg", "mean":
		return Average, nil
	case "wavg", "weighted":
		return WeightedAverage, nil
	}
	for k, s := range kindNames {
		if s == n {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate kind %q", name)
}

// Aggregator folds a stream of values for one output column of one bucket.
// The kind is fixed at construction; Clear resets the accumulator between
// buckets. Aggregators never fail: inputs a kind cannot use are skipped.
type Aggregator struct {
	kind   Kind
	count  int
	num    float64
	weight float64
	val    value.Value
	list   []value.Value
}

// New returns an empty aggregator of the given kind.
func New(kind Kind) *Aggregator {
	return &Aggregator{kind: kind}
}

// Kind returns the aggregator's kind.
func (a *Aggregator) Kind() Kind { return a.kind }

// Clear resets the accumulator.
func (a *Aggregator) Clear() {
	a.count = 0
	a.num = 0
	a.weight = 0
	a.val = value.Missing
	a.list = nil
}

// Count returns how many inputs were accepted since the last Clear.
func (a *Aggregator) Count() int { return a.count }

// Process folds v with the given weight. Only WeightedAverage uses the
// weight; callers without a weight column pass 1.
func (a *Aggregator) Process(v value.Value, weight float64) {
	switch a.kind {
	case FirstValue:
		if a.count == 0 && !v.IsMissing() {
			a.val = v
			a.count++
		}
	case LastValue:
		if !v.IsMissing() {
			a.val = v
			a.count++
		}
	case List:
		if !v.IsMissing() {
			a.list = append(a.list, v)
			a.count++
		}
	default:
		f, ok := v.Numeric()
		if !ok {
			return
		}
		a.processNumber(f, weight)
	}
}

func (a *Aggregator) processNumber(f, weight float64) {
	switch a.kind {
	case First:
		if a.count == 0 {
			a.num = f
		}
	case Last:
		a.num = f
	case Sum, Average:
		a.num += f
	case Min:
		if a.count == 0 || f < a.num {
			a.num = f
		}
	case Max:
		if a.count == 0 || f > a.num {
			a.num = f
		}
	case WeightedAverage:
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			return
		}
		a.num += f * weight
		a.weight += weight
	}
	a.count++
}

// Value returns the folded result, or value.Missing when nothing usable was
// processed.
func (a *Aggregator) Value() value.Value {
	if a.count == 0 {
		return value.Missing
	}
	switch a.kind {
	case FirstValue, LastValue:
		return a.val
	case List:
		return value.List(a.list)
	case Average:
		return value.Number(a.num / float64(a.count))
	case WeightedAverage:
		if a.weight == 0 {
			return value.Missing
		}
		return value.Number(a.num / a.weight)
	default:
		return value.Number(a.num)
	}
}
