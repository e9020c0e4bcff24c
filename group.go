package timetable

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/go-faster/city"

	"github.com/chronicle-db/timetable/internal/aggregate"
)

// AggregateSpec describes one output column of a grouped table.
type AggregateSpec struct {
	Name   string
	Column int
	Kind   AggregateKind
	// WeightColumn supplies per-row weights; nil weighs every row 1.
	// Only WeightedAverage reads it.
	WeightColumn *int
}

// NewAggregate returns an unweighted aggregate spec.
func NewAggregate(name string, kind AggregateKind, column int) AggregateSpec {
	return AggregateSpec{Name: name, Column: column, Kind: kind}
}

// WeightedBy returns a copy of s reading weights from col.
func (s AggregateSpec) WeightedBy(col int) AggregateSpec {
	s.WeightColumn = &col
	return s
}

func validateAggregates(specs []AggregateSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("%w: no aggregates", ErrInvalidMapping)
	}
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		switch {
		case s.Name == "":
			return fmt.Errorf("%w: aggregate with empty name", ErrInvalidMapping)
		case seen[s.Name]:
			return fmt.Errorf("%w: duplicate aggregate %q", ErrInvalidMapping, s.Name)
		case s.Column < 0:
			return fmt.Errorf("%w: aggregate %q has column %d", ErrInvalidMapping, s.Name, s.Column)
		case s.WeightColumn != nil && *s.WeightColumn < 0:
			return fmt.Errorf("%w: aggregate %q has weight column %d", ErrInvalidMapping, s.Name, *s.WeightColumn)
		}
		seen[s.Name] = true
	}
	return nil
}

// groupHash identifies a grouping configuration: the generator's hash and
// every aggregate spec in order.
func groupHash(gen IntervalGenerator, specs []AggregateSpec) uint64 {
	buf := binary.LittleEndian.AppendUint64(nil, gen.Hash())
	for _, s := range specs {
		buf = binary.AppendUvarint(buf, uint64(len(s.Name)))
		buf = append(buf, s.Name...)
		buf = binary.AppendVarint(buf, int64(s.Column))
		weight := int64(-1)
		if s.WeightColumn != nil {
			weight = int64(*s.WeightColumn)
		}
		buf = binary.AppendVarint(buf, weight)
		buf = append(buf, byte(s.Kind))
	}
	return city.CH64(buf)
}

// cloneSpecs copies specs so later changes to the caller's weight columns
// cannot reach a cached grouping.
func cloneSpecs(specs []AggregateSpec) []AggregateSpec {
	out := slices.Clone(specs)
	for i, s := range out {
		if s.WeightColumn != nil {
			w := *s.WeightColumn
			out[i].WeightColumn = &w
		}
	}
	return out
}

// GroupedTable is a derived, read-only table with one row per non-empty
// bucket of its source. It follows the source's changes and regroups lazily
// on the next read.
type GroupedTable struct {
	table *Table
	gen   IntervalGenerator
	specs []AggregateSpec
	hash  uint64
	aggs  []*aggregate.Aggregator

	rows    rowSet
	version uint64
	dirty   bool
	closed  bool
	cancel  func()
}

// Group buckets the table's rows by gen and folds each bucket with specs.
// Grouping again with an identically configured generator and the same
// specs returns the cached GroupedTable.
func (t *Table) Group(gen IntervalGenerator, specs ...AggregateSpec) (*GroupedTable, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: nil interval generator", ErrInvalidMapping)
	}
	if err := validateAggregates(specs); err != nil {
		return nil, err
	}
	h := groupHash(gen, specs)
	if g, ok := t.groups[h]; ok {
		return g, nil
	}

	g := &GroupedTable{
		table: t,
		gen:   gen,
		specs: cloneSpecs(specs),
		hash:  h,
		aggs:  make([]*aggregate.Aggregator, len(specs)),
		dirty: true,
	}
	for i, s := range specs {
		g.aggs[i] = aggregate.New(s.Kind)
	}
	g.cancel = t.Observe(ObserverFunc(func(ChangeEvent) { g.dirty = true }))
	t.groups[h] = g
	t.logger.Debug("grouped table created", "table", t.name, "hash", h, "aggregates", len(specs))
	return g, nil
}

// Close detaches the grouped table from its source and evicts it from the
// source's cache. A closed grouped table keeps its last rows.
func (g *GroupedTable) Close() {
	if g.closed {
		return
	}
	g.sync()
	g.closed = true
	g.cancel()
	if g.table.groups[g.hash] == g {
		delete(g.table.groups, g.hash)
	}
}

// Table returns the source table.
func (g *GroupedTable) Table() *Table { return g.table }

// Hash returns the cache key of the grouping configuration.
func (g *GroupedTable) Hash() uint64 { return g.hash }

// Columns returns the aggregate names in output order.
func (g *GroupedTable) Columns() []string {
	out := make([]string, len(g.specs))
	for i, s := range g.specs {
		out[i] = s.Name
	}
	return out
}

func (g *GroupedTable) sync() {
	if g.closed || !g.dirty {
		return
	}
	g.dirty = false
	rows := g.regroup()
	if !sameKeys(g.rows, rows) {
		g.version++
	}
	g.rows = rows
}

func (g *GroupedTable) regroup() rowSet {
	src := g.table.rows
	if len(src) == 0 {
		return nil
	}
	for _, a := range g.aggs {
		a.Clear()
	}

	var out rowSet
	g.gen.SetStart(src[0].Key)
	start := g.gen.Next()
	next := g.gen.Next()
	open := false
	for _, r := range src {
		if r.Key >= next {
			if open {
				out = append(out, g.flush(start))
				open = false
			}
			start, next = next, g.gen.Next()
			if r.Key >= next {
				// Skip the gap in one step.
				g.gen.SetStart(r.Key)
				start = g.gen.Next()
				next = g.gen.Next()
			}
		}
		for i, s := range g.specs {
			w := 1.0
			if s.WeightColumn != nil {
				var ok bool
				if w, ok = r.Field(*s.WeightColumn).Numeric(); !ok {
					w = math.NaN()
				}
			}
			g.aggs[i].Process(r.Field(s.Column), w)
		}
		open = true
	}
	if open {
		out = append(out, g.flush(start))
	}
	return out
}

func (g *GroupedTable) flush(start Key) Row {
	fields := make([]Value, len(g.aggs))
	for i, a := range g.aggs {
		fields[i] = a.Value()
		a.Clear()
	}
	return Row{Key: start, fields: fields}
}

// Len returns the number of buckets.
func (g *GroupedTable) Len() int {
	g.sync()
	return len(g.rows)
}

// RowAt returns bucket i.
func (g *GroupedTable) RowAt(i int) (Row, bool) {
	g.sync()
	return g.rows.at(i)
}

// Storage returns a snapshot of the buckets in key order.
func (g *GroupedTable) Storage() []Row {
	g.sync()
	return slices.Clone(g.rows)
}

// Rows iterates the buckets in key order.
func (g *GroupedTable) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		g.sync()
		rows := g.rows
		for i, r := range rows {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Search returns the bucket with the greatest key <= k.
func (g *GroupedTable) Search(k Key) (Row, bool) {
	g.sync()
	return g.rows.search(k)
}

// KeyByIndex maps a fractional bucket position to a key.
func (g *GroupedTable) KeyByIndex(idx float64) (Key, bool) {
	g.sync()
	return g.rows.keyByIndex(idx)
}

// IndexByKey maps a key to a fractional bucket position.
func (g *GroupedTable) IndexByKey(k Key) (float64, bool) {
	g.sync()
	return g.rows.indexByKey(k)
}

// Version changes only when the sequence of bucket keys changes.
func (g *GroupedTable) Version() uint64 {
	g.sync()
	return g.version
}

// MapAs binds a column spec to the buckets; column i is aggregate i.
func (g *GroupedTable) MapAs(spec ColumnSpec) (*Mapping, error) {
	return newMapping(g, spec)
}

// MapAll maps every aggregate under its own name.
func (g *GroupedTable) MapAll() (*Mapping, error) {
	spec := make(ColumnSpec, len(g.specs))
	for i, s := range g.specs {
		spec[s.Name] = Col(i)
	}
	return newMapping(g, spec)
}
