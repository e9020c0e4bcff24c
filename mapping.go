package timetable

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FieldSpec binds an output field to source columns or to an expression.
type FieldSpec struct {
	// Columns lists source column indices. With more than one, the first
	// non-missing value wins.
	Columns []int
	// Expr computes the field from the row's column-bound fields, for
	// example "(high + low) / 2". The row key is available as "key".
	Expr string
}

// Col binds a field to one or more columns.
func Col(indices ...int) FieldSpec {
	return FieldSpec{Columns: indices}
}

// Computed binds a field to an expression.
func Computed(code string) FieldSpec {
	return FieldSpec{Expr: code}
}

// ColumnSpec maps output field names to their bindings.
type ColumnSpec map[string]FieldSpec

// KeyIndexTransformer converts between fractional row positions and keys.
// Positions between rows interpolate linearly; positions past either end
// extrapolate with the spacing of the nearest pair. Both report false when
// there are no rows.
type KeyIndexTransformer interface {
	KeyByIndex(idx float64) (Key, bool)
	IndexByKey(k Key) (float64, bool)
}

var (
	_ KeyIndexTransformer = (*Table)(nil)
	_ KeyIndexTransformer = (*GroupedTable)(nil)
	_ KeyIndexTransformer = (*Mapping)(nil)
)

// source is what a Mapping reads from: a Table or a GroupedTable.
type source interface {
	KeyIndexTransformer
	Len() int
	RowAt(i int) (Row, bool)
	Version() uint64
}

// MappedRow is one row seen through a Mapping.
type MappedRow struct {
	Key    Key
	Values map[string]Value
}

// Get returns the named field, or Missing when it is not bound.
func (r MappedRow) Get(name string) Value {
	if v, ok := r.Values[name]; ok {
		return v
	}
	return Missing
}

// Mapping is a named-field view over a source. It does not copy rows. A
// Mapping is bound to the source's structural version; once the source
// gains or loses rows every read fails with *StaleViewError until Refresh.
type Mapping struct {
	src     source
	version uint64

	names    []string
	columns  map[string][]int
	computed map[string]*vm.Program
}

func newMapping(src source, spec ColumnSpec) (*Mapping, error) {
	if len(spec) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidMapping)
	}
	m := &Mapping{
		src:      src,
		names:    slices.Sorted(maps.Keys(spec)),
		columns:  make(map[string][]int),
		computed: make(map[string]*vm.Program),
	}
	for _, name := range m.names {
		fs := spec[name]
		switch {
		case name == "":
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidMapping)
		case fs.Expr != "" && len(fs.Columns) > 0:
			return nil, fmt.Errorf("%w: field %q has both columns and an expression", ErrInvalidMapping, name)
		case fs.Expr != "":
			prog, err := expr.Compile(fs.Expr, expr.AllowUndefinedVariables())
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidMapping, name, err)
			}
			m.computed[name] = prog
		case len(fs.Columns) == 0:
			return nil, fmt.Errorf("%w: field %q binds nothing", ErrInvalidMapping, name)
		default:
			m.columns[name] = slices.Clone(fs.Columns)
		}
	}
	m.version = src.Version()
	return m, nil
}

// Fields returns the bound field names in sorted order.
func (m *Mapping) Fields() []string { return slices.Clone(m.names) }

// Refresh rebinds the mapping to the source's current version.
func (m *Mapping) Refresh() { m.version = m.src.Version() }

func (m *Mapping) check() error {
	if cur := m.src.Version(); cur != m.version {
		return &StaleViewError{Bound: m.version, Current: cur}
	}
	return nil
}

// Len returns the number of rows in the source.
func (m *Mapping) Len() (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	return m.src.Len(), nil
}

// Row returns row i with its fields resolved.
func (m *Mapping) Row(i int) (MappedRow, error) {
	if err := m.check(); err != nil {
		return MappedRow{}, err
	}
	r, ok := m.src.RowAt(i)
	if !ok {
		return MappedRow{}, fmt.Errorf("row %d out of range [0, %d)", i, m.src.Len())
	}
	return m.resolve(r), nil
}

// Rows iterates the mapped rows. If the source goes stale the sequence
// yields the *StaleViewError once and ends.
func (m *Mapping) Rows() iter.Seq2[MappedRow, error] {
	return func(yield func(MappedRow, error) bool) {
		for i := 0; ; i++ {
			if err := m.check(); err != nil {
				yield(MappedRow{}, err)
				return
			}
			r, ok := m.src.RowAt(i)
			if !ok {
				return
			}
			if !yield(m.resolve(r), nil) {
				return
			}
		}
	}
}

// KeyByIndex forwards to the source.
func (m *Mapping) KeyByIndex(idx float64) (Key, bool) { return m.src.KeyByIndex(idx) }

// IndexByKey forwards to the source.
func (m *Mapping) IndexByKey(k Key) (float64, bool) { return m.src.IndexByKey(k) }

func (m *Mapping) resolve(r Row) MappedRow {
	out := MappedRow{Key: r.Key, Values: make(map[string]Value, len(m.names))}
	for name, cols := range m.columns {
		v := Missing
		for _, c := range cols {
			if f := r.Field(c); !f.IsMissing() {
				v = f
				break
			}
		}
		out.Values[name] = v
	}
	if len(m.computed) == 0 {
		return out
	}

	env := make(map[string]any, len(out.Values)+1)
	for name, v := range out.Values {
		if f, ok := v.Numeric(); ok {
			env[name] = f
		} else if !v.IsMissing() {
			env[name] = v.Any()
		}
	}
	if _, ok := env["key"]; !ok {
		env["key"] = r.Key
	}
	for name, prog := range m.computed {
		res, err := expr.Run(prog, env)
		if err != nil {
			out.Values[name] = Missing
			continue
		}
		out.Values[name] = ValueOf(res)
	}
	return out
}
