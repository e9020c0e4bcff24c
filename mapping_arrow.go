package timetable

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/chronicle-db/timetable/internal/value"
)

// ArrowKeyColumn names the key column in ToArrow output.
const ArrowKeyColumn = "key"

// ToArrow exports the mapped rows as one Arrow record: a Float64 key
// column followed by the fields in Fields() order. A field becomes Float64
// when every present value is a number and String otherwise; Missing is
// null. The caller releases the record. A nil allocator uses the Go
// allocator.
func (m *Mapping) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	for _, name := range m.names {
		if name == ArrowKeyColumn {
			return nil, fmt.Errorf("%w: field %q collides with the key column", ErrInvalidMapping, name)
		}
	}

	n := m.src.Len()
	rows := make([]MappedRow, 0, n)
	for i := 0; i < n; i++ {
		r, _ := m.src.RowAt(i)
		rows = append(rows, m.resolve(r))
	}

	fields := make([]arrow.Field, 0, len(m.names)+1)
	fields = append(fields, arrow.Field{Name: ArrowKeyColumn, Type: arrow.PrimitiveTypes.Float64})
	numeric := make([]bool, len(m.names))
	for j, name := range m.names {
		numeric[j] = allNumbers(rows, name)
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if numeric[j] {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields = append(fields, arrow.Field{Name: name, Type: typ, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	keys := b.Field(0).(*array.Float64Builder)
	for _, r := range rows {
		keys.Append(r.Key)
	}
	for j, name := range m.names {
		fb := b.Field(j + 1)
		for _, r := range rows {
			v := r.Get(name)
			if v.IsMissing() {
				fb.AppendNull()
				continue
			}
			if numeric[j] {
				f, _ := v.Float()
				fb.(*array.Float64Builder).Append(f)
			} else {
				fb.(*array.StringBuilder).Append(v.String())
			}
		}
	}
	return b.NewRecord(), nil
}

func allNumbers(rows []MappedRow, name string) bool {
	for _, r := range rows {
		v := r.Get(name)
		if !v.IsMissing() && v.Kind() != value.KindNumber {
			return false
		}
	}
	return true
}
