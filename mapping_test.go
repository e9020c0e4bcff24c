package timetable

import (
	"errors"
	"slices"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func candleTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable()
	_, err := tbl.AddRecords([][]Value{
		Record(1, 10, 12, 8, nil),
		Record(2, 11, 15, 9, "adj"),
		Record(3, nil, 14, 10, nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestMapping_Fields(t *testing.T) {
	tbl := candleTable(t)
	m, err := tbl.MapAs(ColumnSpec{
		"open":  Col(1),
		"high":  Col(2),
		"low":   Col(3),
		"note":  Col(4),
		"first": Col(1, 3),
		"mid":   Computed("(high + low) / 2"),
		"ghost": Col(42),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Fields(); !slices.Equal(got, []string{"first", "ghost", "high", "low", "mid", "note", "open"}) {
		t.Errorf("Fields = %v", got)
	}

	tests := []struct {
		row   int
		field string
		want  Value
	}{
		{0, "open", Number(10)},
		{0, "mid", Number(10)},
		{0, "note", Missing},
		{1, "note", String("adj")},
		{2, "open", Missing},
		{2, "first", Number(10)},
		{0, "ghost", Missing},
		{0, "unbound", Missing},
	}
	for _, tt := range tests {
		row, err := m.Row(tt.row)
		if err != nil {
			t.Fatalf("Row(%d): %v", tt.row, err)
		}
		if got := row.Get(tt.field); !got.Equal(tt.want) {
			t.Errorf("row %d %s = %v, want %v", tt.row, tt.field, got, tt.want)
		}
	}

	if _, err := m.Row(3); err == nil {
		t.Error("Row(3) should be out of range")
	}
}

func TestMapping_ComputedWithMissingOperand(t *testing.T) {
	tbl := candleTable(t)
	m, err := tbl.MapAs(ColumnSpec{
		"open":   Col(1),
		"double": Computed("open * 2"),
		"at":     Computed("key"),
	})
	if err != nil {
		t.Fatal(err)
	}
	row, _ := m.Row(2)
	if got := row.Get("double"); !got.IsMissing() {
		t.Errorf("double with missing open = %v, want missing", got)
	}
	if got := row.Get("at"); !got.Equal(Number(3)) {
		t.Errorf("key = %v, want 3", got)
	}
}

func TestMapping_Invalid(t *testing.T) {
	tbl := NewTable()
	tests := []struct {
		name string
		spec ColumnSpec
	}{
		{"empty", ColumnSpec{}},
		{"nothing bound", ColumnSpec{"a": {}}},
		{"both bindings", ColumnSpec{"a": {Columns: []int{1}, Expr: "1"}}},
		{"bad expression", ColumnSpec{"a": Computed("(((")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tbl.MapAs(tt.spec); !errors.Is(err, ErrInvalidMapping) {
				t.Errorf("err = %v, want ErrInvalidMapping", err)
			}
		})
	}
}

func TestMapping_StaleAfterStructuralChange(t *testing.T) {
	tbl := candleTable(t)
	m, err := tbl.MapAs(ColumnSpec{"open": Col(1)})
	if err != nil {
		t.Fatal(err)
	}

	// Replacing a row keeps positions, so the mapping stays valid.
	_, _ = tbl.AddData([]Row{NewRow(1, Number(1), Number(99))})
	if row, err := m.Row(0); err != nil || !row.Get("open").Equal(Number(99)) {
		t.Fatalf("Row(0) after replace = %v, %v", row.Values, err)
	}

	_, _ = tbl.AddData([]Row{NewRow(0.5)})
	_, err = m.Row(0)
	if !errors.Is(err, ErrStaleView) {
		t.Fatalf("Row after insert err = %v, want ErrStaleView", err)
	}
	var sve *StaleViewError
	if !errors.As(err, &sve) || sve.Current != tbl.Version() {
		t.Errorf("StaleViewError = %+v", sve)
	}
	if _, err := m.Len(); !errors.Is(err, ErrStaleView) {
		t.Errorf("Len err = %v, want ErrStaleView", err)
	}

	m.Refresh()
	n, err := m.Len()
	if err != nil || n != 4 {
		t.Errorf("Len after Refresh = %d, %v; want 4", n, err)
	}
}

func TestMapping_RowsIterator(t *testing.T) {
	tbl := candleTable(t)
	m, _ := tbl.MapAs(ColumnSpec{"high": Col(2)})

	var highs []Value
	for row, err := range m.Rows() {
		if err != nil {
			t.Fatal(err)
		}
		highs = append(highs, row.Get("high"))
	}
	if len(highs) != 3 || !highs[1].Equal(Number(15)) {
		t.Errorf("highs = %v", highs)
	}

	_, _ = tbl.Remove(1, 2)
	var sawErr error
	for _, err := range m.Rows() {
		sawErr = err
	}
	if !errors.Is(sawErr, ErrStaleView) {
		t.Errorf("Rows on stale mapping err = %v, want ErrStaleView", sawErr)
	}
}

func TestMapping_KeyIndexForwarding(t *testing.T) {
	tbl := tableWithKeys(t, 0, 10, 20, 30)
	m, _ := tbl.MapAs(ColumnSpec{"v": Col(0)})
	if k, ok := m.KeyByIndex(1.5); !ok || k != 15 {
		t.Errorf("KeyByIndex(1.5) = %v, %v", k, ok)
	}
	if i, ok := m.IndexByKey(15); !ok || i != 1.5 {
		t.Errorf("IndexByKey(15) = %v, %v", i, ok)
	}
}

func TestMapping_ToArrow(t *testing.T) {
	tbl := candleTable(t)
	m, err := tbl.MapAs(ColumnSpec{"open": Col(1), "note": Col(4)})
	if err != nil {
		t.Fatal(err)
	}

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec, err := m.ToArrow(mem)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Release()

	if rec.NumRows() != 3 || rec.NumCols() != 3 {
		t.Fatalf("record is %dx%d, want 3x3", rec.NumRows(), rec.NumCols())
	}
	schema := rec.Schema()
	if schema.Field(0).Name != ArrowKeyColumn {
		t.Errorf("first column = %q, want key", schema.Field(0).Name)
	}
	// Fields follow Fields() order: note, open.
	if schema.Field(1).Type.ID() != arrow.STRING {
		t.Errorf("note type = %v, want string", schema.Field(1).Type)
	}
	if schema.Field(2).Type.ID() != arrow.FLOAT64 {
		t.Errorf("open type = %v, want float64", schema.Field(2).Type)
	}

	keys := rec.Column(0).(*array.Float64)
	if keys.Value(2) != 3 {
		t.Errorf("key[2] = %v, want 3", keys.Value(2))
	}
	open := rec.Column(2).(*array.Float64)
	if open.Value(0) != 10 || !open.IsNull(2) {
		t.Errorf("open = %v", open)
	}
	note := rec.Column(1).(*array.String)
	if !note.IsNull(0) || note.Value(1) != "adj" {
		t.Errorf("note = %v", note)
	}
}

func TestMapping_ToArrowStale(t *testing.T) {
	tbl := candleTable(t)
	m, _ := tbl.MapAs(ColumnSpec{"open": Col(1)})
	_, _ = tbl.AddData([]Row{NewRow(100)})
	if _, err := m.ToArrow(nil); !errors.Is(err, ErrStaleView) {
		t.Errorf("err = %v, want ErrStaleView", err)
	}
}
