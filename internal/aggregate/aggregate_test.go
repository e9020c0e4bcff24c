package aggregate

import (
	"math"
	"testing"

	"github.com/chronicle-db/timetable/internal/value"
)

func feed(a *Aggregator, vs ...value.Value) value.Value {
	a.Clear()
	for _, v := range vs {
		a.Process(v, 1)
	}
	return a.Value()
}

func TestNumericKinds(t *testing.T) {
	mixed := []value.Value{value.Number(math.NaN()), value.Number(2), value.String("x"), value.Number(5)}

	tests := []struct {
		kind Kind
		want float64
	}{
		{Sum, 7},
		{First, 2},
		{Last, 5},
		{Min, 2},
		{Max, 5},
		{Average, 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, ok := feed(New(tt.kind), mixed...).Float()
			if !ok {
				t.Fatalf("%s produced a non-number", tt.kind)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestNumericStringsAreCoerced(t *testing.T) {
	got, _ := feed(New(Sum), value.String("1.5"), value.String(" 2.5"), value.Missing).Float()
	if got != 4 {
		t.Errorf("Sum = %v, want 4", got)
	}
}

func TestValueKinds(t *testing.T) {
	in := []value.Value{value.Missing, value.String("a"), value.Number(math.NaN()), value.String("b"), value.Missing}

	if got := feed(New(FirstValue), in...); !got.Equal(value.String("a")) {
		t.Errorf("FirstValue = %v, want a", got)
	}
	if got := feed(New(LastValue), in...); !got.Equal(value.String("b")) {
		t.Errorf("LastValue = %v, want b", got)
	}
}

func TestList(t *testing.T) {
	got := feed(New(List), value.Number(1), value.Missing, value.Number(2), value.Number(3))
	items := got.Items()
	if len(items) != 3 {
		t.Fatalf("List has %d items, want 3", len(items))
	}
	for i, want := range []float64{1, 2, 3} {
		if f, _ := items[i].Float(); f != want {
			t.Errorf("items[%d] = %v, want %v", i, f, want)
		}
	}
}

func TestWeightedAverage(t *testing.T) {
	a := New(WeightedAverage)
	a.Process(value.Number(10), 1)
	a.Process(value.Number(20), 3)
	a.Process(value.Number(1000), math.NaN())

	got, _ := a.Value().Float()
	if got != 17.5 {
		t.Errorf("WeightedAverage = %v, want 17.5", got)
	}
}

func TestEmptyIsMissing(t *testing.T) {
	for k := range kindNames {
		a := New(Kind(k))
		a.Process(value.Missing, 1)
		if !a.Value().IsMissing() {
			t.Errorf("%s with no usable input = %v, want missing", Kind(k), a.Value())
		}
	}
}

func TestClearResets(t *testing.T) {
	a := New(Sum)
	a.Process(value.Number(3), 1)
	a.Clear()
	a.Process(value.Number(4), 1)
	if got, _ := a.Value().Float(); got != 4 {
		t.Errorf("Sum after Clear = %v, want 4", got)
	}
	if a.Count() != 1 {
		t.Errorf("Count = %d, want 1", a.Count())
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"first", First, false},
		{"LAST_VALUE", LastValue, false},
		{"avg", Average, false},
		{"wavg", WeightedAverage, false},
		{"median", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
