package value

import (
	"math"
	"testing"
)

func TestNumeric(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want float64
		ok   bool
	}{
		{"number", Number(2.5), 2.5, true},
		{"numeric string", String(" 42 "), 42, true},
		{"exponent string", String("1e3"), 1000, true},
		{"nan number", Number(math.NaN()), 0, false},
		{"nan string", String("NaN"), 0, false},
		{"word", String("x"), 0, false},
		{"missing", Missing, 0, false},
		{"list", List([]Value{Number(1)}), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Numeric()
			if ok != tt.ok {
				t.Fatalf("Numeric() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Numeric() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOf(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{nil, Missing},
		{3, Number(3)},
		{int64(-7), Number(-7)},
		{float32(0.5), Number(0.5)},
		{true, Number(1)},
		{"abc", String("abc")},
		{struct{}{}, Missing},
	}

	for _, tt := range tests {
		if got := Of(tt.in); !got.Equal(tt.want) {
			t.Errorf("Of(%#v) = %v (%s), want %v (%s)", tt.in, got, got.Kind(), tt.want, tt.want.Kind())
		}
	}
}

func TestMissingIsDistinct(t *testing.T) {
	if Missing.Equal(Number(0)) {
		t.Error("missing must not equal zero")
	}
	if Missing.Equal(String("")) {
		t.Error("missing must not equal the empty string")
	}
	var zero Value
	if !zero.IsMissing() {
		t.Error("zero Value should be missing")
	}
}

func TestListIsCopied(t *testing.T) {
	src := []Value{Number(1), Number(2)}
	l := List(src)
	src[0] = Number(99)

	items := l.Items()
	if f, _ := items[0].Float(); f != 1 {
		t.Errorf("list element = %v, want 1", f)
	}
	items[1] = Missing
	if l.Items()[1].IsMissing() {
		t.Error("Items should return a copy")
	}
	if l.String() != "[1,2]" {
		t.Errorf("String() = %q, want %q", l.String(), "[1,2]")
	}
}
