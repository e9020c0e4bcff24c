// Package testutil provides shared test helpers for timetable packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chronicle-db/timetable/internal/value"
)

// KeyRecords returns one [key, 1] record per key, the shape grouping tests
// feed into Sum aggregates.
func KeyRecords(keys ...float64) [][]value.Value {
	out := make([][]value.Value, len(keys))
	for i, k := range keys {
		out[i] = []value.Value{value.Number(k), value.Number(1)}
	}
	return out
}

// Range returns the keys from, from+1, ..., to-1.
func Range(from, to int) []float64 {
	out := make([]float64, 0, max(to-from, 0))
	for k := from; k < to; k++ {
		out = append(out, float64(k))
	}
	return out
}

// InDelta fails the test when got and want differ by more than 1e-9.
func InDelta(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// WriteConfig writes a config file into a temporary directory and returns
// its path. The directory is cleaned up when the test completes.
func WriteConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timetable.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
