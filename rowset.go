package timetable

import (
	"math"
	"slices"
	"sort"
)

// rowSet is a slice of rows in strictly increasing key order. Tables and
// grouped tables share its search and index math.
type rowSet []Row

func compareRows(a, b Row) int {
	switch {
	case a.Key < b.Key:
		return -1
	case a.Key > b.Key:
		return 1
	}
	return 0
}

// lowerBound returns the first position whose key is >= k.
func (s rowSet) lowerBound(k Key) int {
	return sort.Search(len(s), func(i int) bool { return s[i].Key >= k })
}

// upperBound returns the first position whose key is > k.
func (s rowSet) upperBound(k Key) int {
	return sort.Search(len(s), func(i int) bool { return s[i].Key > k })
}

// search returns the row with the greatest key <= k.
func (s rowSet) search(k Key) (Row, bool) {
	i := s.upperBound(k) - 1
	if i < 0 {
		return Row{}, false
	}
	return s[i], true
}

func (s rowSet) at(i int) (Row, bool) {
	if i < 0 || i >= len(s) {
		return Row{}, false
	}
	return s[i], true
}

// keyByIndex maps a fractional position to a key, interpolating between
// neighbours and extrapolating past either end with the spacing of the
// nearest pair.
func (s rowSet) keyByIndex(idx float64) (Key, bool) {
	n := len(s)
	if n == 0 || math.IsNaN(idx) {
		return math.NaN(), false
	}
	if n == 1 {
		return s[0].Key, true
	}
	last := float64(n - 1)
	switch {
	case idx < 0:
		return s[0].Key + idx*(s[1].Key-s[0].Key), true
	case idx >= last:
		return s[n-1].Key + (idx-last)*(s[n-1].Key-s[n-2].Key), true
	}
	f := math.Floor(idx)
	i := int(f)
	return s[i].Key + (idx-f)*(s[i+1].Key-s[i].Key), true
}

// indexByKey is the inverse of keyByIndex.
func (s rowSet) indexByKey(k Key) (float64, bool) {
	n := len(s)
	if n == 0 || math.IsNaN(k) {
		return math.NaN(), false
	}
	if n == 1 {
		return 0, true
	}
	first, last := s[0].Key, s[n-1].Key
	switch {
	case k < first:
		return (k - first) / (s[1].Key - first), true
	case k > last:
		return float64(n-1) + (k-last)/(last-s[n-2].Key), true
	}
	i := s.upperBound(k) - 1
	if s[i].Key == k || i == n-1 {
		return float64(i), true
	}
	return float64(i) + (k-s[i].Key)/(s[i+1].Key-s[i].Key), true
}

// sortBatch returns the batch ordered by key with equal keys collapsed to
// the entry that came last.
func sortBatch(rows []Row) []Row {
	batch := slices.Clone(rows)
	if !slices.IsSortedFunc(batch, compareRows) {
		slices.SortStableFunc(batch, compareRows)
	}
	out := batch[:0]
	for _, r := range batch {
		if n := len(out); n > 0 && out[n-1].Key == r.Key {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

// merge folds a sorted, duplicate-free batch into s. Equal keys replace the
// stored row. A batch that starts after the last stored key is appended
// without touching existing rows.
func (s rowSet) merge(batch []Row) (out rowSet, inserted, replaced int) {
	if len(batch) == 0 {
		return s, 0, 0
	}
	if len(s) == 0 || batch[0].Key > s[len(s)-1].Key {
		return append(s, batch...), len(batch), 0
	}

	pos := s.lowerBound(batch[0].Key)
	tail := slices.Clone(s[pos:])
	out = s[:pos]
	i, j := 0, 0
	for i < len(tail) && j < len(batch) {
		switch {
		case tail[i].Key < batch[j].Key:
			out = append(out, tail[i])
			i++
		case tail[i].Key > batch[j].Key:
			out = append(out, batch[j])
			inserted++
			j++
		default:
			out = append(out, batch[j])
			replaced++
			i++
			j++
		}
	}
	out = append(out, tail[i:]...)
	out = append(out, batch[j:]...)
	inserted += len(batch) - j
	return out, inserted, replaced
}

// truncateFrom drops every row with key >= k.
func (s rowSet) truncateFrom(k Key) (rowSet, int) {
	pos := s.lowerBound(k)
	removed := len(s) - pos
	clear(s[pos:])
	return s[:pos], removed
}

// removeRange drops rows with from <= key < to.
func (s rowSet) removeRange(from, to Key) (rowSet, int) {
	if !(from < to) {
		return s, 0
	}
	lo, hi := s.lowerBound(from), s.lowerBound(to)
	if lo >= hi {
		return s, 0
	}
	return slices.Delete(s, lo, hi), hi - lo
}

// sameKeys reports whether two sets hold the same key sequence.
func sameKeys(a, b rowSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key {
			return false
		}
	}
	return true
}
