// Package interval generates the bucket boundaries used to group rows.
//
// Keys are float64. Calendar generators interpret keys as Unix milliseconds
// in UTC.
package interval

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/city"
)

// Generator produces strictly increasing boundary keys. SetStart primes it
// so that the next call to Next returns the boundary at or before the given
// key; every following Next returns the boundary after the previous one.
type Generator interface {
	SetStart(key float64)
	Next() float64
	// Hash identifies the generator configuration. Identically configured
	// generators hash equally.
	Hash() uint64
}

// Unit is a calendar unit.
type Unit uint8

const (
	Millisecond Unit = iota
	Second
	Minute
	Hour
	Day
	Week
	Month
	Quarter
	Year
)

var unitNames = [...]string{"millisecond", "second", "minute", "hour", "day", "week", "month", "quarter", "year"}

func (u Unit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return "unknown"
}

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
	msPerWeek   = 7 * msPerDay

	// 1970-01-05 was the first Monday after the epoch.
	firstMonday = 4 * msPerDay
)

const (
	tagFixed byte = iota + 1
	tagMonths
)

func hashOf(tag byte, parts ...float64) uint64 {
	buf := make([]byte, 1, 1+8*len(parts))
	buf[0] = tag
	for _, p := range parts {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p))
	}
	return city.CH64(buf)
}

// FixedGenerator emits origin + n*width.
type FixedGenerator struct {
	width  float64
	origin float64
	n      float64
}

// Fixed returns a generator of equally spaced boundaries aligned to origin.
// A non-positive or non-finite width is replaced by 1.
func Fixed(width, origin float64) *FixedGenerator {
	if !(width > 0) || math.IsInf(width, 0) {
		width = 1
	}
	if math.IsNaN(origin) || math.IsInf(origin, 0) {
		origin = 0
	}
	return &FixedGenerator{width: width, origin: origin}
}

// Width returns the bucket width.
func (g *FixedGenerator) Width() float64 { return g.width }

func (g *FixedGenerator) SetStart(key float64) {
	g.n = math.Floor((key - g.origin) / g.width)
	// Guard against floating point putting the boundary just above key.
	if g.origin+g.n*g.width > key {
		g.n--
	}
}

func (g *FixedGenerator) Next() float64 {
	b := g.origin + g.n*g.width
	g.n++
	return b
}

func (g *FixedGenerator) Hash() uint64 {
	return hashOf(tagFixed, g.width, g.origin)
}

// MonthGenerator emits UTC month boundaries every step months, aligned to
// January 1970.
type MonthGenerator struct {
	step  int
	month int
}

func (g *MonthGenerator) SetStart(key float64) {
	t := time.UnixMilli(int64(math.Floor(key))).UTC()
	m := (t.Year()-1970)*12 + int(t.Month()) - 1
	g.month = floorDiv(m, g.step) * g.step
}

func (g *MonthGenerator) Next() float64 {
	b := time.Date(1970, time.Month(1+g.month), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	g.month += g.step
	return float64(b)
}

func (g *MonthGenerator) Hash() uint64 {
	return hashOf(tagMonths, float64(g.step))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Calendar returns a generator of UTC calendar boundaries covering count
// units each. Sub-month units reduce to fixed widths (weeks start on
// Monday); months, quarters and years step through the calendar.
func Calendar(unit Unit, count int) Generator {
	if count < 1 {
		count = 1
	}
	c := float64(count)
	switch unit {
	case Millisecond:
		return Fixed(c, 0)
	case Second:
		return Fixed(c*msPerSecond, 0)
	case Minute:
		return Fixed(c*msPerMinute, 0)
	case Hour:
		return Fixed(c*msPerHour, 0)
	case Day:
		return Fixed(c*msPerDay, 0)
	case Week:
		return Fixed(c*msPerWeek, firstMonday)
	case Quarter:
		return &MonthGenerator{step: 3 * count}
	case Year:
		return &MonthGenerator{step: 12 * count}
	default:
		return &MonthGenerator{step: count}
	}
}

var unitSuffixes = map[string]Unit{
	"ms": Millisecond,
	"s":  Second,
	"m":  Minute,
	"h":  Hour,
	"d":  Day,
	"w":  Week,
	"M":  Month,
	"q":  Quarter,
	"y":  Year,
}

// Parse builds a calendar generator from a span such as "250ms", "5m",
// "1h", "1d", "1w", "1M", "1q" or "1y". "m" is minutes and "M" is months.
func Parse(span string) (Generator, error) {
	s := strings.TrimSpace(span)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	count := 1
	if i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return nil, fmt.Errorf("interval %q: %w", span, err)
		}
		count = n
	}
	unit, ok := unitSuffixes[s[i:]]
	if !ok || count < 1 {
		return nil, fmt.Errorf("invalid interval %q", span)
	}
	return Calendar(unit, count), nil
}
