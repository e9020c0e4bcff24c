package timetable

import (
	"fmt"
	"maps"
	"slices"
)

// SeriesFactory builds the aggregate specs of a series type from the
// caller's named source columns.
type SeriesFactory func(columns map[string]int) ([]AggregateSpec, error)

// Registry maps series type names to factories. It is owned by whoever
// composes the application, usually a Store.
type Registry struct {
	factories map[string]SeriesFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]SeriesFactory)}
}

// Register adds a series type. Names are unique.
func (r *Registry) Register(name string, f SeriesFactory) error {
	if name == "" || f == nil {
		return fmt.Errorf("register series %q: name and factory are required", name)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("register series %q: already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (SeriesFactory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered series types in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.factories))
}

// Build resolves a series type and applies it to columns.
func (r *Registry) Build(name string, columns map[string]int) ([]AggregateSpec, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("series type %q: %w", name, ErrUnknownSeries)
	}
	return f(columns)
}

type seriesField struct {
	name string
	kind AggregateKind
}

// fieldsFactory requires one source column per field and aggregates each
// under the field's name.
func fieldsFactory(series string, fields ...seriesField) SeriesFactory {
	return func(columns map[string]int) ([]AggregateSpec, error) {
		specs := make([]AggregateSpec, 0, len(fields))
		for _, f := range fields {
			col, ok := columns[f.name]
			if !ok {
				return nil, fmt.Errorf("series type %q needs column %q", series, f.name)
			}
			specs = append(specs, NewAggregate(f.name, f.kind, col))
		}
		return specs, nil
	}
}

// DefaultRegistry returns a registry holding the built-in series types:
// ohlc, line, column, range and marker.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	builtins := map[string][]seriesField{
		"ohlc":   {{"open", AggFirst}, {"high", AggMax}, {"low", AggMin}, {"close", AggLast}},
		"line":   {{"value", AggLast}},
		"column": {{"value", AggSum}},
		"range":  {{"high", AggMax}, {"low", AggMin}},
		"marker": {{"value", AggLastValue}},
	}
	for name, fields := range builtins {
		// Built-in names are distinct, so Register cannot fail here.
		_ = r.Register(name, fieldsFactory(name, fields...))
	}
	return r
}
