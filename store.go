package timetable

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Store is the composition root: it builds the configured tables and their
// series, and attaches the change hub. Like Table it is single-threaded;
// servers serialize access to it.
type Store struct {
	config   Config
	logger   *slog.Logger
	registry *Registry
	hub      *ChangeHub

	tables  map[string]*Table
	columns map[string][]string
	series  map[string]map[string]*GroupedTable
}

// Open builds a Store from cfg.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		config:   cfg,
		logger:   cfg.Logger,
		registry: cfg.Registry,
		tables:   make(map[string]*Table),
		columns:  make(map[string][]string),
		series:   make(map[string]map[string]*GroupedTable),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	if cfg.Notify.Enabled {
		s.hub = NewChangeHub(cfg.Notify, s.logger)
	}

	for _, tc := range cfg.Tables {
		if _, err := s.CreateTable(tc); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.logger.Info("store opened", "tables", len(s.tables), "notify", cfg.Notify.Enabled)
	return s, nil
}

// CreateTable adds a table and its series.
func (s *Store) CreateTable(tc TableConfig) (*Table, error) {
	if tc.Name == "" {
		return nil, fmt.Errorf("%w: table name is required", ErrInvalidConfig)
	}
	if _, ok := s.tables[tc.Name]; ok {
		return nil, fmt.Errorf("%w: table %q already exists", ErrInvalidConfig, tc.Name)
	}
	t := NewTable(WithName(tc.Name), WithKeyColumn(tc.KeyColumn), WithLogger(s.logger))
	series := make(map[string]*GroupedTable, len(tc.Series))
	for _, sc := range tc.Series {
		gen, err := sc.generator()
		if err != nil {
			return nil, fmt.Errorf("%w: table %q series %q: %v", ErrInvalidConfig, tc.Name, sc.Name, err)
		}
		specs, err := sc.aggregates(s.registry)
		if err != nil {
			return nil, fmt.Errorf("%w: table %q series %q: %v", ErrInvalidConfig, tc.Name, sc.Name, err)
		}
		g, err := t.Group(gen, specs...)
		if err != nil {
			return nil, fmt.Errorf("table %q series %q: %w", tc.Name, sc.Name, err)
		}
		series[sc.Name] = g
	}
	if s.hub != nil {
		t.Observe(s.hub)
	}
	s.tables[tc.Name] = t
	s.columns[tc.Name] = slices.Clone(tc.Columns)
	s.series[tc.Name] = series
	return t, nil
}

// Table returns the named table.
func (s *Store) Table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrUnknownTable)
	}
	return t, nil
}

// Tables returns the table names in sorted order.
func (s *Store) Tables() []string {
	return slices.Sorted(maps.Keys(s.tables))
}

// Columns returns the declared record columns of a table.
func (s *Store) Columns(table string) []string {
	return slices.Clone(s.columns[table])
}

// Series returns a configured series of a table.
func (s *Store) Series(table, name string) (*GroupedTable, error) {
	if _, err := s.Table(table); err != nil {
		return nil, err
	}
	g, ok := s.series[table][name]
	if !ok {
		return nil, fmt.Errorf("table %q series %q: %w", table, name, ErrUnknownSeries)
	}
	return g, nil
}

// SeriesNames returns the series of a table in sorted order.
func (s *Store) SeriesNames(table string) []string {
	return slices.Sorted(maps.Keys(s.series[table]))
}

// Hub returns the change hub, or nil when notification is disabled.
func (s *Store) Hub() *ChangeHub { return s.hub }

// Registry returns the series type registry.
func (s *Store) Registry() *Registry { return s.registry }

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config { return s.config }

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger { return s.logger }

// Close detaches every series and closes the hub.
func (s *Store) Close() {
	for _, series := range s.series {
		for _, g := range series {
			g.Close()
		}
	}
	if s.hub != nil {
		s.hub.Close()
	}
}
