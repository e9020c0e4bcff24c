package timetable

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines a Store: logging, change notification, the HTTP server and
// the tables with their series.
type Config struct {
	// Log configures the logger the CLI builds.
	Log LogConfig `yaml:"log"`

	// Notify configures the change hub that fans table changes out to
	// subscribers.
	Notify NotifyConfig `yaml:"notify"`

	// Server configures the HTTP ingest and query server.
	Server ServerConfig `yaml:"server"`

	// Tables declares the tables to create.
	Tables []TableConfig `yaml:"tables"`

	// Logger is used by the Store and its tables. Default: slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// Registry resolves series types. Default: DefaultRegistry().
	Registry *Registry `yaml:"-"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level"`
	// Format is text or json. Default: text.
	Format string `yaml:"format"`
}

// NotifyConfig configures the change hub.
type NotifyConfig struct {
	// Enabled turns the hub on.
	Enabled bool `yaml:"enabled"`
	// BufferSize is the channel buffer per subscription. Events beyond it
	// are dropped for that subscriber.
	BufferSize int `yaml:"buffer_size"`
	// PingInterval is how often WebSocket clients are pinged.
	PingInterval time.Duration `yaml:"ping_interval"`
	// WriteTimeout bounds each WebSocket write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8086".
	Addr string `yaml:"addr"`
	// MaxBodyBytes caps request bodies. Default: 10MB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TableConfig declares one table.
type TableConfig struct {
	Name string `yaml:"name"`
	// KeyColumn is the record column holding the key.
	KeyColumn int `yaml:"key_column"`
	// Columns names the record columns, in order. Feeds that carry named
	// fields (NDJSON objects, line protocol) use it to lay out records.
	Columns []string `yaml:"columns"`
	// Series declares grouped views of the table.
	Series []SeriesConfig `yaml:"series"`
}

// SeriesConfig declares one grouped view. Either Type (a registered series
// type plus its Columns) or Aggregates must be set.
type SeriesConfig struct {
	Name string `yaml:"name"`
	// Interval is a span accepted by ParseInterval, e.g. "1h" or "1M".
	Interval string `yaml:"interval"`
	// Width and Origin define a fixed interval over raw keys when Interval
	// is empty.
	Width  float64 `yaml:"width"`
	Origin float64 `yaml:"origin"`

	Type    string         `yaml:"type"`
	Columns map[string]int `yaml:"columns"`

	Aggregates []AggregateConfig `yaml:"aggregates"`
}

// AggregateConfig declares one aggregate of a series.
type AggregateConfig struct {
	Name   string `yaml:"name"`
	Column int    `yaml:"column"`
	Kind   string `yaml:"kind"`
	// Weight is the weight column for weighted_average.
	Weight *int `yaml:"weight"`
}

// DefaultConfig returns a configuration with sensible defaults and no
// tables.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Notify: NotifyConfig{
			Enabled:      true,
			BufferSize:   256,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8086",
			MaxBodyBytes:    10 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// LoadConfig reads a YAML config file over DefaultConfig and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration. Errors match ErrInvalidConfig.
func (c Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Notify.BufferSize < 0 {
		return fmt.Errorf("%w: notify buffer_size must not be negative", ErrInvalidConfig)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: server max_body_bytes must not be negative", ErrInvalidConfig)
	}

	reg := c.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	tables := make(map[string]bool, len(c.Tables))
	for i, tc := range c.Tables {
		if tc.Name == "" {
			return fmt.Errorf("%w: tables[%d] name is required", ErrInvalidConfig, i)
		}
		if tables[tc.Name] {
			return fmt.Errorf("%w: duplicate table %q", ErrInvalidConfig, tc.Name)
		}
		tables[tc.Name] = true
		if tc.KeyColumn < 0 || (len(tc.Columns) > 0 && tc.KeyColumn >= len(tc.Columns)) {
			return fmt.Errorf("%w: table %q key_column %d out of range", ErrInvalidConfig, tc.Name, tc.KeyColumn)
		}
		series := make(map[string]bool, len(tc.Series))
		for j, sc := range tc.Series {
			if sc.Name == "" {
				return fmt.Errorf("%w: table %q series[%d] name is required", ErrInvalidConfig, tc.Name, j)
			}
			if series[sc.Name] {
				return fmt.Errorf("%w: table %q has duplicate series %q", ErrInvalidConfig, tc.Name, sc.Name)
			}
			series[sc.Name] = true
			if _, err := sc.generator(); err != nil {
				return fmt.Errorf("%w: table %q series %q: %v", ErrInvalidConfig, tc.Name, sc.Name, err)
			}
			if _, err := sc.aggregates(reg); err != nil {
				return fmt.Errorf("%w: table %q series %q: %v", ErrInvalidConfig, tc.Name, sc.Name, err)
			}
		}
	}
	return nil
}

func (s SeriesConfig) generator() (IntervalGenerator, error) {
	if s.Interval != "" {
		return ParseInterval(s.Interval)
	}
	if s.Width > 0 {
		return FixedInterval(s.Width, s.Origin), nil
	}
	return nil, fmt.Errorf("interval or width is required")
}

func (s SeriesConfig) aggregates(reg *Registry) ([]AggregateSpec, error) {
	switch {
	case s.Type != "" && len(s.Aggregates) > 0:
		return nil, fmt.Errorf("type and aggregates are mutually exclusive")
	case s.Type != "":
		return reg.Build(s.Type, s.Columns)
	case len(s.Aggregates) == 0:
		return nil, fmt.Errorf("type or aggregates is required")
	}
	specs := make([]AggregateSpec, 0, len(s.Aggregates))
	for _, a := range s.Aggregates {
		kind, err := ParseAggregateKind(a.Kind)
		if err != nil {
			return nil, err
		}
		spec := NewAggregate(a.Name, kind, a.Column)
		if a.Weight != nil {
			spec = spec.WeightedBy(*a.Weight)
		}
		specs = append(specs, spec)
	}
	if err := validateAggregates(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
}

// NewLogger builds a slog logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
