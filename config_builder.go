package timetable

import (
	"log/slog"
	"time"
)

// ConfigBuilder provides a fluent API for constructing a [Config].
// It starts from [DefaultConfig] defaults, so only fields that differ
// from the defaults need to be set.
//
//	cfg, err := timetable.NewConfigBuilder().
//	    WithServer(":9000").
//	    WithTable(timetable.TableConfig{Name: "btc", Columns: cols}).
//	    WithSeries("btc", timetable.SeriesConfig{Name: "hourly", Type: "ohlc", Interval: "1h", Columns: ohlc}).
//	    Build()
type ConfigBuilder struct {
	cfg Config
}

// NewConfigBuilder creates a builder pre-populated with [DefaultConfig] values.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: DefaultConfig()}
}

// WithLog sets the log level and format.
func (b *ConfigBuilder) WithLog(level, format string) *ConfigBuilder {
	b.cfg.Log = LogConfig{Level: level, Format: format}
	return b
}

// WithLogger sets the logger handed to the Store.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.cfg.Logger = l
	return b
}

// WithRegistry sets the series type registry.
func (b *ConfigBuilder) WithRegistry(r *Registry) *ConfigBuilder {
	b.cfg.Registry = r
	return b
}

// WithNotify enables the change hub with the given per-subscriber buffer.
func (b *ConfigBuilder) WithNotify(bufferSize int, pingInterval time.Duration) *ConfigBuilder {
	b.cfg.Notify.Enabled = true
	b.cfg.Notify.BufferSize = bufferSize
	b.cfg.Notify.PingInterval = pingInterval
	return b
}

// WithoutNotify disables the change hub.
func (b *ConfigBuilder) WithoutNotify() *ConfigBuilder {
	b.cfg.Notify.Enabled = false
	return b
}

// WithServer sets the HTTP listen address.
func (b *ConfigBuilder) WithServer(addr string) *ConfigBuilder {
	b.cfg.Server.Addr = addr
	return b
}

// WithMaxBodyBytes caps HTTP request bodies.
func (b *ConfigBuilder) WithMaxBodyBytes(n int64) *ConfigBuilder {
	b.cfg.Server.MaxBodyBytes = n
	return b
}

// WithTable declares a table.
func (b *ConfigBuilder) WithTable(tc TableConfig) *ConfigBuilder {
	b.cfg.Tables = append(b.cfg.Tables, tc)
	return b
}

// WithSeries adds a series to a previously declared table. Unknown tables
// surface as a validation error from Build.
func (b *ConfigBuilder) WithSeries(table string, sc SeriesConfig) *ConfigBuilder {
	for i := range b.cfg.Tables {
		if b.cfg.Tables[i].Name == table {
			b.cfg.Tables[i].Series = append(b.cfg.Tables[i].Series, sc)
			return b
		}
	}
	b.cfg.Tables = append(b.cfg.Tables, TableConfig{Series: []SeriesConfig{sc}})
	return b
}

// Build validates the configuration and returns it.
// Returns an error if validation fails.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg, nil
}

// MustBuild is like [ConfigBuilder.Build] but panics on validation errors.
func (b *ConfigBuilder) MustBuild() Config {
	cfg, err := b.Build()
	if err != nil {
		panic("timetable: invalid config: " + err.Error())
	}
	return cfg
}
