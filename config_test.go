package timetable

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chronicle-db/timetable/internal/testutil"
)

const sampleConfig = `
log: {level: debug, format: json}
notify: {enabled: true, buffer_size: 16, ping_interval: 5s}
server: {addr: ":9000", max_body_bytes: 1024}
tables:
  - name: btc
    key_column: 0
    columns: [time, open, high, low, close, volume]
    series:
      - name: hourly
        type: ohlc
        interval: 1h
        columns: {open: 1, high: 2, low: 3, close: 4}
      - name: volume
        interval: 1d
        aggregates:
          - {name: volume, column: 5, kind: sum}
          - {name: vwap, column: 4, kind: weighted_average, weight: 5}
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(testutil.WriteConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Notify.BufferSize != 16 || cfg.Notify.PingInterval != 5*time.Second {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Notify.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want default 10s", cfg.Notify.WriteTimeout)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.MaxBodyBytes != 1024 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if len(cfg.Tables) != 1 || len(cfg.Tables[0].Series) != 2 {
		t.Fatalf("Tables = %+v", cfg.Tables)
	}
	vwap := cfg.Tables[0].Series[1].Aggregates[1]
	if vwap.Weight == nil || *vwap.Weight != 5 {
		t.Errorf("vwap weight = %v, want 5", vwap.Weight)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/timetable.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad level", "log: {level: loud}"},
		{"bad format", "log: {format: xml}"},
		{"unnamed table", "tables: [{key_column: 0}]"},
		{"duplicate table", "tables: [{name: a}, {name: a}]"},
		{"key column outside columns", "tables: [{name: a, key_column: 2, columns: [x, y]}]"},
		{"series without interval", "tables: [{name: a, series: [{name: s, type: line, columns: {value: 1}}]}]"},
		{"bad interval", "tables: [{name: a, series: [{name: s, interval: 5x, type: line, columns: {value: 1}}]}]"},
		{"unknown type", "tables: [{name: a, series: [{name: s, interval: 1h, type: candles}]}]"},
		{"type missing column", "tables: [{name: a, series: [{name: s, interval: 1h, type: line}]}]"},
		{"unknown kind", "tables: [{name: a, series: [{name: s, interval: 1h, aggregates: [{name: x, column: 1, kind: median}]}]}]"},
		{"type and aggregates", "tables: [{name: a, series: [{name: s, interval: 1h, type: line, columns: {value: 1}, aggregates: [{name: x, column: 1, kind: sum}]}]}]"},
		{"duplicate series", "tables: [{name: a, series: [{name: s, width: 5, type: line, columns: {value: 1}}, {name: s, width: 5, type: line, columns: {value: 1}}]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseConfigSyntaxError(t *testing.T) {
	_, err := ParseConfig([]byte("tables: [unclosed"))
	if err == nil || errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want a YAML parse error", err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigBuilder(t *testing.T) {
	cfg, err := NewConfigBuilder().
		WithLog("warn", "text").
		WithServer(":7000").
		WithMaxBodyBytes(2048).
		WithNotify(8, time.Second).
		WithTable(TableConfig{Name: "cpu", Columns: []string{"time", "value"}}).
		WithSeries("cpu", SeriesConfig{Name: "avg", Width: 60_000, Aggregates: []AggregateConfig{{Name: "avg", Column: 1, Kind: "avg"}}}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.Server.Addr != ":7000" || cfg.Server.MaxBodyBytes != 2048 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Notify.BufferSize != 8 || !cfg.Notify.Enabled {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if len(cfg.Tables[0].Series) != 1 {
		t.Errorf("Series = %+v", cfg.Tables[0].Series)
	}

	_, err = NewConfigBuilder().WithSeries("missing", SeriesConfig{Name: "s", Width: 1, Type: "line"}).Build()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("series on undeclared table err = %v, want ErrInvalidConfig", err)
	}
}

func TestConfigBuilderMustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustBuild should panic on invalid config")
		}
	}()
	NewConfigBuilder().WithLog("loud", "text").MustBuild()
}

func TestLogConfigNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "table", "btc")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record passed a warn-level logger")
	}
	if !strings.Contains(out, `"table":"btc"`) {
		t.Errorf("json output = %q", out)
	}
}
