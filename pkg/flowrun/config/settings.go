package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/randalmurphal/flowrun/pkg/flowrun"
)

// Settings are the process-level knobs of a flowrun deployment.
type Settings struct {
	// DBPath is the SQLite database file. Empty means an in-memory store.
	DBPath string
	// MaxSteps is the default step bound for runs.
	MaxSteps int
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is json or text.
	LogFormat string
	// EventLog writes one log line per run event.
	EventLog bool
	// Metrics enables OpenTelemetry metrics.
	Metrics bool
	// Tracing enables OpenTelemetry spans.
	Tracing bool
	// Graphs lists graph definition files to register at startup.
	Graphs []string
}

// DefaultSettings returns the settings used for missing keys.
func DefaultSettings() Settings {
	return Settings{
		MaxSteps:  flowrun.DefaultMaxSteps,
		LogLevel:  "info",
		LogFormat: "json",
		EventLog:  true,
	}
}

// LoadSettings reads settings from a YAML or JSON file.
//
// Example file:
//
//	db_path: ./workflows.db
//	max_steps: 500
//	log:
//	  level: debug
//	  format: json
//	  events: true
//	metrics: false
//	tracing: false
//	graphs:
//	  - graphs/summarize.yaml
func LoadSettings(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	return SettingsFrom(cfg), nil
}

// SettingsFrom extracts settings from a Config, falling back to
// DefaultSettings for anything missing or malformed.
func SettingsFrom(cfg Config) Settings {
	def := DefaultSettings()
	log := cfg.Section("log")

	s := Settings{
		DBPath:    cfg.String("db_path", def.DBPath),
		MaxSteps:  cfg.Int("max_steps", def.MaxSteps),
		LogLevel:  strings.ToLower(log.String("level", def.LogLevel)),
		LogFormat: strings.ToLower(log.String("format", def.LogFormat)),
		EventLog:  log.Bool("events", def.EventLog),
		Metrics:   cfg.Bool("metrics", def.Metrics),
		Tracing:   cfg.Bool("tracing", def.Tracing),
		Graphs:    cfg.StringSlice("graphs", nil),
	}
	if s.MaxSteps <= 0 {
		s.MaxSteps = def.MaxSteps
	}
	return s
}

// Level maps LogLevel to a slog level. Unknown names mean info.
func (s Settings) Level() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the logger described by the settings, writing to w.
func (s Settings) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.Level()}
	if s.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
