package log

import (
	"fmt"
	"strings"
)

// Config is a declarative logger configuration, suitable for loading from
// an operator-facing config file or environment variables.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "text"
	Output string `json:"output" yaml:"output"` // "console", "file:<path>", "null"

	// SampleInitial and SampleThereafter enable per-message-key sampling once
	// a message has been logged SampleInitial times.
	SampleInitial    int `json:"sampleInitial" yaml:"sampleInitial"`
	SampleThereafter int `json:"sampleThereafter" yaml:"sampleThereafter"`

	// Redact lists field keys to replace with "[REDACTED]" before formatting.
	Redact []string `json:"redact" yaml:"redact"`
}

// ParseLevel parses a case-insensitive level name, defaulting to InfoLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from a Config, applying sampling and redaction
// via the slog bridge handler when configured.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "text":
		formatter = &TextFormatter{}
	case "json", "":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	var output Output
	switch {
	case cfg.Output == "" || cfg.Output == "console":
		output = &ConsoleOutput{}
	case cfg.Output == "null":
		output = NullOutput{}
	case strings.HasPrefix(cfg.Output, "file:"):
		f, err := NewFileOutput(strings.TrimPrefix(cfg.Output, "file:"))
		if err != nil {
			return nil, err
		}
		output = f
	default:
		return nil, fmt.Errorf("log: unknown output %q", cfg.Output)
	}

	l := NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(output))
	base, ok := l.(*BaseLogger)
	if !ok {
		return l, nil
	}

	h := newBridgeHandler(base)
	if len(cfg.Redact) > 0 {
		h = h.withRedactions(cfg.Redact)
	}
	if cfg.SampleThereafter > 0 {
		h = h.withSampler(cfg.SampleInitial, cfg.SampleThereafter)
	}
	base.rebind(h)
	return base, nil
}
