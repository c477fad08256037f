// Package observability provides the structured logger and the Prometheus
// metrics used across the tool.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	// Level is the minimum level emitted: trace, debug, info, warn, error,
	// fatal or panic. Unknown values fall back to info.
	Level string
	// Format selects the output encoding: "json" or "console".
	Format string
	// Output selects the destination: "stderr" or "stdout".
	Output string
}

// NewLogger builds a zerolog logger per cfg. Levels apply to this logger
// only; the global level is left alone so other sinks (such as the run's
// stage log) always record.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		out = os.Stdout
	default:
		out = os.Stderr
	}

	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to its zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRun returns logger annotated with run-scoped fields carried by every
// subsequent event.
func WithRun(logger zerolog.Logger, runID, attemptID string) zerolog.Logger {
	return logger.With().
		Str("run_id", runID).
		Str("attempt_id", attemptID).
		Logger()
}
