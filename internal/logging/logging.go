// Package logging builds the zerolog logger used for diagnostics. Report
// output never goes through it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger options.
type Config struct {
	// Level is the minimum level written (trace, debug, info, warn, error).
	Level string
	// Format is "console" or "json".
	Format string
	// NoColor disables color in console output.
	NoColor bool
}

// DefaultConfig logs warnings and errors to a console writer.
func DefaultConfig() Config {
	return Config{
		Level:   "warn",
		Format:  "console",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// New returns a logger writing to w. An unrecognised level falls back to
// warn and an unrecognised format to console; use ParseLevel and
// ParseFormat first to reject them instead.
func New(cfg Config, w io.Writer) zerolog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.WarnLevel
	}

	out := w
	if format, _ := ParseFormat(cfg.Format); format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// ParseLevel parses a level name. The empty string is warn.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zerolog.WarnLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "none", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
}

// ParseFormat normalises an output format name. The empty string is console.
func ParseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return "console", nil
	case "console", "json":
		return f, nil
	}
	return "", fmt.Errorf("unknown log format %q (want console or json)", format)
}
