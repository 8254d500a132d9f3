// Package logger builds the process-wide zerolog.Logger, replacing the
// teacher's log/slog-based NewLogger. The teacher's own server.go builds a
// zerolog.Logger inline (zerolog.New(zerolog.ConsoleWriter{...}).With().
// Timestamp().Logger()) rather than through a dedicated package; this
// package generalizes that construction into a reusable constructor so
// cmd/server and internal/fetchcore share one code path for level parsing
// and JSON-vs-console output selection.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger at the given level. When debug is true
// (spec.md §6's DEBUG env var) the level is forced to debug regardless of
// level. json selects zerolog's native JSON output; otherwise a
// human-readable zerolog.ConsoleWriter is used, matching the teacher's
// stderr console logger.
func NewLogger(level string, debug bool, json bool, output io.Writer) (zerolog.Logger, error) {
	zl, err := parseLevel(level)
	if err != nil {
		return zerolog.Logger{}, err
	}
	if debug {
		zl = zerolog.DebugLevel
	}

	if output == nil {
		output = os.Stderr
	}
	if !json {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	return zerolog.New(output).Level(zl).With().Timestamp().Logger(), nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", level)
	}
}

// Default returns an info-level console logger writing to stderr, for
// contexts (tests, quick scripts) that don't go through cmd/server's
// config-driven construction.
func Default() zerolog.Logger {
	l, _ := NewLogger("info", false, false, os.Stderr)
	return l
}
