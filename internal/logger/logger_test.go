package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerJSONWritesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger("warn", false, true, &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Warn().Msg("disk almost full")

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "disk almost full") {
		t.Errorf("unexpected JSON log line: %s", out)
	}
}

func TestNewLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger("error", false, true, &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Info().Msg("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected info-level message to be filtered at error level, got: %s", buf.String())
	}
}

func TestNewLoggerDebugFlagOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger("error", true, true, &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Debug().Msg("verbose detail")
	if !strings.Contains(buf.String(), "verbose detail") {
		t.Error("expected debug=true to force debug-level output even when level=error")
	}
}

func TestNewLoggerRejectsInvalidLevel(t *testing.T) {
	if _, err := NewLogger("verbose", false, true, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
