package slogger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ochairo/pkgguard/internal/domain/interfaces"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json").With(interfaces.F("scan", "abc"))

	log.Debug("hidden")
	log.Info("scan finished", interfaces.F("files", 3), interfaces.Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug must be filtered): %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	if entry["msg"] != "scan finished" || entry["scan"] != "abc" || entry["error"] != "boom" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["files"] != float64(3) {
		t.Errorf("files = %v, want 3", entry["files"])
	}
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("walking", interfaces.F("root", "/tmp/pkg"))

	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "root=/tmp/pkg") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
