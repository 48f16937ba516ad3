package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"warn filters info", "warn", false, false},
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("compile command")
			if got := strings.Contains(buf.String(), "compile command"); got != tt.wantDebug {
				t.Errorf("debug visible = %v, want %v (buf: %q)", got, tt.wantDebug, buf.String())
			}

			buf.Reset()
			logger.Info("PERF")
			if got := strings.Contains(buf.String(), "PERF"); got != tt.wantInfo {
				t.Errorf("info visible = %v, want %v (buf: %q)", got, tt.wantInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)

	logger.Log(context.Background(), LevelTrace, "kernel source")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected level=TRACE in output, got %q", buf.String())
	}
}

func TestLevelTrace(t *testing.T) {
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewEventLog_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "info")
	if el != nil {
		t.Error("expected nil EventLog at info level")
	}

	el.Log(map[string]any{"event": "compile"})

	if _, err := os.Stat(filepath.Join(dir, EventsFile)); err == nil {
		t.Errorf("%s should not exist at info level", EventsFile)
	}
}

func TestEventLog_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "debug")
	defer el.Close()

	el.Log(map[string]any{"event": "port_resolved", "length": 2})
	el.Log(map[string]any{"event": "compile", "exit_code": 0})

	data, err := os.ReadFile(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatalf("failed to read %s: %v", EventsFile, err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to parse first line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("failed to parse second line: %v", err)
	}

	if first["event"] != "port_resolved" || first["length"] != float64(2) {
		t.Errorf("first entry = %v", first)
	}
	if second["event"] != "compile" {
		t.Errorf("second event = %v, want compile", second["event"])
	}
	if _, ok := first["time"]; !ok {
		t.Error("expected time field in event entry")
	}
}

func TestEventLog_NilSafety(t *testing.T) {
	var el *EventLog
	el.Log(map[string]any{"event": "noop"})
	el.Close()
}

func TestEventLog_DoesNotMutateCallerMap(t *testing.T) {
	el := NewEventLog(t.TempDir(), "trace")
	defer el.Close()

	event := map[string]any{"event": "batch"}
	el.Log(event)

	if _, ok := event["time"]; ok {
		t.Error("Log() mutated the caller's map")
	}
}

func TestEventLog_LogAfterClose(t *testing.T) {
	el := NewEventLog(t.TempDir(), "debug")
	el.Log(map[string]any{"event": "before"})
	el.Close()
	el.Close()
	el.Log(map[string]any{"event": "after"})
}

func TestNewEventLog_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work", "events")

	el := NewEventLog(dir, "debug")
	if el == nil {
		t.Fatal("expected non-nil EventLog when dir needs creation")
	}
	defer el.Close()

	el.Log(map[string]any{"event": "created"})

	info, err := os.Stat(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatalf("%s should exist: %v", EventsFile, err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
