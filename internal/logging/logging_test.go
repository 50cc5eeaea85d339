package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meltforce/gymdesk/internal/config"
)

// TestParseLevel covers the accepted level names.
func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// TestFileOutput verifies records reach the rotated log file.
func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gymdesk.log")
	log, closer, err := New(config.LogConfig{Level: "warn", File: path})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("visible", "athlete", "a1")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, "visible") || !strings.Contains(s, "athlete=a1") {
		t.Errorf("log file = %q", s)
	}
	if strings.Contains(s, "hidden") {
		t.Error("info record written at warn level")
	}
}
