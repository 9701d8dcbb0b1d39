package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	log := New(Config{Level: "info", Output: "discard", Format: "text"})
	if log == nil {
		t.Fatal("New() returned nil logger")
	}

	// Must not panic.
	log.Debug("debug message", "key", "value")
	log.Info("info message", "key", "value")
	log.Warn("warn message", "key", "value")
	log.Error("error message", "key", "value")
}

func TestNewDefaults(t *testing.T) {
	// Empty config falls back to defaults without failing.
	log := New(Config{})
	if log == nil {
		t.Fatal("New() returned nil logger")
	}
}

func TestFileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{Level: "info", Output: logFile, Format: "text"})
	log.Info("written to file", "answer", 42)

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), "answer=42") {
		t.Errorf("log file missing field, got: %s", data)
	}
}

func TestJSONFormat(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{Level: "info", Output: logFile, Format: "json"})
	log.Info("json message")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if !strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		t.Errorf("expected JSON output, got: %s", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{Level: "warn", Output: logFile, Format: "text"})
	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("kept")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if strings.Contains(string(data), "dropped") {
		t.Errorf("log file contains filtered message: %s", data)
	}
	if !strings.Contains(string(data), "kept") {
		t.Errorf("log file missing warn message: %s", data)
	}
}

func TestWith(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	log := New(Config{Level: "info", Output: logFile, Format: "text"})
	child := log.With("component", "poller")
	child.Info("with fields")

	data, err := os.ReadFile(logFile) // nolint:gosec
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if !strings.Contains(string(data), "component=poller") {
		t.Errorf("log file missing context field: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input).String(); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNoop(t *testing.T) {
	log := Noop()
	// Must not panic or write anywhere.
	log.Info("into the void")
	log.With("a", 1).Error("still nothing")
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil logger")
	}
}
