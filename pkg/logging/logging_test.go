package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)
	defer Init(LevelInfo, &buf)

	Debug("Test", "debug message")
	Info("Test", "info message")
	Warn("Test", "warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug message logged at WARN level")
	}
	if strings.Contains(out, "info message") {
		t.Error("info message logged at WARN level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn message missing at WARN level")
	}
}

func TestErrorIncludesSubsystemAndError(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Error("Probe", errors.New("boom"), "discovery failed for %s", "demo:latest")

	out := buf.String()
	if !strings.Contains(out, "subsystem=Probe") {
		t.Errorf("output missing subsystem attribute: %s", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("output missing error attribute: %s", out)
	}
	if !strings.Contains(out, "discovery failed for demo:latest") {
		t.Errorf("output missing formatted message: %s", out)
	}
}
