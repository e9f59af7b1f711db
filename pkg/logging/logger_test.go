package logging

import (
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		l := New(tc.level)
		if l == nil || l.Logger == nil {
			t.Fatalf("New(%q) returned nil logger", tc.level)
		}
		if !l.Enabled(nil, tc.want) {
			t.Fatalf("New(%q) should enable level %v", tc.level, tc.want)
		}
		if tc.want > slog.LevelDebug && l.Enabled(nil, tc.want-4) {
			t.Fatalf("New(%q) should not enable level %v", tc.level, tc.want-4)
		}
	}
}

func TestComponent(t *testing.T) {
	l := Default().Component("engine")
	if l == nil || l.Logger == nil {
		t.Fatal("Component returned nil logger")
	}
	var nilLogger *Logger
	if nilLogger.Component("x") == nil {
		t.Fatal("Component on nil logger should fall back to default")
	}
}
