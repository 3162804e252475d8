package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Format: "text", Output: &buf})

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("expected warn record")
	}
}

func TestWithContext(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: "json", Output: &buf})

	ctx := WithRunID(context.Background(), "run-123")
	ctx = WithDocument(ctx, "comprovante.pdf")
	WithContext(ctx).Info("document processed")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	if rec["run_id"] != "run-123" {
		t.Errorf("run_id = %v, want run-123", rec["run_id"])
	}
	if rec["document"] != "comprovante.pdf" {
		t.Errorf("document = %v, want comprovante.pdf", rec["document"])
	}
}

func TestWithContextEmpty(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Init(&Config{Level: "info", Format: "text", Output: &buf})

	WithContext(context.Background()).Info("plain")

	if strings.Contains(buf.String(), "run_id") {
		t.Error("no run_id expected without one in context")
	}
	if RunID(context.Background()) != "" {
		t.Error("expected empty run ID")
	}
}
