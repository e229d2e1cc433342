package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerFieldsAndFormatting(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, Service: "test"})

	l.WithField("user_id", "u1").
		WithError(errors.New("boom")).
		WithDuration(1500 * time.Microsecond).
		Warn("[Sync] %d messages failed", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if entry["message"] != "[Sync] 3 messages failed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "warn" || entry["service"] != "test" || entry["user_id"] != "u1" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["error"] != "boom" || entry["duration_ms"] != 1.5 {
		t.Errorf("unexpected error/duration fields: %v", entry)
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}

	msg := "shown 100%"
	l.Error(msg)
	if !strings.Contains(buf.String(), "shown 100%") {
		t.Errorf("expected literal message without args, got %s", buf.String())
	}
}
