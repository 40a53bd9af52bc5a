package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	log := New(Config{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "coordinator",
	})

	log.Info("task assigned", "frames", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if entry["msg"] != "task assigned" {
		t.Errorf("expected msg='task assigned', got %v", entry["msg"])
	}
	if entry["frames"] != float64(2) {
		t.Errorf("expected frames=2, got %v", entry["frames"])
	}
	if entry["service"] != "coordinator" {
		t.Errorf("expected service='coordinator', got %v", entry["service"])
	}
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		logFn     func(*Logger)
		shouldLog bool
	}{
		{"info level logs info", "info", func(l *Logger) { l.Info("test") }, true},
		{"info level does not log debug", "info", func(l *Logger) { l.Debug("test") }, false},
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("test") }, true},
		{"error level does not log warn", "error", func(l *Logger) { l.Warn("test") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: tt.level, Format: "json", Output: &buf})

			tt.logFn(log)

			if hasOutput := buf.Len() > 0; hasOutput != tt.shouldLog {
				t.Errorf("expected shouldLog=%v, got hasOutput=%v", tt.shouldLog, hasOutput)
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "text", Output: &buf})

	log.Info("sweep finished", "reclaimed", 1)

	if !strings.Contains(buf.String(), "reclaimed=1") {
		t.Errorf("expected key=value output, got: %s", buf.String())
	}
}

func TestWithWorkerAndFrame(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.WithWorkerID("12").WithFrameID(40).Info("frame persisted")

	output := buf.String()
	if !strings.Contains(output, `"worker_id":"12"`) {
		t.Errorf("expected worker_id in output, got: %s", output)
	}
	if !strings.Contains(output, `"frame_id":40`) {
		t.Errorf("expected frame_id in output, got: %s", output)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	if log.WithError(nil) != log {
		t.Error("WithError(nil) should return same logger")
	}

	log.WithError(context.DeadlineExceeded).Info("test message")
	if !strings.Contains(buf.String(), "deadline exceeded") {
		t.Errorf("expected output to contain error, got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-abc")
	ctx = ContextWithWorkerID(ctx, "7")

	log.FromContext(ctx).WithComponent("httpapi").Info("test message")

	output := buf.String()
	for _, want := range []string{"req-abc", `"worker_id":"7"`, "httpapi"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %s, got: %s", want, output)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if level := parseLevel(tt.input); level.String() != tt.expected {
				t.Errorf("parseLevel(%q) = %s, expected %s", tt.input, level.String(), tt.expected)
			}
		})
	}
}
