package applog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogsAtOrAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithOutput(&buf), WithLevel(slog.LevelWarn))

	l.Info("should not appear")
	l.Warn("should appear", "key", "value")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("Info logged despite LevelWarn floor: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("Warn not logged: %q", out)
	}
}

func TestWithComponentAttachesField(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithOutput(&buf)).WithComponent("loop")
	l.Info("tick")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if rec["component"] != "loop" {
		t.Fatalf("component field = %v, want %q", rec["component"], "loop")
	}
}
