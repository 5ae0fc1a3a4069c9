package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("engine started", "data_dir", "/var/lib/glyph")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["msg"] != "engine started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "engine started")
	}
	if entry["data_dir"] != "/var/lib/glyph" {
		t.Errorf("data_dir = %v", entry["data_dir"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Output: &buf})

	l.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info line emitted below warn level: %s", buf.String())
	}
	l.Warn("emitted")
	if buf.Len() == 0 {
		t.Error("warn line not emitted at warn level")
	}
}

func TestSetLevel_Dynamic(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})
	defer SetLevel("info")

	SetLevel("error")
	if GetLevel() != "error" {
		t.Fatalf("GetLevel() = %q, want error", GetLevel())
	}
	l.Info("suppressed after level raise")
	if buf.Len() != 0 {
		t.Errorf("info line emitted at error level: %s", buf.String())
	}

	SetLevel("debug")
	l.Debug("emitted after level drop")
	if buf.Len() == 0 {
		t.Error("debug line not emitted at debug level")
	}
}

func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("empty context request id = %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext() = %q, want req-123", got)
	}
}

func TestL_EnrichesWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), base)
	ctx = WithRequestID(ctx, "req-456")

	L(ctx).Info("handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["request_id"] != "req-456" {
		t.Errorf("request_id = %v, want req-456", entry["request_id"])
	}
}
