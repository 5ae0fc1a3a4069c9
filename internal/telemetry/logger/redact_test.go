package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestRedactSensitive_CredentialValue(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	cred := "gak_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq"
	l.Info("mutation authorized", "cred", cred)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	got, ok := entry["cred"].(string)
	if !ok {
		t.Fatal("expected cred field in log")
	}
	if got == cred {
		t.Fatalf("credential logged in full: %s", got)
	}
	if got != "gak_ABC...opq" {
		t.Errorf("credential mask = %q, want gak_ABC...opq", got)
	}
}

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	tests := []struct {
		key   string
		value string
	}{
		{"password", "hunter2"},
		{"snapshot_passphrase", "correct horse"},
		{"credential", "cred123"},
		{"auth_header", "bearer-xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			buf.Reset()
			l.Info("test", tt.key, tt.value)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log output is not JSON: %v", err)
			}
			if entry[tt.key] != redactedValue {
				t.Errorf("key %q logged as %v, want %q", tt.key, entry[tt.key], redactedValue)
			}
		})
	}
}

func TestRedactSensitive_PublicValuesPassThrough(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	// Token IDs, beacon IDs and credential hashes are public.
	l.Info("token created", "token_id", "gt-01hqxw5p8kfam2", "beacon_id", "BG-AMOS-0001",
		"hash", "gkh_0a1b2c")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["token_id"] != "gt-01hqxw5p8kfam2" {
		t.Errorf("token_id redacted: %v", entry["token_id"])
	}
	if entry["beacon_id"] != "BG-AMOS-0001" {
		t.Errorf("beacon_id redacted: %v", entry["beacon_id"])
	}
	if entry["hash"] != "gkh_0a1b2c" {
		t.Errorf("credential hash redacted: %v", entry["hash"])
	}
}

func TestRedactString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plaintext credential",
			input:    "gak_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq",
			expected: "gak_ABC...opq",
		},
		{
			name:     "short credential",
			input:    "gak_ABC",
			expected: "gak_***",
		},
		{
			name:     "credential hash is public",
			input:    "gkh_0a1b2c3d",
			expected: "gkh_0a1b2c3d",
		},
		{
			name:     "normal value",
			input:    "normalvalue123",
			expected: "normalvalue123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactString(tt.input); got != tt.expected {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key       string
		sensitive bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"snapshot_passphrase", true},
		{"credential", true},
		{"auth", true},
		{"bearer", true},
		{"token_id", false},
		{"beacon_id", false},
		{"request_id", false},
		{"data_dir", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsSensitiveKey(tt.key); got != tt.sensitive {
				t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.sensitive)
			}
		})
	}
}
