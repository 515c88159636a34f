package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"OPENAI_API_KEY", "sk-abc123", "set"},
		{"OPENAI_API_KEY", "", "unset"},
		{"CT_JWT_SECRET", "hunter2", "set"},
		{"REDIS_PASSWORD", "pw", "set"},
		{"MODEL_PROVIDER", "gemini", "gemini"},
		{"MODEL_PROVIDER", "", "unset"},
	}
	for _, tc := range tests {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("CT_API_KEY", "super-secret-key")
	t.Setenv("MODEL_PROVIDER", "ollama")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(t.Context(), log, "serve", "")

	if bytes.Contains(buf.Bytes(), []byte("super-secret-key")) {
		t.Fatalf("secret leaked into audit entry: %s", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["CT_API_KEY"] != "set" || entry["MODEL_PROVIDER"] != "ollama" || entry["command"] != "serve" {
		t.Errorf("entry = %v", entry)
	}
	if entry["config_file"] != "none" {
		t.Errorf("config_file = %v, want none", entry["config_file"])
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".climatetrack", "config.yaml")
		if got := sanitiseConfigPath(p); got != "~/.climatetrack/config.yaml" {
			t.Errorf("expected '~/.climatetrack/config.yaml', got %q", got)
		}
	}
}
