package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// clearEnv unsets keys for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_YAML(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", `
model:
  provider: gemini
  max_tokens: 2048
  temperature: 0.3
  timeout: 45s
  gemini:
    model: gemini-1.5-pro
embedding:
  provider: ollama
  model: nomic-embed-text
sources:
  prose:
    - docs/guide.pdf
    - docs/faq.md
  tabular:
    - data/fire_stations.csv
retrieval:
  radius_km: 12.5
  top_k: 4
stores:
  history_backend: redis
  redis_addr: localhost:6379
qdrant:
  host: qdrant.internal
  port: 6334
server:
  rate_limit: 0.5
logging:
  level: debug
  format: text
`)

	want := map[string]string{
		"MODEL_PROVIDER":         "gemini",
		"MODEL_MAX_TOKENS":       "2048",
		"MODEL_TEMPERATURE":      "0.3",
		"CHAT_TIMEOUT":           "45s",
		"GEMINI_MODEL":           "gemini-1.5-pro",
		"EMBEDDING_PROVIDER":     "ollama",
		"EMBEDDING_MODEL":        "nomic-embed-text",
		"CT_PROSE_SOURCES":       "docs/guide.pdf,docs/faq.md",
		"CT_TABULAR_SOURCES":     "data/fire_stations.csv",
		"CT_PROXIMITY_RADIUS_KM": "12.5",
		"CT_TOP_K":               "4",
		"CT_HISTORY_BACKEND":     "redis",
		"REDIS_ADDR":             "localhost:6379",
		"QDRANT_HOST":            "qdrant.internal",
		"QDRANT_PORT":            "6334",
		"CT_RATE_LIMIT":          "0.5",
		"LOG_LEVEL":              "debug",
		"LOG_FORMAT":             "text",
	}
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	clearEnv(t, keys...)
	clearEnv(t, "CT_TOP_N", "QDRANT_TLS")

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
	for _, k := range []string{"CT_TOP_N", "QDRANT_TLS"} {
		if got := os.Getenv(k); got != "" {
			t.Errorf("%s: zero value exported as %q", k, got)
		}
	}
}

func TestLoad_TOML(t *testing.T) {
	cfgPath := writeFile(t, "climatetrack.toml", `
[model]
provider = "ark"

[model.ark]
model = "doubao-pro"

[sources]
prose = ["a.pdf", "b.txt"]

[server]
port = 9090
jwt_secret = "s3cret"
`)
	clearEnv(t, "MODEL_PROVIDER", "ARK_MODEL", "CT_PROSE_SOURCES", "CT_PORT", "CT_JWT_SECRET")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := map[string]string{
		"MODEL_PROVIDER":   "ark",
		"ARK_MODEL":        "doubao-pro",
		"CT_PROSE_SOURCES": "a.pdf,b.txt",
		"CT_PORT":          "9090",
		"CT_JWT_SECRET":    "s3cret",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "model:\n  provider: ollama\n")
	t.Setenv("MODEL_PROVIDER", "azure")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidFiles(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"config.yaml":       "{{invalid yaml",
		"climatetrack.toml": "[model\nprovider=",
	} {
		if _, err := Load(writeFile(t, name, content), slog.Default()); err == nil {
			t.Errorf("%s: expected parse error", name)
		}
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	cfgPath := writeFile(t, "custom.yaml", "logging:\n  level: warn\n")
	t.Setenv("CT_CONFIG", cfgPath)
	clearEnv(t, "LOG_LEVEL")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded %q, want %q from CT_CONFIG", loaded, cfgPath)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "warn" {
		t.Errorf("LOG_LEVEL = %q, want warn", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	envPath := writeFile(t, ".env", "CT_API_KEY=from-dotenv\nCT_HOST=0.0.0.0\n")
	clearEnv(t, "CT_API_KEY")
	t.Setenv("CT_HOST", "127.0.0.1")

	ok, err := LoadDotEnv(envPath)
	if err != nil || !ok {
		t.Fatalf("LoadDotEnv = %v, %v", ok, err)
	}
	if got := os.Getenv("CT_API_KEY"); got != "from-dotenv" {
		t.Errorf("CT_API_KEY = %q", got)
	}
	if got := os.Getenv("CT_HOST"); got != "127.0.0.1" {
		t.Errorf("CT_HOST = %q, .env must not override the environment", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()

	ok, err := LoadDotEnv(filepath.Join(t.TempDir(), ".env"))
	if err != nil || ok {
		t.Errorf("LoadDotEnv(missing) = %v, %v, want false, nil", ok, err)
	}
}

func TestFloatStr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := floatStr(float64(tt.in), 32); got != tt.want {
			t.Errorf("floatStr(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
