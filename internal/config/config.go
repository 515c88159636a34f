// Package config loads climatetrack settings from an optional YAML or TOML
// file and an optional .env file, and exports them as environment variables.
// Components read their settings from the environment through their
// FromEnv constructors, so precedence is: defaults, then the config file,
// then .env, then the process environment.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. CT_CONFIG environment variable
//  3. ~/.climatetrack/config.yaml
//  4. ./climatetrack.yaml
//  5. ./climatetrack.toml
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the file layout. YAML and TOML share the same key names.
type Config struct {
	Model     ModelConfig     `yaml:"model" toml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Sources   SourcesConfig   `yaml:"sources" toml:"sources"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Stores    StoresConfig    `yaml:"stores" toml:"stores"`
	Qdrant    QdrantConfig    `yaml:"qdrant" toml:"qdrant"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, gemini, ark.
	Provider string `yaml:"provider" toml:"provider"`
	// Transport selects native (Ollama HTTP) or eino.
	Transport   string  `yaml:"transport" toml:"transport"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
	Temperature float32 `yaml:"temperature" toml:"temperature"`
	// Timeout bounds one model call, as a Go duration string.
	Timeout string       `yaml:"timeout" toml:"timeout"`
	Ollama  OllamaConfig `yaml:"ollama" toml:"ollama"`
	OpenAI  OpenAIConfig `yaml:"openai" toml:"openai"`
	Azure   AzureConfig  `yaml:"azure" toml:"azure"`
	Gemini  GeminiConfig `yaml:"gemini" toml:"gemini"`
	Ark     ArkConfig    `yaml:"ark" toml:"ark"`
}

type OllamaConfig struct {
	Host  string `yaml:"host" toml:"host"`
	Model string `yaml:"model" toml:"model"`
}

type OpenAIConfig struct {
	// APIKey is better supplied as OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

type AzureConfig struct {
	APIKey     string `yaml:"api_key" toml:"api_key"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Deployment string `yaml:"deployment" toml:"deployment"`
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key" toml:"api_key"`
	Model  string `yaml:"model" toml:"model"`
}

type ArkConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" toml:"provider"`
	Model      string `yaml:"model" toml:"model"`
	Dimensions int    `yaml:"dimensions" toml:"dimensions"`
	APIKey     string `yaml:"api_key" toml:"api_key"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Timeout    string `yaml:"timeout" toml:"timeout"`
}

// SourcesConfig lists the documents ingested at startup.
type SourcesConfig struct {
	Prose   []string `yaml:"prose" toml:"prose"`
	Tabular []string `yaml:"tabular" toml:"tabular"`
}

// RetrievalConfig tunes context assembly.
type RetrievalConfig struct {
	RadiusKM         float64 `yaml:"radius_km" toml:"radius_km"`
	TopK             int     `yaml:"top_k" toml:"top_k"`
	TopN             int     `yaml:"top_n" toml:"top_n"`
	MaxContextTokens int     `yaml:"max_context_tokens" toml:"max_context_tokens"`
}

// StoresConfig locates the records database and the history backend.
type StoresConfig struct {
	RecordsDB      string `yaml:"records_db" toml:"records_db"`
	HistoryBackend string `yaml:"history_backend" toml:"history_backend"`
	HistoryDB      string `yaml:"history_db" toml:"history_db"`
	HistoryDepth   int    `yaml:"history_depth" toml:"history_depth"`
	RedisAddr      string `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password" toml:"redis_password"`
	RedisDB        int    `yaml:"redis_db" toml:"redis_db"`
}

// QdrantConfig configures the optional vector mirror.
type QdrantConfig struct {
	Host       string `yaml:"host" toml:"host"`
	Port       int    `yaml:"port" toml:"port"`
	Collection string `yaml:"collection" toml:"collection"`
	APIKey     string `yaml:"api_key" toml:"api_key"`
	TLS        bool   `yaml:"tls" toml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string  `yaml:"host" toml:"host"`
	Port      int     `yaml:"port" toml:"port"`
	APIKey    string  `yaml:"api_key" toml:"api_key"`
	JWTSecret string  `yaml:"jwt_secret" toml:"jwt_secret"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" toml:"rate_burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

type TracingConfig struct {
	PublicKey string `yaml:"public_key" toml:"public_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Host      string `yaml:"host" toml:"host"`
}

// envMapping maps file fields to the environment variables components read.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"CHAT_TRANSPORT", func(c *Config) string { return c.Model.Transport }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return floatStr(float64(c.Model.Temperature), 32) }},
	{"CHAT_TIMEOUT", func(c *Config) string { return c.Model.Timeout }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_TIMEOUT", func(c *Config) string { return c.Embedding.Timeout }},
	{"CT_PROSE_SOURCES", func(c *Config) string { return strings.Join(c.Sources.Prose, ",") }},
	{"CT_TABULAR_SOURCES", func(c *Config) string { return strings.Join(c.Sources.Tabular, ",") }},
	{"CT_PROXIMITY_RADIUS_KM", func(c *Config) string { return floatStr(c.Retrieval.RadiusKM, 64) }},
	{"CT_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"CT_TOP_N", func(c *Config) string { return intStr(c.Retrieval.TopN) }},
	{"CT_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Retrieval.MaxContextTokens) }},
	{"CT_RECORDS_DB", func(c *Config) string { return c.Stores.RecordsDB }},
	{"CT_HISTORY_BACKEND", func(c *Config) string { return c.Stores.HistoryBackend }},
	{"CT_HISTORY_DB", func(c *Config) string { return c.Stores.HistoryDB }},
	{"CT_HISTORY_DEPTH", func(c *Config) string { return intStr(c.Stores.HistoryDepth) }},
	{"REDIS_ADDR", func(c *Config) string { return c.Stores.RedisAddr }},
	{"REDIS_PASSWORD", func(c *Config) string { return c.Stores.RedisPassword }},
	{"REDIS_DB", func(c *Config) string { return intStr(c.Stores.RedisDB) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CT_HOST", func(c *Config) string { return c.Server.Host }},
	{"CT_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"CT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"CT_JWT_SECRET", func(c *Config) string { return c.Server.JWTSecret }},
	{"CT_RATE_LIMIT", func(c *Config) string { return floatStr(c.Server.RateLimit, 64) }},
	{"CT_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads the first config file found and exports its non-empty values
// as environment variables. Variables that already hold a non-empty value
// are never overwritten. Returns the path that was loaded, or "" if none was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no config file found, using env vars only")
		return "", nil
	}

	cfg, err := parse(path)
	if err != nil {
		return "", err
	}

	applied := 0
	for _, m := range envMapping {
		val := m.value(cfg)
		if val == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue
		}
		if err := os.Setenv(m.envKey, val); err != nil {
			return "", fmt.Errorf("config: export %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded config file",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// parse decodes path as TOML when it has a .toml extension, YAML otherwise.
func parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path without overriding variables
// that are already set. An empty path means ./.env. A missing file is not
// an error.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("config: load %s: %w", path, err)
	}
	return true, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	var candidates []string
	if envPath := os.Getenv("CT_CONFIG"); envPath != "" {
		candidates = append(candidates, envPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".climatetrack", "config.yaml"))
	}
	candidates = append(candidates, "climatetrack.yaml", "climatetrack.toml")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// intStr returns "" for zero so unset file values are skipped.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func floatStr(v float64, bits int) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, bits)
}

func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
