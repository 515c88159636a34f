package chat

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mifdirfan/climatetrack/internal/provider"
)

// Transport names how chat requests reach the model.
type Transport string

const (
	// TransportNative talks to Ollama's /api/chat directly.
	TransportNative Transport = "native"
	// TransportEino routes through an Eino chat model from the provider package.
	TransportEino Transport = "eino"
)

// Selection describes the model NewFromEnv chose.
type Selection struct {
	Backend   provider.Backend
	Transport Transport
	Model     string
}

// NewFromEnv builds the chat Model from the environment. The native
// transport is used when MODEL_PROVIDER is ollama and CHAT_TRANSPORT is
// unset or "native"; every other combination goes through Eino.
//
//	CHAT_TRANSPORT = native | eino (default: native)
//	CHAT_TIMEOUT   = per-call timeout for the native client (default: 60s)
func NewFromEnv(ctx context.Context) (Model, Selection, error) {
	cfg := provider.ConfigFromEnv()
	transport := Transport(strings.ToLower(getEnvOrDefault("CHAT_TRANSPORT", string(TransportNative))))
	sel := Selection{Backend: cfg.Backend, Transport: transport, Model: cfg.ModelName()}

	switch transport {
	case TransportNative:
		if cfg.Backend == provider.BackendOllama {
			if err := cfg.Validate(); err != nil {
				return nil, sel, err
			}
			return NewOllamaClient(&OllamaConfig{
				Host:    cfg.Ollama.Host,
				Model:   cfg.Ollama.Model,
				Timeout: Timeout(),
			}), sel, nil
		}
		sel.Transport = TransportEino
	case TransportEino:
	default:
		return nil, sel, fmt.Errorf("chat: unknown CHAT_TRANSPORT %q, valid values: native, eino", transport)
	}

	m, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, sel, err
	}
	return NewEinoModel(m, string(cfg.Backend)), sel, nil
}

// Timeout returns CHAT_TIMEOUT, or 60s when it is unset or invalid.
func Timeout() time.Duration {
	if v := os.Getenv("CHAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 60 * time.Second
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
