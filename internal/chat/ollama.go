package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig holds the settings for an OllamaClient.
type OllamaConfig struct {
	// Host is the Ollama base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the chat model name (e.g. "llama3").
	Model string
	// Timeout bounds each call. Zero means 60s.
	Timeout time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// OllamaClient calls the Ollama /api/chat endpoint with streaming disabled.
// It is safe for concurrent use.
type OllamaClient struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaClient constructs an OllamaClient.
func NewOllamaClient(cfg *OllamaConfig) *OllamaClient {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OllamaClient{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: client,
	}
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Messages []Message `json:"messages"`
}

type ollamaChatResponse struct {
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Complete sends messages in order and returns message.content from the
// response.
func (c *OllamaClient) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(ollamaChatRequest{Model: c.model, Stream: false, Messages: messages})
	if err != nil {
		return "", &Error{Kind: ErrProtocol, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: ErrNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: ErrNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	var out ollamaChatResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		var cause error
		if decodeErr == nil && out.Error != "" {
			cause = fmt.Errorf("%s", out.Error)
		}
		return "", &Error{Kind: ErrStatus, StatusCode: resp.StatusCode, Err: cause}
	}
	if decodeErr != nil {
		return "", &Error{Kind: ErrProtocol, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if out.Message == nil {
		return "", &Error{Kind: ErrProtocol, Err: fmt.Errorf("response has no message field")}
	}
	return out.Message.Content, nil
}

// Ping checks that the Ollama server answers GET /api/tags.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("chat: create ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat: ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat: ollama ping: HTTP %d", resp.StatusCode)
	}
	return nil
}
