package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newOllamaServer starts an httptest server that answers /api/embeddings with
// the given status and body and counts the requests it receives.
func newOllamaServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestOllamaEmbedder_Success(t *testing.T) {
	t.Parallel()

	var got ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"embedding":[0.5,-1,2]}`)
	}))
	t.Cleanup(srv.Close)

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
	vec, err := emb.Embed(t.Context(), "flood shelter")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -1 || vec[2] != 2 {
		t.Errorf("vec = %v", vec)
	}
	if got.Model != "nomic-embed-text" || got.Prompt != "flood shelter" {
		t.Errorf("request = %+v", got)
	}
}

func TestOllamaEmbedder_ProtocolFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-200", http.StatusInternalServerError, `{"error":"model not loaded"}`},
		{"not json", http.StatusOK, `<html>oops</html>`},
		{"missing field", http.StatusOK, `{"other":[1,2]}`},
		{"null field", http.StatusOK, `{"embedding":null}`},
		{"string field", http.StatusOK, `{"embedding":"1,2,3"}`},
		{"mixed array", http.StatusOK, `{"embedding":[1,"x"]}`},
		{"empty array", http.StatusOK, `{"embedding":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newOllamaServer(t, tt.status, tt.body)
			emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})

			vec, err := emb.Embed(t.Context(), "some text")
			if vec != nil {
				t.Errorf("want nil vector, got %v", vec)
			}
			if !errors.Is(err, ErrProtocol) {
				t.Fatalf("want ErrProtocol, got %v", err)
			}
			var embErr *Error
			if !errors.As(err, &embErr) || embErr.Backend != "ollama" {
				t.Errorf("want *Error for ollama, got %#v", err)
			}
		})
	}
}

func TestOllamaEmbedder_BlankInputMakesNoCall(t *testing.T) {
	t.Parallel()

	srv, hits := newOllamaServer(t, http.StatusOK, `{"embedding":[1]}`)
	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})

	for _, text := range []string{"", "  ", "\n"} {
		if _, err := emb.Embed(t.Context(), text); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Embed(%q): want ErrInvalidInput, got %v", text, err)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server received %d requests for blank input", n)
	}
}

func TestOllamaEmbedder_NetworkFailures(t *testing.T) {
	t.Parallel()

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		emb := NewOllamaEmbedder(&OllamaConfig{Host: url, Model: "m"})
		if _, err := emb.Embed(t.Context(), "text"); !errors.Is(err, ErrNetwork) {
			t.Errorf("want ErrNetwork, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			srv.Close()
		})

		emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m", Timeout: 50 * time.Millisecond})
		if _, err := emb.Embed(t.Context(), "text"); !errors.Is(err, ErrNetwork) {
			t.Errorf("want ErrNetwork, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		srv, _ := newOllamaServer(t, http.StatusOK, `{"embedding":[1]}`)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "m"})
		_, err := emb.Embed(ctx, "text")
		if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.Canceled) {
			t.Errorf("want ErrNetwork wrapping context.Canceled, got %v", err)
		}
	})
}

func TestOpenAIEmbedder_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.25,0.75]}],"model":"text-embedding-3-small"}`)
	}))
	t.Cleanup(srv.Close)

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "text-embedding-3-small"})
	vec, err := emb.Embed(t.Context(), "typhoon warning signs")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.25 || vec[1] != 0.75 {
		t.Errorf("vec = %v", vec)
	}
}

func TestOpenAIEmbedder_Failures(t *testing.T) {
	t.Parallel()

	t.Run("api error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
		}))
		t.Cleanup(srv.Close)

		emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"})
		if _, err := emb.Embed(t.Context(), "text"); !errors.Is(err, ErrProtocol) {
			t.Errorf("want ErrProtocol, got %v", err)
		}
	})

	t.Run("empty data", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"object":"list","data":[]}`)
		}))
		t.Cleanup(srv.Close)

		emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
		if _, err := emb.Embed(t.Context(), "text"); !errors.Is(err, ErrProtocol) {
			t.Errorf("want ErrProtocol, got %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: url, APIKey: "k", Model: "m"})
		if _, err := emb.Embed(t.Context(), "text"); !errors.Is(err, ErrNetwork) {
			t.Errorf("want ErrNetwork, got %v", err)
		}
	})

	t.Run("blank", func(t *testing.T) {
		t.Parallel()
		emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: "http://127.0.0.1:1", APIKey: "k", Model: "m"})
		if _, err := emb.Embed(t.Context(), " "); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("want ErrInvalidInput, got %v", err)
		}
	})
}

// clearEmbeddingEnv blanks every variable NewFromEnv and Validate read.
func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "MODEL_PROVIDER", "EMBEDDING_ENDPOINT", "EMBEDDING_MODEL",
		"EMBEDDING_API_KEY", "EMBEDDING_DIMENSIONS", "EMBEDDING_TIMEOUT", "OLLAMA_HOST",
		"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
}

func TestBackend_Resolution(t *testing.T) {
	tests := []struct {
		name     string
		embed    string
		model    string
		expected string
	}{
		{"default", "", "", "ollama"},
		{"explicit", "azure", "ollama", "azure"},
		{"inherits openai", "", "openai", "openai"},
		{"chat-only provider falls back", "", "gemini", "ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			t.Setenv("EMBEDDING_PROVIDER", tt.embed)
			t.Setenv("MODEL_PROVIDER", tt.model)
			if got := Backend(); got != tt.expected {
				t.Errorf("Backend() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("ollama default", func(t *testing.T) {
		clearEmbeddingEnv(t)
		emb, err := NewFromEnv()
		if err != nil {
			t.Fatal(err)
		}
		o, ok := emb.(*OllamaEmbedder)
		if !ok {
			t.Fatalf("want *OllamaEmbedder, got %T", emb)
		}
		if o.model != defaultOllamaModel || o.host != "http://localhost:11434" {
			t.Errorf("got model=%q host=%q", o.model, o.host)
		}
	})

	t.Run("openai missing key", func(t *testing.T) {
		clearEmbeddingEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "openai")
		if _, err := NewFromEnv(); err == nil {
			t.Error("want error for missing key")
		}
	})

	t.Run("azure", func(t *testing.T) {
		clearEmbeddingEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "azure")
		t.Setenv("AZURE_OPENAI_API_KEY", "k")
		t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
		emb, err := NewFromEnv()
		if err != nil {
			t.Fatal(err)
		}
		if o, ok := emb.(*OpenAIEmbedder); !ok || o.backend != "azure" {
			t.Errorf("got %T %+v", emb, emb)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		clearEmbeddingEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "bedrock")
		if _, err := NewFromEnv(); err == nil {
			t.Error("want error for unknown backend")
		}
	})
}

func TestValidate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("ollama ok", func(t *testing.T) {
		clearEmbeddingEnv(t)
		if err := Validate(log); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
	t.Run("azure missing endpoint", func(t *testing.T) {
		clearEmbeddingEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "azure")
		t.Setenv("EMBEDDING_API_KEY", "k")
		if err := Validate(log); err == nil {
			t.Error("want error for missing endpoint")
		}
	})
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"nomic-embed-text":       false,
		"text-embedding-3-small": false,
		"mxbai-embed-large":      false,
		"llama3":                 true,
		"gpt-4o":                 true,
		"mistral:7b":             true,
	}
	for model, want := range tests {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
}
