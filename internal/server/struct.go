package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mifdirfan/climatetrack/internal/chat"
	"github.com/mifdirfan/climatetrack/internal/conversation"
	"github.com/mifdirfan/climatetrack/internal/ingestion"
	"github.com/mifdirfan/climatetrack/internal/records"
	"github.com/mifdirfan/climatetrack/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed the chat timeout.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks.
	Pingers []Pinger
	// RateLimit is the sustained per-IP request rate on the chatbot route
	// (requests/second). Defaults to 2 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 5 if zero.
	RateBurst int
	// APIKey is a static Bearer token accepted on protected routes.
	APIKey string
	// JWTSecret verifies HS256 Bearer tokens whose subject is the username.
	// Authentication is disabled when both APIKey and JWTSecret are empty.
	JWTSecret string
	// History stores completed turns per user. Nil disables persistence.
	History store.ConversationStore
	// HistoryDepth is how many stored messages are loaded when a request
	// carries no history. Defaults to 10.
	HistoryDepth int
	// Index reports the vector index size for /api/index/stats.
	Index IndexStats
	// Ingestion reports the background ingestion state for /api/index/stats.
	Ingestion IngestionStatus
	// OnReady runs once after the listener is bound, before serving.
	OnReady func(ctx context.Context)
	// MetricsRegistry receives the server metrics. Nil uses
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves /metrics. Nil uses prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Responder answers one chatbot turn. *conversation.Service satisfies it.
type Responder interface {
	Turn(ctx context.Context, message string, history []chat.Message, user *conversation.User) conversation.Result
}

// IndexStats exposes the size of the vector index.
type IndexStats interface {
	Len() int
}

// IngestionStatus exposes the background ingestion lifecycle.
type IngestionStatus interface {
	State() ingestion.State
	Report() (ingestion.Report, bool)
}

// Server is the HTTP surface of the grounding engine.
type Server struct {
	// responder handles chatbot turns.
	responder Responder
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's eviction goroutine on shutdown.
	stopRL func()
	// readyOnce guards cfg.OnReady.
	readyOnce sync.Once
}

// chatbotRequest is the JSON body for POST /api/chatbot/query. A nil
// History means the field was omitted.
type chatbotRequest struct {
	Message  string         `json:"message"`
	History  []chat.Message `json:"history"`
	Location *records.Point `json:"location,omitempty"`
}

// chatbotResponse is the JSON body returned by POST /api/chatbot/query.
type chatbotResponse struct {
	Reply string `json:"reply"`
}

// statsResponse is the JSON body returned by GET /api/index/stats.
type statsResponse struct {
	Chunks    int            `json:"chunks"`
	Ingestion ingestionStats `json:"ingestion"`
}

type ingestionStats struct {
	State  ingestion.State   `json:"state"`
	Report *ingestion.Report `json:"report,omitempty"`
}
