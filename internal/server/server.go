// Package server exposes the conversation service over HTTP: the chatbot
// query route, liveness and readiness probes, index statistics and
// Prometheus metrics. It is started by the `climatetrack serve` command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mifdirfan/climatetrack/internal/chat"
	"github.com/mifdirfan/climatetrack/internal/conversation"
	"github.com/mifdirfan/climatetrack/internal/ingestion"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/store"
)

// maxBodyBytes caps chatbot request bodies.
const maxBodyBytes = 1 << 20

// Controller-level replies for rejected requests.
const (
	replyEmptyMessage = "Message cannot be empty."
	replyBadRequest   = "Invalid request body."
	replyBadLocation  = "Location must have lat in [-90, 90] and lon in [-180, 180]."
	replyBadRole      = "History roles must be user, assistant or system."
)

// New constructs a Server around responder.
func New(responder Responder, cfg *Config) (*Server, error) {
	if responder == nil {
		return nil, fmt.Errorf("server: responder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 10
	}
	reg := cfg.MetricsRegistry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := cfg.MetricsGatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		responder: responder,
		cfg:       cfg,
		log:       logging.OrDefault(cfg.Logger),
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	if cfg.APIKey == "" && cfg.JWTSecret == "" {
		s.log.Warn("server: authentication disabled, set CT_API_KEY or CT_JWT_SECRET to protect /api routes; stored conversation history is off until then")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stop
	auth := authenticator{apiKey: cfg.APIKey, jwtSecret: []byte(cfg.JWTSecret)}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chatbot/query", s.instrument("chatbot",
		rl.middleware(auth.middleware(http.HandlerFunc(s.handleChatbot)))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /api/index/stats", s.instrument("stats", auth.middleware(http.HandlerFunc(s.handleStats))))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start binds the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs OnReady once and serves on ln until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.stopRL()

	s.log.Info("server: listening", slog.String("addr", ln.Addr().String()))
	if s.cfg.OnReady != nil {
		s.readyOnce.Do(func() { s.cfg.OnReady(ctx) })
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChatbot handles POST /api/chatbot/query. Model failures still
// produce 200 with an apology reply; only malformed requests get 400.
func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	var req chatbotRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		log.Warn("chatbot: invalid request body", slog.Any("error", err))
		writeJSON(w, http.StatusBadRequest, chatbotResponse{Reply: replyBadRequest})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, chatbotResponse{Reply: replyEmptyMessage})
		return
	}
	if req.Location != nil && !req.Location.Valid() {
		writeJSON(w, http.StatusBadRequest, chatbotResponse{Reply: replyBadLocation})
		return
	}
	for _, m := range req.History {
		if !m.Role.Valid() {
			writeJSON(w, http.StatusBadRequest, chatbotResponse{Reply: replyBadRole})
			return
		}
	}

	username := usernameFrom(ctx)
	owner := historyOwner(ctx)
	history := req.History
	if history == nil {
		history = s.loadHistory(ctx, owner)
	}

	res := s.responder.Turn(ctx, req.Message, history, &conversation.User{
		Username: username,
		Location: req.Location,
	})
	if res.Outcome == conversation.OutcomeOK {
		s.saveTurn(ctx, owner, req.Message, res.Reply)
	}

	writeJSON(w, http.StatusOK, chatbotResponse{Reply: res.Reply})
}

// loadHistory returns the user's stored turns, oldest first. Lookup
// failures are logged and yield no history.
func (s *Server) loadHistory(ctx context.Context, username string) []chat.Message {
	if s.cfg.History == nil || username == "" {
		return nil
	}
	stored, err := s.cfg.History.Recent(ctx, username, s.cfg.HistoryDepth)
	if err != nil {
		logging.FromContext(ctx).Warn("chatbot: history lookup failed", slog.Any("error", err))
		return nil
	}
	out := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		out = append(out, chat.Message{Role: chat.Role(m.Role), Content: m.Content})
	}
	return out
}

// saveTurn appends the user message and reply. Failures are logged only.
func (s *Server) saveTurn(ctx context.Context, username, message, reply string) {
	if s.cfg.History == nil || username == "" {
		return
	}
	for _, m := range []struct {
		role    store.Role
		content string
	}{{store.RoleUser, message}, {store.RoleAssistant, reply}} {
		if err := s.cfg.History.Append(ctx, username, m.role, m.content); err != nil {
			logging.FromContext(ctx).Warn("chatbot: history append failed", slog.Any("error", err))
			return
		}
	}
}

// handleStats handles GET /api/index/stats.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Ingestion: ingestionStats{State: ingestion.StateIdle}}
	if s.cfg.Index != nil {
		resp.Chunks = s.cfg.Index.Len()
	}
	if s.cfg.Ingestion != nil {
		resp.Ingestion.State = s.cfg.Ingestion.State()
		if rep, ok := s.cfg.Ingestion.Report(); ok {
			resp.Ingestion.Report = &rep
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
