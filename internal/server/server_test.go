package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mifdirfan/climatetrack/internal/chat"
	"github.com/mifdirfan/climatetrack/internal/conversation"
	"github.com/mifdirfan/climatetrack/internal/ingestion"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/store"
)

// fakeResponder records the last turn it was asked to answer.
type fakeResponder struct {
	mu      sync.Mutex
	calls   int
	message string
	history []chat.Message
	user    *conversation.User
	result  conversation.Result
}

func (f *fakeResponder) Turn(_ context.Context, message string, history []chat.Message, user *conversation.User) conversation.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.message, f.history, f.user = message, history, user
	if f.result.Reply == "" {
		return conversation.Result{Reply: "Stay indoors.", Outcome: conversation.OutcomeOK}
	}
	return f.result
}

// fakeHistory is an in-memory ConversationStore.
type fakeHistory struct {
	mu        sync.Mutex
	msgs      map[string][]store.Message
	recentErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{msgs: make(map[string][]store.Message)}
}

func (f *fakeHistory) Append(_ context.Context, username string, role store.Role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[username] = append(f.msgs[username], store.Message{Role: role, Content: content, CreatedAt: time.Now()})
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, username string, n int) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	all := f.msgs[username]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (f *fakeHistory) Close() error { return nil }

type fakeIngestion struct {
	state  ingestion.State
	report *ingestion.Report
}

func (f fakeIngestion) State() ingestion.State { return f.state }

func (f fakeIngestion) Report() (ingestion.Report, bool) {
	if f.report == nil {
		return ingestion.Report{}, false
	}
	return *f.report, true
}

type fixedLen int

func (n fixedLen) Len() int { return int(n) }

// newTestServer builds a Server with an isolated metrics registry and a
// silent logger.
func newTestServer(t *testing.T, responder Responder, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	reg := prometheus.NewRegistry()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	cfg.Logger = logging.Discard()
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1000
		cfg.RateBurst = 1000
	}
	s, err := New(responder, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func postChatbot(t *testing.T, h http.Handler, body string, header map[string]string) (*httptest.ResponseRecorder, chatbotResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chatbot/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp chatbotResponse
	if ct := w.Header().Get("Content-Type"); ct == "application/json" {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return w, resp
}

const testAPIKey = "test-key"

// keyed returns headers authenticating as username with testAPIKey.
func keyed(username string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAPIKey, userHeader: username}
}

func TestNew_RejectsNilResponder(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &Config{}); err == nil {
		t.Fatal("expected error for nil responder")
	}
}

func TestChatbot_Success(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{}
	s := newTestServer(t, resp, nil)

	body := `{"message":"Any alerts near me?","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}],"location":{"lat":37.5665,"lon":126.978}}`
	w, out := postChatbot(t, s.Handler(), body, map[string]string{userHeader: "minji"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out.Reply != "Stay indoors." {
		t.Errorf("reply = %q", out.Reply)
	}
	if resp.message != "Any alerts near me?" {
		t.Errorf("message = %q", resp.message)
	}
	if len(resp.history) != 2 || resp.history[1].Role != chat.RoleAssistant {
		t.Errorf("history = %+v", resp.history)
	}
	if resp.user == nil || resp.user.Username != "minji" || resp.user.Location == nil || resp.user.Location.Lat != 37.5665 {
		t.Errorf("user = %+v", resp.user)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing request ID header")
	}
}

func TestChatbot_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		reply string
	}{
		{"blank message", `{"message":"   "}`, replyEmptyMessage},
		{"missing message", `{}`, replyEmptyMessage},
		{"malformed json", `{"message":`, replyBadRequest},
		{"latitude out of range", `{"message":"hi","location":{"lat":91,"lon":0}}`, replyBadLocation},
		{"unknown role", `{"message":"hi","history":[{"role":"tool","content":"x"}]}`, replyBadRole},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp := &fakeResponder{}
			s := newTestServer(t, resp, nil)

			w, out := postChatbot(t, s.Handler(), tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if out.Reply != tc.reply {
				t.Errorf("reply = %q, want %q", out.Reply, tc.reply)
			}
			if resp.calls != 0 {
				t.Errorf("responder called %d times for a rejected request", resp.calls)
			}
		})
	}
}

func TestChatbot_ModelFailureStillReturns200(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{result: conversation.Result{Reply: conversation.ReplyNetwork, Outcome: conversation.OutcomeNetwork}}
	hist := newFakeHistory()
	s := newTestServer(t, resp, &Config{History: hist, APIKey: testAPIKey})

	w, out := postChatbot(t, s.Handler(), `{"message":"hello"}`, keyed("minji"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if out.Reply != conversation.ReplyNetwork {
		t.Errorf("reply = %q", out.Reply)
	}
	if n := len(hist.msgs["minji"]); n != 0 {
		t.Errorf("failed turn persisted %d messages", n)
	}
}

func TestChatbot_StoredHistory(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{}
	hist := newFakeHistory()
	s := newTestServer(t, resp, &Config{History: hist, HistoryDepth: 2, APIKey: testAPIKey})
	ctx := t.Context()
	_ = hist.Append(ctx, "minji", store.RoleUser, "first")
	_ = hist.Append(ctx, "minji", store.RoleAssistant, "first reply")
	_ = hist.Append(ctx, "minji", store.RoleUser, "second")

	postChatbot(t, s.Handler(), `{"message":"third"}`, keyed("minji"))

	if len(resp.history) != 2 || resp.history[0].Content != "first reply" || resp.history[1].Role != chat.RoleUser {
		t.Errorf("loaded history = %+v, want last two stored messages", resp.history)
	}
	got := hist.msgs["minji"]
	if len(got) != 5 || got[3].Content != "third" || got[4].Content != "Stay indoors." || got[4].Role != store.RoleAssistant {
		t.Errorf("stored = %+v, want the turn appended", got)
	}

	// An explicit empty history is honoured and not replaced.
	postChatbot(t, s.Handler(), `{"message":"fresh","history":[]}`, keyed("minji"))
	if len(resp.history) != 0 {
		t.Errorf("explicit empty history replaced with %d stored messages", len(resp.history))
	}
}

func TestChatbot_HistoryLookupFailure(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{}
	hist := newFakeHistory()
	hist.recentErr = errors.New("database is locked")
	s := newTestServer(t, resp, &Config{History: hist, APIKey: testAPIKey})

	w, _ := postChatbot(t, s.Handler(), `{"message":"hello"}`, keyed("minji"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.history != nil {
		t.Errorf("history = %+v, want none after lookup failure", resp.history)
	}
}

func TestChatbot_AnonymousHistoryNotPersisted(t *testing.T) {
	t.Parallel()

	hist := newFakeHistory()
	s := newTestServer(t, &fakeResponder{}, &Config{History: hist})

	postChatbot(t, s.Handler(), `{"message":"hello"}`, nil)
	if len(hist.msgs) != 0 {
		t.Errorf("anonymous turn persisted: %+v", hist.msgs)
	}
}

func TestChatbot_UnverifiedCallerHasNoStoredHistory(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{}
	hist := newFakeHistory()
	_ = hist.Append(t.Context(), "minji", store.RoleUser, "my address is private")
	s := newTestServer(t, resp, &Config{History: hist})

	w, _ := postChatbot(t, s.Handler(), `{"message":"what did I say?"}`, map[string]string{userHeader: "minji"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.history != nil {
		t.Errorf("header-named caller read stored history: %+v", resp.history)
	}
	if n := len(hist.msgs["minji"]); n != 1 {
		t.Errorf("stored messages = %d, want 1 (nothing appended)", n)
	}
	if resp.user == nil || resp.user.Username != "minji" {
		t.Errorf("user = %+v, want header name passed through", resp.user)
	}
}

func TestChatbot_RequiresAuthWhenConfigured(t *testing.T) {
	t.Parallel()

	resp := &fakeResponder{}
	s := newTestServer(t, resp, &Config{JWTSecret: "s3cret"})

	if w, _ := postChatbot(t, s.Handler(), `{"message":"hello"}`, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}

	tok, err := IssueToken([]byte("s3cret"), "jisoo", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	w, _ := postChatbot(t, s.Handler(), `{"message":"hello"}`, map[string]string{"Authorization": "Bearer " + tok})
	if w.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, want 200", w.Code)
	}
	if resp.user.Username != "jisoo" {
		t.Errorf("username = %q, want jisoo", resp.user.Username)
	}
}

func TestHandleStats(t *testing.T) {
	t.Parallel()

	rep := &ingestion.Report{Sources: 3, Indexed: 42}
	s := newTestServer(t, &fakeResponder{}, &Config{
		Index:     fixedLen(42),
		Ingestion: fakeIngestion{state: ingestion.StateDone, report: rep},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/index/stats", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got statsResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Chunks != 42 || got.Ingestion.State != ingestion.StateDone {
		t.Errorf("stats = %+v", got)
	}
	if got.Ingestion.Report == nil || got.Ingestion.Report.Indexed != 42 {
		t.Errorf("report = %+v", got.Ingestion.Report)
	}
}

func TestHandleStats_NothingWired(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeResponder{}, nil)
	w := httptest.NewRecorder()
	s.handleStats(w, httptest.NewRequest(http.MethodGet, "/api/index/stats", nil))

	var got statsResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Chunks != 0 || got.Ingestion.State != ingestion.StateIdle || got.Ingestion.Report != nil {
		t.Errorf("stats = %+v", got)
	}
}

func TestServe_RunsOnReadyAndShutsDown(t *testing.T) {
	t.Parallel()

	ready := make(chan struct{})
	s := newTestServer(t, &fakeResponder{}, &Config{
		OnReady: func(context.Context) { close(ready) },
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("OnReady not called")
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+ln.Addr().String()+"/api/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", res.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
