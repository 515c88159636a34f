// Package conversation answers one chat turn: it grounds the message,
// composes the ordered request for the chat model and converts every
// failure into a fixed user-facing reply. No error crosses Respond.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mifdirfan/climatetrack/internal/budget"
	"github.com/mifdirfan/climatetrack/internal/chat"
	"github.com/mifdirfan/climatetrack/internal/grounding"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/records"
)

// User-facing replies.
const (
	ReplyBlank    = "Please provide a message to the chatbot."
	ReplyEmpty    = "Sorry, I received an empty response. Could you try rephrasing?"
	ReplyNetwork  = "Sorry, I couldn't reach the AI service due to a network issue."
	ReplyStatus   = "Sorry, there was an issue communicating with the AI service."
	ReplyInternal = "Sorry, I encountered an internal error. Please try again later."
)

// DefaultPersona opens the system prompt.
const DefaultPersona = "You are a helpful assistant for ClimateTrack, a disaster tracking and " +
	"preparedness service. Answer questions about hazards, alerts, news and emergency " +
	"preparation. Prefer the information in CONTEXT when it is relevant and say so when " +
	"it does not cover the question. Keep answers short and practical."

// Outcome labels a finished turn.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeBlank    Outcome = "blank"
	OutcomeEmpty    Outcome = "empty"
	OutcomeNetwork  Outcome = "network"
	OutcomeStatus   Outcome = "status"
	OutcomeInternal Outcome = "error"
)

// User identifies who is asking. Both fields are optional.
type User struct {
	Username string
	Location *records.Point
}

// ContextBuilder produces the grounding context for a message.
type ContextBuilder interface {
	Assemble(ctx context.Context, message string, location *records.Point) grounding.QueryContext
}

// Config configures a Service.
type Config struct {
	// Context builds the grounding context. Required.
	Context ContextBuilder
	// Model answers the composed request. Required.
	Model chat.Model
	// Persona replaces DefaultPersona when non-empty.
	Persona string
	// MaxTokens bounds system prompt, history and message together.
	// Zero means budget.DefaultMaxContextTokens.
	MaxTokens int
	// Timeout bounds the model call. Zero means no extra deadline.
	Timeout    time.Duration
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Result describes a finished turn.
type Result struct {
	Reply   string
	Outcome Outcome
	Intent  grounding.Intent
}

// Service is safe for concurrent use.
type Service struct {
	builder   ContextBuilder
	model     chat.Model
	persona   string
	maxTokens int
	timeout   time.Duration
	log       *slog.Logger
	metrics   *serviceMetrics
}

// NewService validates cfg and returns a Service.
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil || cfg.Context == nil {
		return nil, fmt.Errorf("conversation: context builder must not be nil")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("conversation: chat model must not be nil")
	}
	s := &Service{
		builder:   cfg.Context,
		model:     cfg.Model,
		persona:   cfg.Persona,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		log:       logging.OrDefault(cfg.Logger),
		metrics:   newServiceMetrics(cfg.Registerer),
	}
	if s.persona == "" {
		s.persona = DefaultPersona
	}
	if s.maxTokens <= 0 {
		s.maxTokens = budget.DefaultMaxContextTokens
	}
	return s, nil
}

// Respond returns the reply text for one turn. It always returns a
// non-empty string.
func (s *Service) Respond(ctx context.Context, message string, history []chat.Message, user *User) string {
	return s.Turn(ctx, message, history, user).Reply
}

// Turn is Respond with the outcome and intent exposed.
func (s *Service) Turn(ctx context.Context, message string, history []chat.Message, user *User) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "conversation: recovered panic", slog.Any("panic", r))
			res = Result{Reply: ReplyInternal, Outcome: OutcomeInternal, Intent: res.Intent}
		}
		s.metrics.replies.WithLabelValues(string(res.Outcome)).Inc()
		s.log.InfoContext(ctx, "conversation: turn finished",
			slog.String("outcome", string(res.Outcome)),
			slog.String("intent", string(res.Intent)),
			slog.Duration("duration", time.Since(start)),
		)
	}()

	if strings.TrimSpace(message) == "" {
		return Result{Reply: ReplyBlank, Outcome: OutcomeBlank}
	}

	var location *records.Point
	if user != nil {
		location = user.Location
	}

	qc := s.builder.Assemble(ctx, message, location)
	res.Intent = qc.Intent
	s.metrics.intents.WithLabelValues(string(qc.Intent)).Inc()

	msgs := s.compose(qc.Text, message, history)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.model.Complete(callCtx, msgs)
	if err != nil {
		res.Reply, res.Outcome = classify(err)
		s.log.ErrorContext(ctx, "conversation: chat model call failed",
			slog.String("outcome", string(res.Outcome)),
			slog.Any("error", err),
		)
		return res
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		s.log.WarnContext(ctx, "conversation: chat model returned an empty reply")
		res.Reply, res.Outcome = ReplyEmpty, OutcomeEmpty
		return res
	}
	res.Reply, res.Outcome = reply, OutcomeOK
	return res
}

// SystemPrompt renders the persona followed by the grounding context.
func (s *Service) SystemPrompt(contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		contextText = grounding.NoContext
	}
	return s.persona + "\n\nCONTEXT:\n" + contextText
}

// compose orders the request as system prompt, trimmed history, then the
// new user message. history itself is never modified.
func (s *Service) compose(contextText, message string, history []chat.Message) []chat.Message {
	system := chat.Message{Role: chat.RoleSystem, Content: s.SystemPrompt(contextText)}
	current := chat.Message{Role: chat.RoleUser, Content: message}

	kept := budget.TrimHistory([]chat.Message{system, current}, history, s.maxTokens)

	msgs := make([]chat.Message, 0, len(kept)+2)
	msgs = append(msgs, system)
	msgs = append(msgs, kept...)
	return append(msgs, current)
}

func classify(err error) (string, Outcome) {
	switch {
	case errors.Is(err, chat.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return ReplyNetwork, OutcomeNetwork
	case errors.Is(err, chat.ErrStatus):
		return ReplyStatus, OutcomeStatus
	}
	return ReplyInternal, OutcomeInternal
}
