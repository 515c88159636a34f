package chat

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// instrumented counts the outcome of every call to the wrapped Model.
type instrumented struct {
	Model
	requests *prometheus.CounterVec
}

// Instrument wraps m so each Complete call increments
// climatetrack_chat_requests_total{outcome}. A nil reg yields working but
// unregistered collectors.
func Instrument(m Model, reg prometheus.Registerer) Model {
	return &instrumented{
		Model: m,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatetrack",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat model calls partitioned by outcome.",
		}, []string{"outcome"}),
	}
}

func (i *instrumented) Complete(ctx context.Context, messages []Message) (string, error) {
	reply, err := i.Model.Complete(ctx, messages)
	i.requests.WithLabelValues(Outcome(err)).Inc()
	return reply, err
}

// Ping forwards to the wrapped model when it supports health checks.
func (i *instrumented) Ping(ctx context.Context) error {
	if p, ok := i.Model.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Outcome returns the metric label for err: ok, network, status, protocol
// or error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	}
	return "error"
}
