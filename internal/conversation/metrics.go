package conversation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serviceMetrics struct {
	replies *prometheus.CounterVec
	intents *prometheus.CounterVec
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	factory := promauto.With(reg)
	return &serviceMetrics{
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatetrack",
			Subsystem: "conversation",
			Name:      "replies_total",
			Help:      "Conversation turns partitioned by outcome.",
		}, []string{"outcome"}),
		intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatetrack",
			Subsystem: "conversation",
			Name:      "intent_total",
			Help:      "Classified intents of non-blank user messages.",
		}, []string{"intent"}),
	}
}
