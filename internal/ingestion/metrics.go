package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pipelineMetrics holds the Prometheus collectors updated by a Pipeline.
type pipelineMetrics struct {
	// chunks counts chunk outcomes: indexed, dropped (embed failure) or
	// filtered (too short).
	chunks *prometheus.CounterVec
	// sources counts per-source extraction outcomes by kind.
	sources *prometheus.CounterVec
	// duration records the wall-clock time of each Run.
	duration prometheus.Histogram
}

// newPipelineMetrics registers the pipeline metrics against reg. A nil reg
// yields working but unregistered collectors.
func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(reg)
	return &pipelineMetrics{
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatetrack",
			Subsystem: "ingestion",
			Name:      "chunks_total",
			Help:      "Chunks processed by the ingestion pipeline, partitioned by outcome.",
		}, []string{"outcome"}),
		sources: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climatetrack",
			Subsystem: "ingestion",
			Name:      "sources_total",
			Help:      "Source files processed by the ingestion pipeline, partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climatetrack",
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a full ingestion run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}
