package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// indexMetrics holds the Prometheus metrics owned by an Index.
type indexMetrics struct {
	// size is the number of chunks currently stored.
	size prometheus.Gauge
	// queryDuration records the wall-clock time of each Search call.
	queryDuration prometheus.Histogram
	// dimensionMismatch counts stored entries skipped because their
	// dimension differed from the query's.
	dimensionMismatch prometheus.Counter
}

// newIndexMetrics registers the index metrics against reg. A nil reg yields
// working but unregistered collectors.
func newIndexMetrics(reg prometheus.Registerer) *indexMetrics {
	factory := promauto.With(reg)

	return &indexMetrics{
		size: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "climatetrack",
			Subsystem: "index",
			Name:      "size",
			Help:      "Number of chunks held by the in-memory vector index.",
		}),
		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climatetrack",
			Subsystem: "index",
			Name:      "query_duration_seconds",
			Help:      "Latency of exact cosine-similarity scans over the index.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}),
		dimensionMismatch: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "climatetrack",
			Subsystem: "index",
			Name:      "dimension_mismatch_total",
			Help:      "Stored entries skipped during a query because their dimension differed from the query embedding.",
		}),
	}
}
