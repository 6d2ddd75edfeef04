package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine-wide Prometheus collectors, registered on the default registry and
// served by promhttp at /metrics.
var (
	TriplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sophia_triples_ingested_total",
		Help: "Triples stored or merged by ingestion.",
	})

	IngestSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sophia_ingest_skipped_total",
		Help: "Ingest candidates skipped for validation or index failures.",
	})

	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sophia_queries_total",
		Help: "Retrieval operations by kind.",
	}, []string{"kind"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sophia_query_duration_seconds",
		Help:    "Retrieval latency by kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ConsolidationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sophia_consolidation_runs_total",
		Help: "Background consolidation runs by outcome.",
	}, []string{"status"})

	ConsolidationPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sophia_consolidation_pending",
		Help: "Sessions currently waiting on a consolidation pass.",
	})
)
