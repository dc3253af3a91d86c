// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pdf_rag"

var (
	// DocumentsIngested counts ingestions by mode: whole, chunked or failed.
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_ingested_total",
		Help:      "Documents ingested, by mode.",
	}, []string{"mode"})

	// ChunksProcessed counts per-chunk embedding outcomes: stored or failed.
	ChunksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_processed_total",
		Help:      "Chunks embedded during ingestion, by outcome.",
	}, []string{"outcome"})

	// Queries counts searches by how they were answered: ai, similarity, degraded or failed.
	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Search queries, by answer mode.",
	}, []string{"mode"})

	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_calls_total",
		Help:      "Calls to embedding and generation providers, by outcome.",
	}, []string{"gateway", "outcome"})

	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieval_duration_seconds",
		Help:      "Latency of the merged nearest-neighbor retrieval.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveGateway records one provider call.
func ObserveGateway(gateway string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GatewayCalls.WithLabelValues(gateway, outcome).Inc()
}
