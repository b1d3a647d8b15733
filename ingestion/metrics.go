package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var (
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragline_ingest_events_total",
			Help: "Ingest events by outcome (indexed, failed, skipped)",
		},
		[]string{"outcome"},
	)
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragline_ingest_batches_total",
			Help: "Flushed batches by outcome (committed, failed)",
		},
		[]string{"outcome"},
	)
	flushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragline_ingest_flush_duration_seconds",
			Help:    "Time to embed and write one batch",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)
)

var tracer = otel.Tracer("github.com/poiesic/ragline/ingestion")

func init() {
	prometheus.MustRegister(eventsTotal, batchesTotal, flushDuration)
}
