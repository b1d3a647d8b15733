package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragline_query_requests_total",
			Help: "Query requests by outcome (ok, invalid, retrieval_failed, generation_failed)",
		},
		[]string{"outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragline_query_step_duration_seconds",
			Help:    "Duration of each query step",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"step"},
	)
)

var tracer = otel.Tracer("github.com/poiesic/ragline/query")

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration)
}
