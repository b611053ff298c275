package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request boundary metrics
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackworker_requests_total",
		Help: "Total number of requests handled, by request type",
	}, []string{"type"})

	RequestFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackworker_request_failures_total",
		Help: "Total number of requests that yielded an error response",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trackworker_request_duration_seconds",
		Help:    "Time taken to fully process one request",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"type"})

	// Pipeline stage metrics
	DecodedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackworker_decoded_bytes_total",
		Help: "Total size of raw buffers decoded into datasets",
	})

	FeaturesRetained = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trackworker_filter_features_retained",
		Help:    "Features remaining in a dataset after viewport filtering",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8), // 10 to ~160k
	})

	InFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trackworker_inflight_requests",
		Help: "Requests accepted but not yet answered",
	})
)
