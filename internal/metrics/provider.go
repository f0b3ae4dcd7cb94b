package metrics

import "github.com/prometheus/client_golang/prometheus"

// Geospatial provider and dispatcher Prometheus metrics.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panoview",
			Name:      "provider_requests_total",
			Help:      "Total number of geospatial provider requests",
		},
		[]string{"endpoint", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "panoview",
			Name:      "provider_request_duration_seconds",
			Help:      "Geospatial provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	ProviderDetailsCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panoview",
			Name:      "provider_details_cache_total",
			Help:      "Place-details cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "panoview",
			Name:      "dispatch_queue_depth",
			Help:      "Number of tasks waiting for rate-limit replay",
		},
	)

	DispatchLimited = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "panoview",
			Name:      "dispatch_limited",
			Help:      "1 while the dispatcher is in the rate-limited state",
		},
	)

	DispatchReplaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panoview",
			Name:      "dispatch_replays_total",
			Help:      "Total queued task replays",
		},
		[]string{"status"},
	)
)

var providerMetricsRegistered bool

// RegisterProviderMetrics registers provider and dispatcher metrics.
// Must be called once from main.
func RegisterProviderMetrics() {
	if providerMetricsRegistered {
		return
	}
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ProviderDetailsCacheTotal)
	prometheus.MustRegister(DispatchQueueDepth)
	prometheus.MustRegister(DispatchLimited)
	prometheus.MustRegister(DispatchReplaysTotal)
	providerMetricsRegistered = true
}
