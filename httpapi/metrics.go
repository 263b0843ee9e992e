package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_orders_placed_total",
			Help: "Order placements by type and result.",
		},
		[]string{"type", "result"},
	)
	eventsSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_events_settled_total",
			Help: "Settlement events consumed by kind.",
		},
		[]string{"kind"},
	)
	ordersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dex_orders_cancelled_total",
			Help: "Resting orders cancelled.",
		},
	)
)

// RegisterMetrics installs the API collectors on the given registry.
func RegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(requestCount, requestDuration, ordersPlaced, eventsSettled, ordersCancelled)
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
