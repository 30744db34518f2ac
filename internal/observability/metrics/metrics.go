package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrax_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meditrax_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	stockAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrax_stock_adjustments_total",
		Help: "Count of stock adjustments by result",
	}, []string{"result"})

	dispenses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meditrax_dispenses_total",
		Help: "Count of dispense requests by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric.
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveAdjustment increments the adjustment counter for the given result.
func ObserveAdjustment(result string) {
	stockAdjustments.WithLabelValues(result).Inc()
}

// ObserveDispense increments the dispense counter for the given result.
func ObserveDispense(result string) {
	dispenses.WithLabelValues(result).Inc()
}
