package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "transport_backend", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "transport_backend",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	TripRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "transport_backend", Name: "trip_requests_total", Help: "Trip request workflow actions by outcome"},
		[]string{"action"},
	)
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{Namespace: "transport_backend", Name: "websocket_clients", Help: "Connected realtime clients"},
	)
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "transport_backend", Name: "notification_failures_total", Help: "Failed outbound notifications by channel"},
		[]string{"channel"},
	)
)

// RequestMetrics records per-request counters and latency. Uses the
// route template, not the raw URL, so path cardinality stays bounded.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
