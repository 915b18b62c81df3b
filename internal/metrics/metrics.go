package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_ws_connections",
			Help: "Number of live websocket connections",
		},
	)

	EventsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_delivered_total",
			Help: "Events written to at least one websocket send buffer",
		},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Events published with no live connection for the target user",
		},
	)

	TotalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests to the relay",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Histogram of relay HTTP response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func Register() {
	prometheus.MustRegister(
		ActiveConnections,
		EventsDelivered,
		EventsDropped,
		TotalRequests,
		RequestDuration,
	)
}

// Middleware records request counts and durations per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(startTime).Seconds()
		status := strconv.Itoa(ww.Status())

		TotalRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		RequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
	})
}
