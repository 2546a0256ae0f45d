// Package metrics provides Prometheus instrumentation for the margin engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CalculationsTotal counts calculation runs, partitioned by outcome.
	CalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simm_calculations_total",
		Help: "Total number of margin calculation runs",
	}, []string{"status"})

	// CalculationDuration tracks end-to-end run duration.
	CalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simm_calculation_duration_seconds",
		Help:    "Margin calculation run duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// CrifRecordsTotal counts CRIF records accepted into runs.
	CrifRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simm_crif_records_total",
		Help: "Total CRIF records processed",
	})

	// NettingSetsPerRun observes the number of netting sets in each run.
	NettingSetsPerRun = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simm_netting_sets_per_run",
		Help:    "Netting sets per calculation run",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simm_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
