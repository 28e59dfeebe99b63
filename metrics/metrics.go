// Package metrics provides Prometheus instrumentation for the trade store.
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
	// CorruptEntries counts stored values skipped because they could not be decoded.
	CorruptEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradestore_corrupt_entries_total",
		Help: "Stored entries skipped during a scan because they failed to decode",
	}, []string{"table"})

	// GroupCommits counts coordinated writes committed on every participant.
	GroupCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradestore_group_commits_total",
		Help: "Coordinated writes committed on every participant",
	}, []string{"operation"})

	// GroupRollbacks counts coordinated writes rolled back on every participant.
	GroupRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradestore_group_rollbacks_total",
		Help: "Coordinated writes rolled back on every participant",
	}, []string{"operation"})

	// PartialCommits counts coordinated writes where a commit failed after
	// another participant had already committed.
	PartialCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradestore_partial_commits_total",
		Help: "Coordinated writes left partially committed",
	}, []string{"operation"})

	// IdsIssued counts ids handed out per counter.
	IdsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradestore_ids_issued_total",
		Help: "Ids issued by the sequence generator",
	}, []string{"counter"})

	// OperationDuration tracks repository operation latency.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradestore_operation_duration_seconds",
		Help:    "Repository operation latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"operation"})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradestore_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
)

// Observe records the time elapsed since start for operation.
func Observe(operation string, start time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
// route maps a request to a low cardinality label.
func Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			HTTPRequestsTotal.WithLabelValues(r.Method, route(r), strconv.Itoa(wrapped.status)).Inc()
		})
	}
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
