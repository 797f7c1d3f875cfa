// Package metrics exposes Prometheus collectors for the search service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	urlChecksTotal             *prometheus.CounterVec
	urlCheckDurationSeconds    prometheus.Histogram
	checkBatchesTotal          *prometheus.CounterVec
	indexOperationsTotal       *prometheus.CounterVec
	searchesTotal              *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		urlChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesearch_url_checks_total",
				Help: "Total number of URL health checks, labeled by outcome.",
			},
			[]string{"status"},
		)

		urlCheckDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitesearch_url_check_duration_seconds",
				Help:    "Histogram of URL probe latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		checkBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesearch_check_batches_total",
				Help: "Total number of health-check batches, labeled by result.",
			},
			[]string{"result"},
		)

		indexOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesearch_index_operations_total",
				Help: "Total number of index mutations, labeled by operation.",
			},
			[]string{"op"},
		)

		searchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesearch_searches_total",
				Help: "Total number of searches, labeled by whether anything matched.",
			},
			[]string{"has_results"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitesearch_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitesearch_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveURLCheck records one probe outcome and its latency.
func ObserveURLCheck(status string, duration time.Duration) {
	Init()
	urlChecksTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		urlCheckDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveCheckBatch records a finished health-check batch.
func ObserveCheckBatch(result string) {
	Init()
	checkBatchesTotal.WithLabelValues(result).Inc()
}

// ObserveIndexOperation records an index mutation such as "add" or "remove".
func ObserveIndexOperation(op string) {
	Init()
	indexOperationsTotal.WithLabelValues(op).Inc()
}

// ObserveSearch records a search request.
func ObserveSearch(hasResults bool) {
	Init()
	searchesTotal.WithLabelValues(strconv.FormatBool(hasResults)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
