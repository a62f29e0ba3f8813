package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for pressqa_ask_requests_total.
const (
	outcomeOK          = "ok"
	outcomeNoResults   = "no_results"
	outcomeBadRequest  = "bad_request"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

// labelHandler partitions HTTP metrics by route pattern rather than raw path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created per Server so tests can inject a fresh
// prometheus.Registry.
type serverMetrics struct {
	// askRequestsTotal counts /api/ask requests by outcome.
	askRequestsTotal *prometheus.CounterVec

	// askDurationSeconds records /api/ask latency, generation included.
	askDurationSeconds *prometheus.HistogramVec

	// retrievedChunks records how many chunks passed the threshold per answered question.
	retrievedChunks prometheus.Histogram

	// rateLimitedTotal counts requests rejected by the per-IP limiter.
	rateLimitedTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests by method, route, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressqa",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /api/ask requests, partitioned by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pressqa",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Duration of /api/ask requests from receipt to response.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		retrievedChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pressqa",
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Number of chunks above the similarity threshold per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15},
		}),

		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pressqa",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by the per-IP rate limiter.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pressqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pressqa",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeAsk records one /api/ask outcome. results < 0 means retrieval did
// not complete and is not recorded.
func (m *serverMetrics) observeAsk(outcome string, start time.Time, results int) {
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if results >= 0 {
		m.retrievedChunks.Observe(float64(results))
	}
}

// outcomeFor maps an error status to an ask outcome label.
func outcomeFor(status int) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return outcomeUnavailable
	case status < http.StatusInternalServerError:
		return outcomeBadRequest
	default:
		return outcomeError
	}
}

// instrument wraps the mux and records per-route request counts and
// latency. It must sit directly around the ServeMux so r.Pattern is set
// on the request it observes.
func (m *serverMetrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}
		start := time.Now()
		next.ServeHTTP(rw, r)

		handler := r.Pattern
		if handler == "" {
			handler = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
