package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pressqa-go/internal/qa"
	"github.com/54b3r/pressqa-go/internal/rag"
	"github.com/54b3r/pressqa-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds a single /api/ask request, generation included.
	// Defaults to 2 minutes.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /api/ask and
	// /api/search (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on /api/ask, /api/search, and
	// /api/history. If empty, authentication is disabled (development mode).
	APIKey string
	// DefaultTopK is used when a request omits top_k. Defaults to rag.DefaultTopK.
	DefaultTopK int
	// DefaultThreshold is used when a request omits similarity_threshold.
	// Defaults to rag.DefaultThreshold.
	DefaultThreshold *float64
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is what the ask and search handlers call. *qa.Service
// satisfies it; tests inject a fake.
type answerer interface {
	// Answer retrieves context and generates an answer.
	Answer(ctx context.Context, question string, topK int, threshold float64) (*qa.Answer, error)
	// Search runs retrieval only.
	Search(ctx context.Context, question string, topK int, threshold float64) ([]rag.Result, error)
}

// Server exposes the question-answering service over HTTP.
type Server struct {
	// qa handles /api/ask and /api/search.
	qa answerer
	// history backs /api/history. May be nil.
	history store.QueryLog
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// TopK is the number of chunks to retrieve. Optional.
	TopK *int `json:"top_k,omitempty"`
	// Threshold is the minimum cosine similarity. Optional.
	Threshold *float64 `json:"similarity_threshold,omitempty"`
}

// askResponse is the JSON body returned by POST /api/ask.
type askResponse struct {
	// Answer is the generated text, the no-results message, or a fallback.
	Answer string `json:"answer"`
	// Results are the retrieved chunks, best first.
	Results []rag.Result `json:"results"`
	// Generated is false when no chunk passed the threshold.
	Generated bool `json:"generated"`
}

// searchResponse is the JSON body returned by GET /api/search.
type searchResponse struct {
	// Results are the retrieved chunks, best first.
	Results []rag.Result `json:"results"`
}

// historyResponse is the JSON body returned by GET /api/history.
type historyResponse struct {
	// Entries are the most recent answered questions, newest first.
	Entries []store.Entry `json:"entries"`
}

// errorResponse is the JSON body of every 4xx/5xx produced by a handler.
type errorResponse struct {
	// Error is a human-readable message.
	Error string `json:"error"`
	// Field names the offending parameter for validation errors.
	Field string `json:"field,omitempty"`
}
