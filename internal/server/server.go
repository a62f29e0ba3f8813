// Package server exposes the press-release question-answering service over
// HTTP. It is started by the `pressqa serve` CLI command.
//
// Routes:
//
//	POST /api/ask      answer a question (auth, rate limited)
//	GET  /api/search   raw retrieval results (auth, rate limited)
//	GET  /api/history  recent answered questions (auth)
//	GET  /api/health   liveness
//	GET  /api/ready    dependency readiness
//	GET  /metrics      Prometheus exposition
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/qa"
	"github.com/54b3r/pressqa-go/internal/rag"
	"github.com/54b3r/pressqa-go/internal/store"
)

// maxBodyBytes caps the /api/ask request body.
const maxBodyBytes = 64 << 10

// defaultHistoryLimit is the number of entries /api/history returns when
// the request does not set ?limit.
const defaultHistoryLimit = 20

// New constructs a Server around svc. history may be nil, in which case
// /api/history responds 404.
func New(svc *qa.Service, history store.QueryLog, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("server: qa service must not be nil")
	}
	return newServer(svc, history, cfg), nil
}

// newServer resolves defaults and builds the handler tree.
func newServer(svc answerer, history store.QueryLog, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = cfg.AskTimeout + 10*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.DefaultTopK == 0 {
		cfg.DefaultTopK = rag.DefaultTopK
	}
	if cfg.DefaultThreshold == nil {
		th := rag.DefaultThreshold
		cfg.DefaultThreshold = &th
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		qa:      svc,
		history: history,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.metrics)
	s.stopRL = stop

	protected := func(h http.HandlerFunc) http.Handler { return authMiddleware(cfg.APIKey, h) }
	limited := func(h http.HandlerFunc) http.Handler { return rl.middleware(protected(h)) }

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", limited(s.handleAsk))
	mux.Handle("GET /api/search", limited(s.handleSearch))
	mux.Handle("GET /api/history", protected(s.handleHistory))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	if cfg.APIKey == "" {
		s.log.Warn("API key not set, authentication disabled")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, s.metrics.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler. Exposed for in-process tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.metrics.observeAsk(outcomeBadRequest, start, -1)
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.metrics.observeAsk(outcomeBadRequest, start, -1)
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "question is required", Field: "question"})
		return
	}

	topK, threshold := s.cfg.DefaultTopK, *s.cfg.DefaultThreshold
	if req.TopK != nil {
		topK = *req.TopK
	}
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	ans, err := s.qa.Answer(ctx, req.Question, topK, threshold)
	if err != nil {
		status, body := retrievalError(err)
		s.metrics.observeAsk(outcomeFor(status), start, -1)
		s.logFailure(r, status, err)
		writeError(w, r, status, body)
		return
	}

	outcome := outcomeOK
	if !ans.Generated {
		outcome = outcomeNoResults
	}
	s.metrics.observeAsk(outcome, start, len(ans.Results))

	results := ans.Results
	if results == nil {
		results = []rag.Result{}
	}
	writeJSON(w, r, http.StatusOK, askResponse{Answer: ans.Text, Results: results, Generated: ans.Generated})
}

// handleSearch handles GET /api/search?q=...&top_k=...&similarity_threshold=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	question := strings.TrimSpace(q.Get("q"))
	if question == "" {
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "q is required", Field: "q"})
		return
	}

	topK, threshold := s.cfg.DefaultTopK, *s.cfg.DefaultThreshold
	if v := q.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errorResponse{Error: "top_k must be an integer", Field: "top_k"})
			return
		}
		topK = n
	}
	if v := q.Get("similarity_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, errorResponse{Error: "similarity_threshold must be a number", Field: "similarity_threshold"})
			return
		}
		threshold = f
	}

	results, err := s.qa.Search(r.Context(), question, topK, threshold)
	if err != nil {
		status, body := retrievalError(err)
		s.logFailure(r, status, err)
		writeError(w, r, status, body)
		return
	}
	if results == nil {
		results = []rag.Result{}
	}
	writeJSON(w, r, http.StatusOK, searchResponse{Results: results})
}

// handleHistory handles GET /api/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotFound, errorResponse{Error: "query log disabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, r, http.StatusBadRequest, errorResponse{Error: "limit must be an integer in [1, 500]", Field: "limit"})
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logFailure(r, http.StatusInternalServerError, err)
		writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "could not read query log"})
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, r, http.StatusOK, historyResponse{Entries: entries})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// retrievalError maps a retrieval failure to an HTTP status and body.
func retrievalError(err error) (int, errorResponse) {
	var ce *rag.ConfigurationError
	switch {
	case errors.As(err, &ce) && ce.Field == rag.FieldEmbeddingDimensions:
		return http.StatusInternalServerError, errorResponse{Error: "embedding model does not match the index"}
	case errors.As(err, &ce):
		return http.StatusBadRequest, errorResponse{Error: ce.Error(), Field: ce.Field}
	case errors.Is(err, rag.ErrEmptyText):
		return http.StatusBadRequest, errorResponse{Error: "question is required", Field: "question"}
	case rag.IsIndexUnavailable(err):
		return http.StatusServiceUnavailable, errorResponse{Error: "vector index unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "request timed out"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

// logFailure logs handler errors; 4xx at warn, everything else at error.
func (s *Server) logFailure(r *http.Request, status int, err error) {
	log := logging.FromContext(r.Context())
	if status < http.StatusInternalServerError {
		log.Warn("request rejected", slog.Int("status", status), slog.String("error", err.Error()))
		return
	}
	log.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError writes body as a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, body errorResponse) {
	writeJSON(w, r, status, body)
}
