package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/pressqa-go/internal/qa"
	"github.com/54b3r/pressqa-go/internal/rag"
	"github.com/54b3r/pressqa-go/internal/store"
)

// fakeAnswerer records the parameters it was called with.
type fakeAnswerer struct {
	answer  *qa.Answer
	results []rag.Result
	err     error

	gotQuestion  string
	gotTopK      int
	gotThreshold float64
}

func (f *fakeAnswerer) Answer(_ context.Context, q string, topK int, th float64) (*qa.Answer, error) {
	f.gotQuestion, f.gotTopK, f.gotThreshold = q, topK, th
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeAnswerer) Search(_ context.Context, q string, topK int, th float64) ([]rag.Result, error) {
	f.gotQuestion, f.gotTopK, f.gotThreshold = q, topK, th
	return f.results, f.err
}

type fakeHistory struct {
	entries []store.Entry
	err     error
	gotN    int
}

func (f *fakeHistory) Append(context.Context, store.Entry) error { return nil }
func (f *fakeHistory) Recent(_ context.Context, n int) ([]store.Entry, error) {
	f.gotN = n
	return f.entries, f.err
}
func (f *fakeHistory) Close() error { return nil }

// newTestServer builds a Server with an isolated registry and a discarding
// logger. cfg may be nil.
func newTestServer(t *testing.T, a answerer, h store.QueryLog, cfg *Config) (*Server, *prometheus.Registry) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	reg := prometheus.NewRegistry()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newServer(a, h, cfg)
	t.Cleanup(s.stopRL)
	return s, reg
}

func do(t *testing.T, s *Server, method, target, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

var sample = rag.Result{
	Content: "Telekom expands AI.", Title: "AI", PublishDate: "2024-05-07",
	SourceLink: "https://x/ai", Similarity: 0.62,
}

func TestAsk_Success(t *testing.T) {
	t.Parallel()

	fa := &fakeAnswerer{answer: &qa.Answer{Text: "Telekom expands AI [1].", Results: []rag.Result{sample}, Generated: true}}
	s, _ := newTestServer(t, fa, nil, nil)

	w := do(t, s, http.MethodPost, "/api/ask", `{"question":"What are the AI initiatives?","top_k":3,"similarity_threshold":0.7}`)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != fa.answer.Text || len(resp.Results) != 1 || !resp.Generated {
		t.Errorf("unexpected response %+v", resp)
	}
	if fa.gotTopK != 3 || fa.gotThreshold != 0.7 {
		t.Errorf("params not forwarded: top_k=%d threshold=%v", fa.gotTopK, fa.gotThreshold)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestAsk_DefaultsAndEmptyResults(t *testing.T) {
	t.Parallel()

	fa := &fakeAnswerer{answer: &qa.Answer{Text: qa.NoResultsMessage}}
	s, _ := newTestServer(t, fa, nil, nil)

	w := do(t, s, http.MethodPost, "/api/ask", `{"question":"What is the square root of pi?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if fa.gotTopK != rag.DefaultTopK || fa.gotThreshold != rag.DefaultThreshold {
		t.Errorf("defaults not applied: top_k=%d threshold=%v", fa.gotTopK, fa.gotThreshold)
	}
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("want an empty results array, got %s", w.Body.String())
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		err       error
		wantCode  int
		wantField string
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest, ""},
		{"blank question", `{"question":"  "}`, nil, http.StatusBadRequest, "question"},
		{"bad top_k", `{"question":"q","top_k":16}`, &rag.ConfigurationError{Field: "top_k", Value: 16, Reason: "range"}, http.StatusBadRequest, "top_k"},
		{"embedder does not match index", `{"question":"q"}`, &rag.ConfigurationError{Field: rag.FieldEmbeddingDimensions, Value: 3, Reason: "model"}, http.StatusInternalServerError, ""},
		{"index down", `{"question":"q"}`, &rag.IndexUnavailableError{Op: "search", Err: errors.New("refused")}, http.StatusServiceUnavailable, ""},
		{"deadline", `{"question":"q"}`, context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
		{"other", `{"question":"q"}`, errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestServer(t, &fakeAnswerer{err: tc.err}, nil, nil)
			w := do(t, s, http.MethodPost, "/api/ask", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("want %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == "" || body.Field != tc.wantField {
				t.Errorf("unexpected error body %+v", body)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	fa := &fakeAnswerer{results: []rag.Result{sample}}
	s, _ := newTestServer(t, fa, nil, nil)

	w := do(t, s, http.MethodGet, "/api/search?q=AI&top_k=2&similarity_threshold=0.25", "")
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || fa.gotQuestion != "AI" || fa.gotTopK != 2 || fa.gotThreshold != 0.25 {
		t.Errorf("unexpected %+v (q=%q k=%d th=%v)", resp, fa.gotQuestion, fa.gotTopK, fa.gotThreshold)
	}

	for _, target := range []string{"/api/search", "/api/search?q=x&top_k=abc", "/api/search?q=x&similarity_threshold=high"} {
		if w := do(t, s, http.MethodGet, target, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: want 400, got %d", target, w.Code)
		}
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	h := &fakeHistory{entries: []store.Entry{{ID: 1, Question: "q", Answer: "a"}}}
	s, _ := newTestServer(t, &fakeAnswerer{}, h, nil)

	w := do(t, s, http.MethodGet, "/api/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var resp historyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 || h.gotN != 5 {
		t.Errorf("entries=%d limit=%d", len(resp.Entries), h.gotN)
	}

	if w := do(t, s, http.MethodGet, "/api/history?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0: want 400, got %d", w.Code)
	}

	disabled, _ := newTestServer(t, &fakeAnswerer{}, nil, nil)
	if w := do(t, disabled, http.MethodGet, "/api/history", ""); w.Code != http.StatusNotFound {
		t.Errorf("disabled log: want 404, got %d", w.Code)
	}
}

func TestRoutes_AuthAppliesToProtectedOnly(t *testing.T) {
	t.Parallel()

	fa := &fakeAnswerer{answer: &qa.Answer{Text: "ok"}}
	s, _ := newTestServer(t, fa, &fakeHistory{}, &Config{APIKey: "secret"})

	for _, target := range []string{"/api/health", "/api/ready", "/metrics"} {
		if w := do(t, s, http.MethodGet, target, ""); w.Code != http.StatusOK {
			t.Errorf("%s: want 200 without auth, got %d", target, w.Code)
		}
	}
	if w := do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("ask without token: want 401, got %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/history", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("history without token: want 401, got %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`, "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("ask with token: want 200, got %d", w.Code)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeAnswerer{}, nil, nil)
	if w := do(t, s, http.MethodGet, "/api/ask", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("want 405, got %d", w.Code)
	}
}

func TestRequestLogger_PropagatesInboundID(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeAnswerer{}, nil, nil)
	w := do(t, s, http.MethodGet, "/api/health", "", requestIDHeader, "abc-123")
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestNew_RejectsNilService(t *testing.T) {
	t.Parallel()
	if _, err := New(nil, nil, nil); err == nil {
		t.Error("want error for nil service")
	}
}
