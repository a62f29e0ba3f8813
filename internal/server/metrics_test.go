package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/pressqa-go/internal/qa"
	"github.com/54b3r/pressqa-go/internal/rag"
)

func Test_Metrics_EndpointServesExposition(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeAnswerer{}, nil, nil)

	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_AskOutcomes(t *testing.T) {
	t.Parallel()

	fa := &fakeAnswerer{answer: &qa.Answer{Text: "a", Results: []rag.Result{sample, sample}, Generated: true}}
	s, _ := newTestServer(t, fa, nil, nil)

	do(t, s, http.MethodPost, "/api/ask", `{"question":"q"}`)
	do(t, s, http.MethodPost, "/api/ask", `{"question":""}`)

	for outcome, want := range map[string]float64{outcomeOK: 1, outcomeBadRequest: 1, outcomeError: 0} {
		if got := testutil.ToFloat64(s.metrics.askRequestsTotal.WithLabelValues(outcome)); got != want {
			t.Errorf("pressqa_ask_requests_total{outcome=%q} = %v, want %v", outcome, got, want)
		}
	}

	body := do(t, s, http.MethodGet, "/metrics", "").Body.String()
	for _, line := range []string{"pressqa_retrieval_results_count 1", "pressqa_retrieval_results_sum 2"} {
		if !strings.Contains(body, line) {
			t.Errorf("exposition missing %q", line)
		}
	}
}

func Test_Metrics_HTTPRequestsUsePattern(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeAnswerer{}, nil, nil)

	do(t, s, http.MethodGet, "/api/health", "")
	do(t, s, http.MethodGet, "/nope", "")

	if got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues("GET", "GET /api/health", "200")); got != 1 {
		t.Errorf("health request count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched request count = %v, want 1", got)
	}
}

func Test_Metrics_RateLimitedCounter(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeAnswerer{}, nil, &Config{RateLimit: 0.001, RateBurst: 1})

	do(t, s, http.MethodGet, "/api/search?q=x", "")
	if w := do(t, s, http.MethodGet, "/api/search?q=x", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	if got := testutil.ToFloat64(s.metrics.rateLimitedTotal); got != 1 {
		t.Errorf("pressqa_http_rate_limited_total = %v, want 1", got)
	}
}

func Test_OutcomeFor(t *testing.T) {
	t.Parallel()
	cases := map[int]string{
		http.StatusBadRequest:          outcomeBadRequest,
		http.StatusGatewayTimeout:      outcomeError,
		http.StatusServiceUnavailable:  outcomeUnavailable,
		http.StatusInternalServerError: outcomeError,
	}
	for status, want := range cases {
		if got := outcomeFor(status); got != want {
			t.Errorf("outcomeFor(%d) = %q, want %q", status, got, want)
		}
	}
}
