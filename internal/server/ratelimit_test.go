package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// okHandler stands in for a downstream handler.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func hitFrom(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 3, nil)
	defer stop()
	h := rl.middleware(okHandler)

	for i := range 3 {
		if w := hitFrom(h, "10.0.0.1:9999"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: want 200, got %d", i, w.Code)
		}
	}
	w := hitFrom(h, "10.0.0.1:9999")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over burst: want 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429 response")
	}

	// Another client, and the same client on a different port, are keyed by IP.
	if w := hitFrom(h, "10.0.0.2:1111"); w.Code != http.StatusOK {
		t.Errorf("independent IP: want 200, got %d", w.Code)
	}
	if w := hitFrom(h, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP new port: want 429, got %d", w.Code)
	}
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, nil)
	defer stop()

	now := time.Now()
	if !rl.allow("ip", now) {
		t.Fatal("first request should pass")
	}
	if rl.allow("ip", now) {
		t.Fatal("second immediate request should be limited")
	}
	if !rl.allow("ip", now.Add(1100*time.Millisecond)) {
		t.Error("token should have refilled after one second")
	}
}

func TestRateLimit_EvictsIdleBuckets(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, nil)
	defer stop()

	start := time.Now()
	rl.allow("old", start)
	rl.allow("fresh", start.Add(limiterIdleTTL))
	rl.evict(start.Add(limiterIdleTTL + time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["old"]; ok {
		t.Error("idle bucket not evicted")
	}
	if _, ok := rl.limiters["fresh"]; !ok {
		t.Error("recent bucket evicted")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"127.0.0.1:54321": "127.0.0.1",
		"[::1]:8080":      "::1",
		"noport":          "noport",
	}
	for addr, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if got := clientIP(req); got != want {
			t.Errorf("remoteAddr=%q: expected %q, got %q", addr, want, got)
		}
	}
}
