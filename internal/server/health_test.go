package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	// name is returned by Name().
	name string
	// err is returned by Ping(); nil means healthy.
	err error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

func readyRequest(t *testing.T, pingers ...Pinger) (*httptest.ResponseRecorder, readyResponse) {
	t.Helper()
	s, _ := newTestServer(t, &fakeAnswerer{}, nil, &Config{Pingers: pingers})
	w := do(t, s, http.MethodGet, "/api/ready", "")
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w, resp
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeAnswerer{}, nil, nil)
	w := do(t, s, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status: expected ok, got %q", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantBad   string
	}{
		{"no pingers", nil, http.StatusOK, true, ""},
		{"all healthy", []Pinger{&fakePinger{name: "index"}, &fakePinger{name: "ollama"}}, http.StatusOK, true, ""},
		{"one failing", []Pinger{&fakePinger{name: "index"}, &fakePinger{name: "redis", err: errors.New("connection refused")}}, http.StatusServiceUnavailable, false, "redis"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w, resp := readyRequest(t, tc.pingers...)
			if w.Code != tc.wantCode {
				t.Fatalf("want %d, got %d", tc.wantCode, w.Code)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("Ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.pingers) {
				t.Fatalf("want %d checks, got %d", len(tc.pingers), len(resp.Checks))
			}
			for _, c := range resp.Checks {
				bad := c.Name == tc.wantBad
				if c.OK == bad {
					t.Errorf("check %q: OK = %v", c.Name, c.OK)
				}
				if bad && c.Error == "" {
					t.Errorf("check %q: want an error message", c.Name)
				}
			}
		})
	}
}

func TestPingers(t *testing.T) {
	t.Parallel()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(up.Close)

	if err := NewHTTPPinger("ollama", up.URL+"/api/tags").Ping(context.Background()); err != nil {
		t.Errorf("healthy endpoint: %v", err)
	}
	if err := NewHTTPPinger("ollama", up.URL+"/broken").Ping(context.Background()); err == nil {
		t.Error("want error for 500")
	}

	fp := NewFuncPinger("index", func(context.Context) error { return errors.New("down") })
	if fp.Name() != "index" || fp.Ping(context.Background()) == nil {
		t.Error("FuncPinger did not delegate")
	}
}
