package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// FuncPinger adapts a ping function, such as index.Index.Ping or
// embedder.RedisCache.Ping, to the Pinger interface.
type FuncPinger struct {
	// name is the dependency label.
	name string
	// fn performs the probe.
	fn func(ctx context.Context) error
}

// NewFuncPinger returns a Pinger named name that calls fn.
func NewFuncPinger(name string, fn func(ctx context.Context) error) *FuncPinger {
	return &FuncPinger{name: name, fn: fn}
}

// Name returns the dependency label.
func (p *FuncPinger) Name() string { return p.name }

// Ping calls the wrapped function.
func (p *FuncPinger) Ping(ctx context.Context) error { return p.fn(ctx) }

// HTTPPinger probes an HTTP endpoint with a GET and treats any 2xx as
// healthy. It is used for model servers (e.g. Ollama's /api/tags) so that
// readiness never spends tokens on a generation call.
type HTTPPinger struct {
	// name is the dependency label.
	name string
	// url is the probed endpoint.
	url string
	// client performs the request.
	client *http.Client
}

// NewHTTPPinger returns a Pinger that GETs url.
func NewHTTPPinger(name, url string) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, client: &http.Client{Timeout: probeTimeout + time.Second}}
}

// Name returns the dependency label.
func (p *HTTPPinger) Name() string { return p.name }

// Ping performs the GET.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", p.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}
