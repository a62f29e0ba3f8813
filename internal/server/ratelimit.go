package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/pressqa-go/internal/logging"
)

const (
	// defaultRateLimit is the per-IP requests per second on /api/ask and /api/search.
	defaultRateLimit = 10
	// defaultRateBurst is the per-IP burst size.
	defaultRateBurst = 20
	// limiterIdleTTL is how long an IP's bucket survives without traffic.
	limiterIdleTTL = 5 * time.Minute
)

// ipLimiter is one IP's token bucket and when it was last used.
type ipLimiter struct {
	// limiter is the per-IP token bucket.
	limiter *rate.Limiter
	// lastSeen drives idle eviction.
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token-bucket limit. Idle buckets are
// evicted every minute to bound memory.
type rateLimiter struct {
	// mu protects limiters.
	mu sync.Mutex
	// limiters maps remote IP to its bucket.
	limiters map[string]*ipLimiter
	// rps is the sustained per-IP rate.
	rps rate.Limit
	// burst is the per-IP burst.
	burst int
	// metrics counts rejections. May be nil.
	metrics *serverMetrics
}

// newRateLimiter constructs a rateLimiter and starts its eviction
// goroutine, which exits when the returned stop function is called.
func newRateLimiter(rps float64, burst int, metrics *serverMetrics) (*rateLimiter, func()) {
	rl := &rateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		metrics:  metrics,
	}

	stopCh := make(chan struct{})
	var once sync.Once
	go rl.evictLoop(stopCh)

	return rl, func() { once.Do(func() { close(stopCh) }) }
}

// allow takes a token from ip's bucket, creating the bucket on first use.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

// evict drops buckets idle for longer than limiterIdleTTL.
func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-limiterIdleTTL)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

// middleware rejects requests over the limit with 429 and a Retry-After
// header before they reach next.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip, time.Now()) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			if rl.metrics != nil {
				rl.metrics.rateLimitedTotal.Inc()
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the remote IP without its port. X-Forwarded-For is not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
