// Package scraper collects press releases from the Deutsche Telekom media
// site and writes them to disk as article records.
//
// Collection runs in two phases. The paginated feed is walked until the
// target number of unique article URLs is reached, then every article page
// is fetched with bounded concurrency, rate limited and retried, and parsed
// into structural blocks.
//
// Environment variables:
//
//	PRESS_RELEASES_DIR   = output directory          (default: ./press_releases)
//	SCRAPE_TARGET_COUNT  = number of articles         (default: 250)
//	SCRAPE_BASE_URL      = site root for link resolve (default: https://www.telekom.com)
//	SCRAPE_FEED_URL      = paginated feed fragment    (default: Telekom press-release feed)
//	SCRAPE_CONCURRENCY   = article fetches in flight  (default: 4)
//	SCRAPE_RPS           = requests per second        (default: 2)
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/54b3r/pressqa-go/internal/article"
	"github.com/54b3r/pressqa-go/internal/logging"
)

// Defaults for the Telekom press-release feed.
const (
	DefaultBaseURL     = "https://www.telekom.com"
	DefaultFeedURL     = "https://www.telekom.com/dynamic/fragment/com16/en/418728"
	DefaultOutputDir   = "./press_releases"
	DefaultTargetCount = 250
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Config holds the scraper settings.
type Config struct {
	// BaseURL is the site root that relative article links resolve against.
	BaseURL string
	// FeedURL is the paginated press-release list.
	FeedURL string
	// TargetCount is the number of unique articles to collect.
	TargetCount int
	// OutputDir receives one JSON file per article. It is emptied first.
	OutputDir string
	// UserAgent is sent with every request.
	UserAgent string
	// Concurrency bounds article fetches in flight. Default 4.
	Concurrency int
	// RequestsPerSecond caps the request rate across all goroutines. Default 2.
	RequestsPerSecond float64
	// MaxRetries is the number of retries per request. Default 5.
	MaxRetries uint64
	// Timeout bounds a single HTTP request. Default 30s.
	Timeout time.Duration
}

// ConfigFromEnv resolves Config from environment variables.
func ConfigFromEnv() *Config {
	return &Config{
		BaseURL:           getEnvOrDefault("SCRAPE_BASE_URL", DefaultBaseURL),
		FeedURL:           getEnvOrDefault("SCRAPE_FEED_URL", DefaultFeedURL),
		TargetCount:       getEnvInt("SCRAPE_TARGET_COUNT", DefaultTargetCount),
		OutputDir:         getEnvOrDefault("PRESS_RELEASES_DIR", DefaultOutputDir),
		Concurrency:       getEnvInt("SCRAPE_CONCURRENCY", 4),
		RequestsPerSecond: getEnvFloat("SCRAPE_RPS", 2),
	}
}

// Scraper fetches and parses press releases. Safe for concurrent use.
type Scraper struct {
	// cfg holds the resolved configuration.
	cfg *Config
	// client performs every HTTP request.
	client *http.Client
	// limiter is shared by the feed walk and the article fetches.
	limiter *rate.Limiter
	// retryBase is the first Fibonacci backoff step.
	retryBase time.Duration
	// now supplies the cache-busting timestamp.
	now func() time.Time
}

// New validates cfg, fills defaults, and returns a Scraper.
func New(cfg *Config) (*Scraper, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.TargetCount <= 0 {
		return nil, fmt.Errorf("scraper: target count must be positive, got %d", cfg.TargetCount)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("scraper: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	burst := max(1, int(cfg.RequestsPerSecond))
	return &Scraper{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		retryBase: 500 * time.Millisecond,
		now:       time.Now,
	}, nil
}

// Result summarises a Run.
type Result struct {
	// URLs is the number of article URLs collected from the feed.
	URLs int
	// Written is the number of article files written.
	Written int
	// Failed is the number of articles that could not be fetched or parsed.
	Failed int
}

// Run collects article URLs, fetches every article, then replaces the
// contents of OutputDir with one press_release_<n>.json file per article.
// Articles that fail after retries are logged and skipped; the directory is
// only touched once fetching is done.
func (s *Scraper) Run(ctx context.Context, progress func(msg string)) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	urls, err := s.CollectURLs(ctx)
	if err != nil {
		return Result{}, err
	}
	progress(fmt.Sprintf("collected %d article URLs", len(urls)))

	records, failed := s.FetchAll(ctx, urls, progress)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if err := resetDir(s.cfg.OutputDir); err != nil {
		return Result{}, err
	}
	written := 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		path := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("press_release_%d.json", written))
		if err := article.WriteFile(path, rec); err != nil {
			return Result{}, fmt.Errorf("scraper: %w", err)
		}
		written++
	}

	log.Info("scrape complete",
		slog.Int("urls", len(urls)),
		slog.Int("written", written),
		slog.Int("failed", failed),
		slog.String("dir", s.cfg.OutputDir),
	)
	return Result{URLs: len(urls), Written: written, Failed: failed}, nil
}

// FetchAll fetches and parses urls with bounded concurrency. The returned
// slice is parallel to urls; failed entries are nil. progress calls are
// serialised.
func (s *Scraper) FetchAll(ctx context.Context, urls []string, progress func(msg string)) ([]*article.Record, int) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	records := make([]*article.Record, len(urls))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, link := range urls {
		g.Go(func() error {
			rec, err := s.FetchArticle(gctx, link)
			if err != nil {
				log.Warn("article skipped", slog.String("url", link), slog.String("error", err.Error()))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			records[i] = rec
			mu.Lock()
			progress(fmt.Sprintf("fetched %s", link))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return records, failed
}

// FetchArticle downloads and parses a single article page.
func (s *Scraper) FetchArticle(ctx context.Context, link string) (*article.Record, error) {
	doc, err := s.getDocument(ctx, link, nil)
	if err != nil {
		return nil, err
	}
	return ParseArticle(doc, link)
}

// resetDir creates dir if needed and removes everything inside it, leaving
// the directory itself in place.
func resetDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("scraper: create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scraper: list %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("scraper: clear %s: %w", dir, err)
		}
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
