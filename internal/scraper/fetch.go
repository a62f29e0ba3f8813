package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/sethvargo/go-retry"
)

// statusError reports a non-200 response.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("scraper: GET %s: status %d", e.url, e.code)
}

// retryable reports whether a response status is worth another attempt.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// getDocument fetches rawURL with query params and parses the body as
// HTML. Transport errors, 429, and 5xx are retried with Fibonacci backoff;
// other statuses fail immediately.
func (s *Scraper) getDocument(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	target := rawURL
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("scraper: parse %s: %w", rawURL, err)
		}
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var doc *goquery.Document
	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewFibonacci(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("scraper: create request: %w", err)
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("scraper: GET %s: %w", target, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			serr := &statusError{url: target, code: resp.StatusCode}
			if retryable(resp.StatusCode) {
				return retry.RetryableError(serr)
			}
			return serr
		}

		d, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return fmt.Errorf("scraper: parse %s: %w", target, err)
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}
