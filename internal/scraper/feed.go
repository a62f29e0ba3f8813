package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/54b3r/pressqa-go/internal/logging"
)

// CollectURLs walks the feed page by page and returns up to TargetCount
// unique absolute article URLs in first-seen order. The walk stops once the
// target is reached or a page contributes no new URL, which also ends it on
// the first empty page past the end of the feed.
func (s *Scraper) CollectURLs(ctx context.Context) ([]string, error) {
	log := logging.FromContext(ctx)
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("scraper: invalid base URL %q: %w", s.cfg.BaseURL, err)
	}

	seen := make(map[string]struct{}, s.cfg.TargetCount)
	urls := make([]string, 0, s.cfg.TargetCount)

	for page := 0; len(urls) < s.cfg.TargetCount; page++ {
		params := url.Values{
			"viewtype":    {"asFeedList"},
			"page_active": {strconv.Itoa(page)},
			"_":           {strconv.FormatInt(s.now().UnixMilli(), 10)},
		}
		doc, err := s.getDocument(ctx, s.cfg.FeedURL, params)
		if err != nil {
			return nil, fmt.Errorf("scraper: feed page %d: %w", page, err)
		}

		added := 0
		for _, link := range feedLinks(doc, base) {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			urls = append(urls, link)
			added++
			if len(urls) == s.cfg.TargetCount {
				break
			}
		}

		log.Debug("feed page scraped", slog.Int("page", page), slog.Int("new_urls", added), slog.Int("total", len(urls)))
		if added == 0 {
			log.Warn("feed exhausted before target count",
				slog.Int("collected", len(urls)),
				slog.Int("target", s.cfg.TargetCount),
			)
			break
		}
	}
	return urls, nil
}

// feedLinks returns the resolved hrefs of every a.media-link on a feed page.
func feedLinks(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find("a.media-link[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		out = append(out, base.ResolveReference(ref).String())
	})
	return out
}
