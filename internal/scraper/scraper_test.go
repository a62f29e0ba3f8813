package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/54b3r/pressqa-go/internal/article"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Telekom   expands AI in Köln</title></head>
<body><main>
<time>05-07-2024</time>
<address>Press  Office</address>
<section>
  <div class="richtext">
    <p>Telekom launches a new <b>AI</b> programme.</p>
    <h2>Outlook</h2>
    <ul><li>Network automation</li><li>Customer service</li></ul>
    <div><table>
      <tr><th>Year</th><th>Revenue</th></tr>
      <tr><td>2023</td><td>112bn</td></tr>
      <tr></tr>
    </table></div>
    <div>no table here</div>
    <span>ignored</span>
    <p class="footnote">About Deutsche Telekom.</p>
    <p>   </p>
  </div>
</section>
</main></body></html>`

func feedPage(hrefs ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&sb, `<a class="media-link" href="%s">x</a>`, h)
	}
	sb.WriteString(`<a class="other" href="/not-an-article">y</a></body></html>`)
	return sb.String()
}

// newSite serves a three-page feed and article pages for every /en/ path.
// The first request to /en/flaky fails with 503.
func newSite(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var flakyHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("viewtype") != "asFeedList" || r.URL.Query().Get("_") == "" {
			http.Error(w, "bad params", http.StatusBadRequest)
			return
		}
		switch r.URL.Query().Get("page_active") {
		case "0":
			fmt.Fprint(w, feedPage("/en/a1", "/en/a2", "/en/a1"))
		case "1":
			fmt.Fprint(w, feedPage("/en/a2", "/en/flaky", "/en/a3"))
		default:
			fmt.Fprint(w, feedPage())
		}
	})
	mux.HandleFunc("/en/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/en/flaky" && flakyHits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/en/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, articleHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &flakyHits
}

func newTestScraper(t *testing.T, srv *httptest.Server, target int) *Scraper {
	t.Helper()
	s, err := New(&Config{
		BaseURL:           srv.URL,
		FeedURL:           srv.URL + "/feed",
		TargetCount:       target,
		OutputDir:         filepath.Join(t.TempDir(), "out"),
		RequestsPerSecond: 1000,
		MaxRetries:        3,
	})
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.retryBase = time.Millisecond
	return s
}

func TestCollectURLs_StopsAtTarget(t *testing.T) {
	t.Parallel()
	srv, _ := newSite(t)
	s := newTestScraper(t, srv, 3)

	got, err := s.CollectURLs(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{srv.URL + "/en/a1", srv.URL + "/en/a2", srv.URL + "/en/flaky"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCollectURLs_StopsWhenFeedIsExhausted(t *testing.T) {
	t.Parallel()
	srv, _ := newSite(t)
	s := newTestScraper(t, srv, 250)

	got, err := s.CollectURLs(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("want 4 unique URLs, got %v", got)
	}
}

func TestParseArticle(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	rec, err := ParseArticle(doc, "https://x/a")
	if err != nil {
		t.Fatalf("parse article: %v", err)
	}

	if rec.Title != "Telekom expands AI in Koln" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.Author == nil || *rec.Author != "Press Office" {
		t.Errorf("Author = %v", rec.Author)
	}
	if want := time.Date(2024, time.May, 7, 0, 0, 0, 0, time.UTC); !rec.PublishDate.Equal(want) {
		t.Errorf("PublishDate = %v", rec.PublishDate)
	}

	wantKinds := []article.BlockKind{
		article.KindParagraph, article.KindHeading, article.KindList, article.KindTable, article.KindBoilerplate,
	}
	if len(rec.Blocks) != len(wantKinds) {
		t.Fatalf("want %d blocks, got %+v", len(wantKinds), rec.Blocks)
	}
	for i, k := range wantKinds {
		if rec.Blocks[i].Kind != k {
			t.Errorf("block[%d].Kind = %s, want %s", i, rec.Blocks[i].Kind, k)
		}
	}
	if rec.Blocks[0].Text != "Telekom launches a new AI programme." {
		t.Errorf("paragraph = %q", rec.Blocks[0].Text)
	}
	if rec.Blocks[2].Text != "Network automation\nCustomer service" {
		t.Errorf("list = %q", rec.Blocks[2].Text)
	}
	if rows := rec.Blocks[3].Rows; len(rows) != 2 || rows[1][1] != "112bn" {
		t.Errorf("table rows = %v", rows)
	}
}

func TestParseArticle_MissingParts(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no main":  `<html><body><time>05-07-2024</time></body></html>`,
		"no time":  `<html><body><main><section></section></main></body></html>`,
		"bad date": `<html><body><main><time>7 May 2024</time></main></body></html>`,
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
			if _, err := ParseArticle(doc, "https://x"); err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestParseArticle_NoAuthorNoContent(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>t</title></head><body><main><time>01-02-2024</time></main></body></html>`
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(html))
	rec, err := ParseArticle(doc, "https://x")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Author != nil || len(rec.Blocks) != 0 {
		t.Errorf("want no author and no blocks, got %+v", rec)
	}
}

func TestGetDocument_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	srv, hits := newSite(t)
	s := newTestScraper(t, srv, 1)

	if _, err := s.FetchArticle(context.Background(), srv.URL+"/en/flaky"); err != nil {
		t.Fatalf("want success after retry, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("want 2 attempts, got %d", hits.Load())
	}
}

func TestGetDocument_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	s := newTestScraper(t, srv, 1)

	if _, err := s.FetchArticle(context.Background(), srv.URL+"/en/missing"); err == nil {
		t.Fatal("want error")
	}
	if calls.Load() != 1 {
		t.Errorf("want a single attempt, got %d", calls.Load())
	}
}

func TestRun_WritesOneFilePerArticle(t *testing.T) {
	t.Parallel()
	srv, _ := newSite(t)
	s := newTestScraper(t, srv, 3)

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(s.cfg.OutputDir, "press_release_99.json")
	if err := os.WriteFile(stale, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.URLs != 3 || res.Written != 3 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("output directory was not cleared")
	}

	recs, err := article.ReadDir(s.cfg.OutputDir, nil)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records on disk, got %d", len(recs))
	}
	links := map[string]bool{}
	for _, r := range recs {
		links[r.Link] = true
	}
	if !links[srv.URL+"/en/a1"] || !links[srv.URL+"/en/flaky"] {
		t.Errorf("unexpected links %v", links)
	}
}

func TestFetchAll_SkipsFailures(t *testing.T) {
	t.Parallel()
	srv, _ := newSite(t)
	s := newTestScraper(t, srv, 1)

	recs, failed := s.FetchAll(context.Background(), []string{srv.URL + "/en/a1", srv.URL + "/en/missing"}, nil)
	if failed != 1 || recs[0] == nil || recs[1] != nil {
		t.Errorf("failed=%d recs=%v", failed, recs)
	}
}

func TestNew_RejectsNonPositiveTarget(t *testing.T) {
	t.Parallel()
	if _, err := New(&Config{TargetCount: 0}); err == nil {
		t.Error("want error")
	}
}
