package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/pressqa-go/internal/article"
	"github.com/54b3r/pressqa-go/internal/embedder"
	"github.com/54b3r/pressqa-go/internal/index"
	"github.com/54b3r/pressqa-go/internal/rag"
)

func newTestPipeline(t *testing.T, cfg *Config) (*Pipeline, *index.Memory, rag.Embedder) {
	t.Helper()
	emb := embedder.NewHashEmbedder(64)
	mem, err := index.NewMemory(index.Meta{Model: emb.Model(), Dimensions: emb.Dimensions()})
	if err != nil {
		t.Fatalf("memory index: %v", err)
	}
	p, err := NewPipeline(emb, mem, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, mem, emb
}

func record(link string, blocks ...article.Block) *article.Record {
	return &article.Record{
		Title:       "Press release " + link,
		PublishDate: time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC),
		Link:        link,
		Blocks:      blocks,
	}
}

func para(s string) article.Block { return article.Block{Kind: article.KindParagraph, Text: s} }

func count(t *testing.T, m *index.Memory) int {
	t.Helper()
	n, err := m.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestIngest_ChunksEmbedsAndInserts(t *testing.T) {
	t.Parallel()
	p, mem, emb := newTestPipeline(t, nil)
	ctx := context.Background()

	recs := []*article.Record{
		record("https://x/ai",
			article.Block{Kind: article.KindHeading, Text: "Artificial intelligence"},
			para("Telekom expands its AI research programme."),
			para("The programme covers network automation."),
		),
		record("https://x/fiber", para("Fiber rollout reaches two million homes.")),
	}

	var msgs []string
	stats, err := p.Ingest(ctx, recs, func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Articles != 2 || stats.Chunks != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if len(msgs) != 2 {
		t.Errorf("want one progress message per article, got %v", msgs)
	}
	if got := count(t, mem); got != 3 {
		t.Errorf("index holds %d chunks, want 3", got)
	}

	q, _ := emb.Embed(ctx, "AI research programme")
	hits, err := mem.Search(ctx, q, 1, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.SourceLink != "https://x/ai" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if hits[0].Chunk.SectionContext != "Artificial intelligence" {
		t.Errorf("SectionContext = %q", hits[0].Chunk.SectionContext)
	}
}

func TestIngest_ReingestReplacesSource(t *testing.T) {
	t.Parallel()
	p, mem, _ := newTestPipeline(t, nil)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, []*article.Record{record("https://x/a", para("one"), para("two"))}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := p.Ingest(ctx, []*article.Record{record("https://x/a", para("updated"))}, nil); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if got := count(t, mem); got != 1 {
		t.Errorf("want the old chunks replaced, index holds %d", got)
	}
}

func TestIngest_ClearEmptiesIndexFirst(t *testing.T) {
	t.Parallel()
	p, mem, _ := newTestPipeline(t, nil)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, []*article.Record{record("https://x/old", para("stale"))}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p.cfg.Clear = true
	if _, err := p.Ingest(ctx, []*article.Record{record("https://x/new", para("fresh"))}, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := count(t, mem); got != 1 {
		t.Errorf("index holds %d chunks, want 1", got)
	}
}

func TestIngest_SkipsInvalidAndCountsEmpty(t *testing.T) {
	t.Parallel()
	p, mem, _ := newTestPipeline(t, nil)

	recs := []*article.Record{
		{Title: "no link", PublishDate: time.Now()},
		record("https://x/only-headings", article.Block{Kind: article.KindHeading, Text: "A"}, article.Block{Kind: article.KindHeading, Text: "B"}),
		record("https://x/ok", para("content")),
	}
	stats, err := p.Ingest(context.Background(), recs, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Skipped != 1 || stats.Empty != 1 || stats.Articles != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := count(t, mem); got != 1 {
		t.Errorf("index holds %d chunks, want 1", got)
	}
}

// failingEmbedder fails every batch.
type failingEmbedder struct{ rag.Embedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model not loaded")
}

func TestIngest_EmbeddingFailureKeepsPreviousChunks(t *testing.T) {
	t.Parallel()
	p, mem, emb := newTestPipeline(t, nil)
	ctx := context.Background()

	if _, err := p.Ingest(ctx, []*article.Record{record("https://x/a", para("kept"))}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bad, err := NewPipeline(failingEmbedder{emb}, mem, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := bad.Ingest(ctx, []*article.Record{record("https://x/a", para("lost"))}, nil); err == nil {
		t.Fatal("want embedding error")
	}
	if got := count(t, mem); got != 1 {
		t.Errorf("previous chunks should survive a failed embed, index holds %d", got)
	}
}

func TestIngestDir(t *testing.T) {
	t.Parallel()
	p, mem, _ := newTestPipeline(t, nil)

	dir := t.TempDir()
	if err := article.WriteFile(filepath.Join(dir, "press_release_0.json"), record("https://x/a", para("alpha"))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "press_release_1.json"), []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stats, err := p.IngestDir(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("ingest dir: %v", err)
	}
	if stats.Articles != 1 || stats.Skipped != 1 || count(t, mem) != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestNewPipeline_NilDependencies(t *testing.T) {
	t.Parallel()
	mem, _ := index.NewMemory(index.Meta{Model: "m", Dimensions: 2})
	if _, err := NewPipeline(nil, mem, nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(embedder.NewHashEmbedder(2), nil, nil); err == nil {
		t.Error("want error for nil index")
	}
}
