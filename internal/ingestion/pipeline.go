// Package ingestion loads scraped press releases into the vector index.
// Each article is chunked, its chunks are embedded in bounded-concurrency
// batches, and the article's previous chunks are replaced by the new ones.
// This pipeline is invoked by `pressqa ingest` and by the scheduled refresh.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/pressqa-go/internal/article"
	"github.com/54b3r/pressqa-go/internal/chunker"
	"github.com/54b3r/pressqa-go/internal/embedder"
	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// Batch controls embedding batch size and concurrency.
	Batch embedder.BatchOptions

	// Clear empties the whole index before ingesting.
	Clear bool
}

// Stats summarises one ingestion run.
type Stats struct {
	// Articles is the number of articles written to the index.
	Articles int
	// Chunks is the number of chunks inserted.
	Chunks int
	// Skipped is the number of articles rejected as invalid.
	Skipped int
	// Empty is the number of valid articles that produced no chunks.
	Empty int
}

// Pipeline orchestrates the chunk → embed → replace flow.
type Pipeline struct {
	// embedder converts chunk texts into dense vectors.
	embedder rag.Embedder

	// index persists the embedded chunks.
	index rag.VectorIndex

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(e rag.Embedder, index rag.VectorIndex, cfg *Config) (*Pipeline, error) {
	if e == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return &Pipeline{embedder: e, index: index, cfg: cfg}, nil
}

// IngestDir reads every article file in dir and ingests it. Files that
// cannot be loaded are logged and counted as skipped.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, progress func(msg string)) (Stats, error) {
	log := logging.FromContext(ctx)
	var unreadable int
	records, err := article.ReadDir(dir, func(path string, err error) {
		log.Warn("skipping invalid article file", slog.String("path", path), slog.String("error", err.Error()))
		unreadable++
	})
	if err != nil {
		return Stats{}, fmt.Errorf("ingestion: read %s: %w", dir, err)
	}
	stats, err := p.Ingest(ctx, records, progress)
	stats.Skipped += unreadable
	return stats, err
}

// Ingest chunks, embeds, and stores records. Articles are processed in
// order; each one replaces whatever the index held for its link. The first
// embedding or index error aborts the run.
func (p *Pipeline) Ingest(ctx context.Context, records []*article.Record, progress func(msg string)) (Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := logging.FromContext(ctx)

	var stats Stats
	if p.cfg.Clear {
		if err := p.index.Clear(ctx); err != nil {
			return stats, fmt.Errorf("ingestion: clear index: %w", err)
		}
		progress("cleared index")
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := rec.Validate(); err != nil {
			log.Warn("skipping invalid article", slog.String("link", rec.Link), slog.String("error", err.Error()))
			stats.Skipped++
			continue
		}

		chunks := chunker.ChunkRecord(rec)
		if err := p.replace(ctx, rec.Link, chunks); err != nil {
			return stats, err
		}
		if len(chunks) == 0 {
			stats.Empty++
			progress(fmt.Sprintf("no content in %s", rec.Link))
			continue
		}

		stats.Articles++
		stats.Chunks += len(chunks)
		progress(fmt.Sprintf("ingested %d chunks from %s", len(chunks), rec.Link))
	}

	log.Info("ingestion complete",
		slog.Int("articles", stats.Articles),
		slog.Int("chunks", stats.Chunks),
		slog.Int("skipped", stats.Skipped),
		slog.Int("empty", stats.Empty),
	)
	return stats, nil
}

// replace embeds chunks and swaps them in for everything stored under link.
// Embedding runs first so a failed embed leaves the old chunks in place.
func (p *Pipeline) replace(ctx context.Context, link string, chunks []rag.Chunk) error {
	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		var err error
		vectors, err = embedder.EmbedAll(ctx, p.embedder, texts, p.cfg.Batch)
		if err != nil {
			return fmt.Errorf("ingestion: embedding failed for %s: %w", link, err)
		}
	}

	if !p.cfg.Clear {
		if err := p.index.DeleteSource(ctx, link); err != nil {
			return fmt.Errorf("ingestion: delete previous chunks for %s: %w", link, err)
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := p.index.Insert(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("ingestion: insert failed for %s: %w", link, err)
	}
	return nil
}
