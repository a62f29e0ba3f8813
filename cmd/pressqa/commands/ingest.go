package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/embedder"
	"github.com/54b3r/pressqa-go/internal/ingestion"
	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/rag"
	"github.com/54b3r/pressqa-go/internal/scraper"
)

// NewIngestCmd constructs `pressqa ingest`, which chunks, embeds, and
// indexes the scraped press releases.
func NewIngestCmd() *cobra.Command {
	var (
		dir        string
		clearFirst bool
		batch      embedder.BatchOptions
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed, and index scraped press releases",
		Long: `Read every press_release_*.json file from the directory, split each article
into section-aware chunks, embed them, and write them to the vector index.

Re-ingesting an article replaces its previous chunks. --clear empties the
whole index first.

Environment:
  EMBEDDING_PROVIDER   ollama | openai | azure | hash (default: ollama)
  INDEX_BACKEND        qdrant | postgres | sqlite | memory (default: sqlite)

Examples:
  pressqa ingest
  pressqa ingest --dir ./data --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			idx, err := buildIndex(ctx, emb, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer idx.Close()

			stats, err := ingestDir(ctx, emb, idx, dir, &ingestion.Config{Batch: batch, Clear: clearFirst})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %d articles (%d skipped, %d empty)\n",
				stats.Chunks, stats.Articles, stats.Skipped, stats.Empty)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of press_release_*.json files (default: $PRESS_RELEASES_DIR or ./press_releases)")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "Empty the index before ingesting")
	cmd.Flags().IntVar(&batch.Size, "batch-size", 32, "Texts per embedding call")
	cmd.Flags().IntVar(&batch.Concurrency, "concurrency", 4, "Embedding calls in flight")
	return cmd
}

// ingestDir runs the ingestion pipeline over dir, defaulting to
// PRESS_RELEASES_DIR.
func ingestDir(ctx context.Context, emb rag.Embedder, idx rag.VectorIndex, dir string, cfg *ingestion.Config) (ingestion.Stats, error) {
	if dir == "" {
		dir = os.Getenv("PRESS_RELEASES_DIR")
	}
	if dir == "" {
		dir = scraper.DefaultOutputDir
	}
	log := logging.FromContext(ctx)

	p, err := ingestion.NewPipeline(emb, idx, cfg)
	if err != nil {
		return ingestion.Stats{}, err
	}
	log.Info("starting ingestion", slog.String("dir", dir), slog.Bool("clear", cfg.Clear))
	return p.IngestDir(ctx, dir, progressLogger(log))
}
