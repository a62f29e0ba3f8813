package embedder

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// BatchOptions bounds how EmbedAll splits and parallelises work.
type BatchOptions struct {
	// Size is the number of texts per backend call. Default 32.
	Size int
	// Concurrency is the maximum number of batches in flight. Default 4.
	Concurrency int
}

// EmbedAll embeds texts in fixed-size batches, running up to
// opts.Concurrency batches at once. Results are reassembled by batch
// position, so the output is parallel to texts regardless of completion
// order. A per-item *rag.EmbeddingError has its Index rebased to the
// position in texts.
func EmbedAll(ctx context.Context, e rag.Embedder, texts []string, opts BatchOptions) ([][]float32, error) {
	size := opts.Size
	if size <= 0 {
		size = 32
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 4
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				var ee *rag.EmbeddingError
				if errors.As(err, &ee) && ee.Index >= 0 {
					return &rag.EmbeddingError{Index: start + ee.Index, Err: ee.Err}
				}
				return fmt.Errorf("embedder: batch [%d:%d]: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedder: batch [%d:%d]: got %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
