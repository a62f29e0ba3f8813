package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/54b3r/pressqa-go/internal/logging"
)

// Retriever embeds a query, searches the vector index, and returns an
// ordered, thresholded result set. It holds no per-request state and is
// safe to share across goroutines.
type Retriever struct {
	// embedder converts the query text to a dense vector.
	embedder Embedder

	// index performs the nearest-neighbour search.
	index VectorIndex
}

// NewRetriever constructs a Retriever from the given Embedder and VectorIndex.
func NewRetriever(embedder Embedder, index VectorIndex) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	return &Retriever{embedder: embedder, index: index}, nil
}

// Retrieve returns at most topK results whose similarity to query is at
// least threshold, ordered by similarity descending.
//
// An empty, nil-error result means nothing relevant was found. Invalid
// parameters yield a *ConfigurationError before the index is touched; index
// failures yield an *IndexUnavailableError and no results.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float64) ([]Result, error) {
	if err := ValidateParams(topK, threshold); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, &EmbeddingError{Index: -1, Err: ErrEmptyText}
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		var ee *EmbeddingError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &EmbeddingError{Index: -1, Err: err}
	}

	hits, err := r.index.Search(ctx, vec, topK, threshold)
	if err != nil {
		if errors.Is(err, ErrDimensionMismatch) {
			return nil, &ConfigurationError{
				Field:  FieldEmbeddingDimensions,
				Value:  len(vec),
				Reason: "the index was built with a different embedding model",
			}
		}
		if IsIndexUnavailable(err) {
			return nil, err
		}
		return nil, &IndexUnavailableError{Op: "search", Err: err}
	}

	results := toResults(hits, topK, threshold)

	logging.FromContext(ctx).Debug("retrieval complete",
		slog.Int("top_k", topK),
		slog.Float64("threshold", threshold),
		slog.Int("hits", len(hits)),
		slog.Int("results", len(results)),
	)
	return results, nil
}

// toResults maps raw index hits into Results and re-asserts the ordering,
// threshold, and size guarantees so a loose backend cannot violate them.
func toResults(hits []Hit, topK int, threshold float64) []Result {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < threshold {
			continue
		}
		results = append(results, Result{
			Content:     h.Chunk.Text,
			Title:       h.Chunk.Title,
			Author:      h.Chunk.Author,
			PublishDate: h.Chunk.PublishDate.Format(IsoDate),
			SourceLink:  h.Chunk.SourceLink,
			Similarity:  h.Similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
