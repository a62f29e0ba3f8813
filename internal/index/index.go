// Package index provides rag.VectorIndex backends: Qdrant (primary),
// PostgreSQL with pgvector (the original deployment's engine), SQLite (exact
// search in a single file), and an in-memory index for tests and one-shot
// runs. Every backend stores one embedding-model identity and refuses
// vectors of any other dimension.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/54b3r/pressqa-go/internal/rag"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the dimension the index was created with.
	ErrDimensionMismatch = fmt.Errorf("index: %w", rag.ErrDimensionMismatch)

	// ErrModelMismatch is returned when an existing index was built with a
	// different embedding model than the one configured now.
	ErrModelMismatch = errors.New("index: embedding model mismatch")
)

// Meta is the embedding-model identity an index is bound to.
type Meta struct {
	// Model is the embedding model name.
	Model string
	// Dimensions is the vector length D.
	Dimensions int
}

func (m Meta) validate() error {
	if m.Dimensions <= 0 {
		return fmt.Errorf("index: dimensions must be positive, got %d", m.Dimensions)
	}
	return nil
}

// check compares a stored identity with the configured one.
func (m Meta) check(stored Meta) error {
	if stored.Dimensions != m.Dimensions {
		return fmt.Errorf("%w: index has %d dimensions, embedder produces %d", ErrDimensionMismatch, stored.Dimensions, m.Dimensions)
	}
	if stored.Model != "" && m.Model != "" && stored.Model != m.Model {
		return fmt.Errorf("%w: index was built with %q, embedder is %q", ErrModelMismatch, stored.Model, m.Model)
	}
	return nil
}

// Index is a rag.VectorIndex with the lifecycle hooks the CLI and server need.
type Index interface {
	rag.VectorIndex

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// checkInsert validates the argument shapes shared by every Insert.
func checkInsert(chunks []rag.Chunk, embeddings [][]float32, dims int) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("index: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	for i, v := range embeddings {
		if len(v) != dims {
			return fmt.Errorf("%w: embedding %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return nil
}

func checkQuery(query []float32, dims int) error {
	if len(query) != dims {
		return fmt.Errorf("%w: query has %d dimensions, want %d", ErrDimensionMismatch, len(query), dims)
	}
	return nil
}

// unavailable wraps a backend failure so callers can map it with
// rag.IsIndexUnavailable.
func unavailable(op string, err error) error {
	return &rag.IndexUnavailableError{Op: op, Err: err}
}

// cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero norm.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank keeps hits with Similarity >= minSimilarity, orders them by
// similarity descending (insertion order breaks ties), and truncates to topK.
func rank(hits []rag.Hit, topK int, minSimilarity float64) []rag.Hit {
	kept := hits[:0]
	for _, h := range hits {
		if h.Similarity >= minSimilarity {
			kept = append(kept, h)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Similarity > kept[j].Similarity })
	if topK >= 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
