// Package rag defines the retrieval side of the question-answering
// pipeline: the chunk and result types, the Embedder and VectorIndex
// contracts that concrete backends satisfy, the typed retrieval errors, and
// the Retriever that ties them together.
//
// Backends (Qdrant, Postgres, SQLite, in-memory) live in internal/index and
// embedding adapters in internal/embedder, so nothing here depends on a
// specific engine.
package rag

import (
	"context"
	"time"
)

// IsoDate is the layout used when a publish date is handed to callers.
const IsoDate = "2006-01-02"

// Chunk is one retrievable unit of text derived from an article.
type Chunk struct {
	// Text is the normalised chunk text, with SectionContext already
	// prepended when present. Never empty.
	Text string

	// SectionContext is the nearest preceding heading, or "".
	SectionContext string

	// Title is copied verbatim from the parent article.
	Title string

	// Author is copied verbatim from the parent article. Nil when absent.
	Author *string

	// PublishDate is the parent article's calendar date.
	PublishDate time.Time

	// SourceLink is the parent article's URL.
	SourceLink string
}

// Hit is a raw row returned by a VectorIndex search.
type Hit struct {
	// Chunk is the stored chunk.
	Chunk Chunk

	// Similarity is the cosine similarity (1 - cosine distance) between the
	// query vector and the stored vector.
	Similarity float64
}

// Result is a request-scoped retrieval result handed to the prompt
// assembler and to API callers.
type Result struct {
	// Content is the chunk text.
	Content string `json:"content"`

	// Title is the article title.
	Title string `json:"title"`

	// Author is the article byline, nil when the article has none.
	Author *string `json:"author"`

	// PublishDate is the article date as an ISO calendar date (YYYY-MM-DD).
	PublishDate string `json:"publish_date"`

	// SourceLink is the article URL; results are grouped by it.
	SourceLink string `json:"source_link"`

	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64 `json:"similarity"`
}

// VectorIndex stores embedded chunks and answers nearest-neighbour queries
// under cosine similarity. Implementations must be safe to call from
// multiple goroutines.
type VectorIndex interface {
	// Insert appends chunks with their pre-computed embeddings. embeddings
	// must be parallel to chunks. Every call creates new entries; nothing
	// already stored is overwritten.
	Insert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns at most topK hits with Similarity >= minSimilarity,
	// ordered by Similarity descending.
	Search(ctx context.Context, query []float32, topK int, minSimilarity float64) ([]Hit, error)

	// DeleteSource removes every chunk whose SourceLink equals link.
	// Updating an article is modelled as DeleteSource followed by Insert.
	DeleteSource(ctx context.Context, link string) error

	// Clear removes every stored chunk.
	Clear(ctx context.Context) error

	// Close releases any resources held by the index.
	Close() error
}

// Embedder converts text into dense vectors. Output is a pure function of
// the input text for a fixed model identity. Implementations must be safe
// to call from multiple goroutines.
type Embedder interface {
	// Embed converts a single text into its embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts texts into embeddings. The returned slice is
	// parallel to texts and equal to calling Embed on each item.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length D produced by this embedder.
	Dimensions() int

	// Model returns the embedding model identity.
	Model() string
}
