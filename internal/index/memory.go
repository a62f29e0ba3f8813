package index

import (
	"context"
	"sync"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// Memory is an exact in-process index using brute-force cosine similarity.
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	meta    Meta
	chunks  []rag.Chunk
	vectors [][]float32
}

// NewMemory returns an empty in-memory index bound to meta.
func NewMemory(meta Meta) (*Memory, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	return &Memory{meta: meta}, nil
}

// Insert appends chunks and their embeddings.
func (m *Memory) Insert(_ context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if err := checkInsert(chunks, embeddings, m.meta.Dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range chunks {
		m.chunks = append(m.chunks, chunks[i])
		m.vectors = append(m.vectors, append([]float32(nil), embeddings[i]...))
	}
	return nil
}

// Search scores every stored vector against query.
func (m *Memory) Search(_ context.Context, query []float32, topK int, minSimilarity float64) ([]rag.Hit, error) {
	if err := checkQuery(query, m.meta.Dimensions); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]rag.Hit, 0, len(m.vectors))
	for i, v := range m.vectors {
		hits = append(hits, rag.Hit{Chunk: m.chunks[i], Similarity: cosine(query, v)})
	}
	return rank(hits, topK, minSimilarity), nil
}

// DeleteSource removes every chunk from link.
func (m *Memory) DeleteSource(_ context.Context, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunks := m.chunks[:0]
	vectors := m.vectors[:0]
	for i, c := range m.chunks {
		if c.SourceLink == link {
			continue
		}
		chunks = append(chunks, c)
		vectors = append(vectors, m.vectors[i])
	}
	m.chunks, m.vectors = chunks, vectors
	return nil
}

// Clear removes everything.
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks, m.vectors = nil, nil
	return nil
}

// Count returns the number of stored chunks.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
