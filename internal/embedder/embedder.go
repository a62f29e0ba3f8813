// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings. The remote backends (Ollama,
// OpenAI, Azure OpenAI) are spoken to over plain HTTP; the hash backend runs
// in-process and needs no network at all.
package embedder

import (
	"io"
	"strings"
	"sync"

	"github.com/54b3r/pressqa-go/internal/rag"
)

var (
	sharedOnce sync.Once
	shared     rag.Embedder
	sharedErr  error
)

// Shared returns the process-wide embedder built from the environment on
// first use. Later calls return the same instance (or the same error). The
// instance is read-only and safe to share between goroutines.
func Shared() (rag.Embedder, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = NewFromEnv()
	})
	return shared, sharedErr
}

// CloseShared releases whatever the shared embedder holds open. It is a
// no-op when Shared was never called or built nothing closable.
func CloseShared() error {
	if shared == nil {
		return nil
	}
	if c, ok := shared.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// checkInputs rejects blank texts, reporting the first offending position.
func checkInputs(texts []string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return &rag.EmbeddingError{Index: i, Err: rag.ErrEmptyText}
		}
	}
	return nil
}

// embedOne runs a single text through a batch call and unwraps the result.
func embedOne(batch func([]string) ([][]float32, error), text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &rag.EmbeddingError{Index: -1, Err: rag.ErrEmptyText}
	}
	out, err := batch([]string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
