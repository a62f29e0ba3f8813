package rag

import (
	"errors"
	"fmt"
	"math"
)

// Retrieval parameter bounds and defaults.
const (
	// MinTopK is the smallest accepted top_k.
	MinTopK = 1
	// MaxTopK is the largest accepted top_k.
	MaxTopK = 15
	// DefaultTopK is the number of chunks retrieved when the caller does not choose.
	DefaultTopK = 5
	// DefaultThreshold is the minimum similarity used when the caller does not choose.
	DefaultThreshold = 0.5
)

// ErrEmptyText is the cause reported when an embedder is handed blank text.
var ErrEmptyText = errors.New("text is empty")

// ErrDimensionMismatch is reported by an index handed a vector whose length
// differs from the one it was created with.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// FieldEmbeddingDimensions names the ConfigurationError raised when the
// configured embedder does not match the index. Unlike top_k and the
// threshold it is a deployment problem, not a caller mistake.
const FieldEmbeddingDimensions = "embedding_dimensions"

// ConfigurationError reports an invalid retrieval parameter. It is raised
// before the index is queried.
type ConfigurationError struct {
	// Field is the parameter name (e.g. "top_k").
	Field string
	// Value is the rejected value.
	Value any
	// Reason describes the accepted range.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("rag: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// EmbeddingError reports that the embedder could not process one input.
type EmbeddingError struct {
	// Index is the position of the failing text within its batch, or -1
	// for a single-text call.
	Index int
	// Err is the underlying cause.
	Err error
}

func (e *EmbeddingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("rag: embedding failed: %v", e.Err)
	}
	return fmt.Sprintf("rag: embedding failed for item %d: %v", e.Index, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexUnavailableError reports that the vector index could not be reached
// or queried.
type IndexUnavailableError struct {
	// Op is the index operation that failed (search, insert, clear, ...).
	Op string
	// Err is the underlying cause.
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("rag: vector index unavailable (%s): %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// ValidateParams checks top_k and the similarity threshold against the
// accepted ranges.
func ValidateParams(topK int, threshold float64) error {
	if topK < MinTopK || topK > MaxTopK {
		return &ConfigurationError{
			Field:  "top_k",
			Value:  topK,
			Reason: fmt.Sprintf("must be an integer in [%d, %d]", MinTopK, MaxTopK),
		}
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return &ConfigurationError{
			Field:  "similarity_threshold",
			Value:  threshold,
			Reason: "must be in [0, 1]",
		}
	}
	return nil
}

// IsIndexUnavailable reports whether err is or wraps an *IndexUnavailableError.
func IsIndexUnavailable(err error) bool {
	var ie *IndexUnavailableError
	return errors.As(err, &ie)
}
