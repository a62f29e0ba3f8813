package embedder

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// defaultHashDimensions matches all-MiniLM-L6-v2 so a hash-built index has
// the same shape as the production one.
const defaultHashDimensions = 384

// HashEmbedder is a deterministic bag-of-words feature-hashing embedder. It
// needs no network or model weights and is used for offline runs and tests.
// Vectors are L2-normalised, so dot product equals cosine similarity.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns a HashEmbedder producing dim-length vectors.
// A non-positive dim selects the default of 384.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultHashDimensions
	}
	return &HashEmbedder{dim: dim}
}

// Dimensions returns the vector length.
func (h *HashEmbedder) Dimensions() int { return h.dim }

// Model returns the model identity recorded in the index.
func (h *HashEmbedder) Model() string { return "hash-bow" }

// Embed converts a single text into its embedding.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(func(t []string) ([][]float32, error) { return h.EmbedBatch(ctx, t) }, text)
}

// ErrNoTokens is reported for text that contains no letters or digits, which
// the hash embedder cannot place anywhere in vector space.
var ErrNoTokens = errors.New("embedder: text has no letters or digits")

// EmbedBatch converts each text independently; the result equals calling
// Embed per item.
func (h *HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if err := checkInputs(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := h.vector(t)
		if !ok {
			return nil, &rag.EmbeddingError{Index: i, Err: ErrNoTokens}
		}
		out[i] = v
	}
	return out, nil
}

// vector hashes the content words of text into a unit vector. Stopwords are
// ignored unless the text has nothing else. Every token adds weight, so any
// text with at least one token has a non-zero norm. ok is false when there
// are no tokens at all.
func (h *HashEmbedder) vector(text string) (vec []float32, ok bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	content := words[:0:0]
	for _, w := range words {
		if !stopWords[w] {
			content = append(content, w)
		}
	}
	if len(content) == 0 {
		content = words
	}
	if len(content) == 0 {
		return nil, false
	}

	vec = make([]float32, h.dim)
	for _, w := range content {
		f := fnv.New64a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum64()%uint64(h.dim)]++
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := float32(1 / math.Sqrt(sumSq))
	for j := range vec {
		vec[j] *= norm
	}
	return vec, true
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "of": true,
	"to": true, "in": true, "on": true, "at": true, "by": true, "for": true, "with": true,
	"from": true, "as": true, "is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "it": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "which": true, "who": true, "how": true, "do": true,
	"does": true, "did": true, "has": true, "have": true, "had": true, "will": true,
}
