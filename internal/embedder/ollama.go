package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint. The
// default model, all-minilm, is all-MiniLM-L6-v2 (384 dimensions). Safe for
// concurrent use.
type OllamaEmbedder struct {
	cfg    OllamaConfig
	client *http.Client
}

// OllamaConfig holds the settings for an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the server base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model tag.
	Model string
	// Dimensions is the vector length the model produces. Responses of any
	// other length are rejected so a wrong model cannot poison the index.
	Dimensions int
}

// NewOllamaEmbedder constructs an OllamaEmbedder.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	c := *cfg
	c.Host = strings.TrimRight(c.Host, "/")
	if c.Dimensions <= 0 {
		c.Dimensions = defaultOllamaDimensions
	}
	return &OllamaEmbedder{cfg: c, client: &http.Client{Timeout: 60 * time.Second}}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Dimensions returns the configured vector length.
func (e *OllamaEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Model returns the embedding model tag.
func (e *OllamaEmbedder) Model() string { return e.cfg.Model }

// Embed converts a single text into its embedding.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(func(t []string) ([][]float32, error) { return e.EmbedBatch(ctx, t) }, text)
}

// EmbedBatch embeds texts in one request. The result is parallel to texts.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := checkInputs(texts); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)
	switch {
	case resp.StatusCode/100 != 2 && result.Error != "":
		return nil, fmt.Errorf("ollama embedder: HTTP %d: %s", resp.StatusCode, result.Error)
	case resp.StatusCode/100 != 2:
		return nil, fmt.Errorf("ollama embedder: HTTP %d", resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("ollama embedder: decode response: %w", decodeErr)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	for i, v := range result.Embeddings {
		if len(v) != e.cfg.Dimensions {
			return nil, &rag.EmbeddingError{
				Index: i,
				Err:   fmt.Errorf("model %s returned %d dimensions, expected %d", e.cfg.Model, len(v), e.cfg.Dimensions),
			}
		}
	}
	return result.Embeddings, nil
}
