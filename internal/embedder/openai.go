package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// OpenAIEmbedder calls the OpenAI embeddings API, or the Azure OpenAI
// flavour of it when configured with Azure. Safe for concurrent use.
type OpenAIEmbedder struct {
	cfg    OpenAIConfig
	client *http.Client
}

// OpenAIConfig holds the settings for an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	// APIKey is sent as a Bearer token (OpenAI) or api-key header (Azure).
	APIKey string
	// Model is the model name, or the deployment name on Azure.
	Model string
	// Dimensions is the requested vector length; text-embedding-3 models
	// can shorten their output to match an existing index.
	Dimensions int
	// Azure switches URL layout and auth header.
	Azure bool
	// APIVersion is the Azure api-version query parameter.
	APIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	c := *cfg
	if c.Dimensions <= 0 {
		c.Dimensions = defaultOpenAIDimensions
	}
	return &OpenAIEmbedder{cfg: c, client: &http.Client{Timeout: 30 * time.Second}}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Dimensions returns the requested vector length.
func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Model returns the model or deployment name.
func (e *OpenAIEmbedder) Model() string { return e.cfg.Model }

// Embed converts a single text into its embedding.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(func(t []string) ([][]float32, error) { return e.EmbedBatch(ctx, t) }, text)
}

// EmbedBatch embeds texts in one request. The result is parallel to texts.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := checkInputs(texts); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(openaiEmbedRequest{Input: texts, Model: e.cfg.Model, Dimensions: e.cfg.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.Azure {
		req.Header.Set("api-key", e.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result openaiEmbedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&result); err != nil && resp.StatusCode/100 == 2 {
		return nil, fmt.Errorf("openai embedder: decode response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		if result.Error != nil && result.Error.Message != "" {
			return nil, fmt.Errorf("openai embedder: HTTP %d: %s", resp.StatusCode, result.Error.Message)
		}
		return nil, fmt.Errorf("openai embedder: HTTP %d", resp.StatusCode)
	}
	return placeByIndex(result, len(texts))
}

// endpoint returns the embeddings URL for the configured flavour.
func (e *OpenAIEmbedder) endpoint() string {
	if !e.cfg.Azure {
		return e.cfg.BaseURL + "/embeddings"
	}
	return e.cfg.BaseURL + "/deployments/" + url.PathEscape(e.cfg.Model) +
		"/embeddings?api-version=" + url.QueryEscape(e.cfg.APIVersion)
}

// placeByIndex orders the response data by its index field. Every position
// must be filled exactly once.
func placeByIndex(result openaiEmbedResponse, n int) ([][]float32, error) {
	if len(result.Data) != n {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", n, len(result.Data))
	}
	out := make([][]float32, n)
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, n)
		}
		if out[d.Index] != nil {
			return nil, fmt.Errorf("openai embedder: duplicate index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
