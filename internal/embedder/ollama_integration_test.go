//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration performs a real HTTP call to a locally running
// Ollama instance to validate the embedder end-to-end.
//
// Prerequisites:
//
//	ollama pull all-minilm
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{
		Host:       host,
		Model:      model,
		Dimensions: DefaultDimensions("ollama"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"Deutsche Telekom expands its fibre-optic network in rural Germany.",
		"T-Mobile US reports record postpaid phone net additions.",
	}

	embeddings, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}
	if len(embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	single, err := emb.Embed(ctx, texts[0])
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}
	if cosine(single, embeddings[0]) < 0.999 {
		t.Error("single and batch embeddings of the same text differ")
	}
	if cosine(embeddings[0], embeddings[1]) > 0.999 {
		t.Error("embeddings of different texts are identical; model may not be working correctly")
	}

	t.Logf("model=%s dim=%d", model, len(embeddings[0]))
}
