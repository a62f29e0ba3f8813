package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// knownChatModelFragments identify chat/completion models which are NOT
// suitable for embedding. If EMBEDDING_MODEL matches any of these, a warning
// is emitted so the operator knows the pipeline is likely misconfigured.
var knownChatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama-3",
	"mistral",
	"mixtral",
	"gemma",
	"phi3",
	"claude",
	"deepseek",
	"qwen",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range knownChatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check of the embedding configuration. It returns
// an error when the configuration is clearly broken (e.g. azure with no API
// key) and logs a warning when EMBEDDING_MODEL looks like a chat model.
// Call it before building the embedder so operators get a clear message at
// startup rather than a failure during the first embed call.
func Validate(log *slog.Logger) error {
	backend := Backend()

	if getEnv("EMBEDDING_PROVIDER") == "" && getEnv("MODEL_PROVIDER") != "" && getEnv("MODEL_PROVIDER") != backend {
		log.Warn("embedder: MODEL_PROVIDER has no embedding backend; falling back",
			slog.String("model_provider", getEnv("MODEL_PROVIDER")),
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER to be explicit"),
		)
	}

	switch backend {
	case "openai":
		if getEnv("EMBEDDING_API_KEY") == "" && getEnv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found; set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if getEnv("EMBEDDING_API_KEY") == "" && getEnv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found; set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if getEnv("EMBEDDING_ENDPOINT") == "" && getEnv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found; set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "ollama", "hash":
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure, hash)", backend)
	}

	if model := getEnv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. all-minilm, text-embedding-3-small"),
		)
	}
	return nil
}
