package embedder

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// Default embedding models per backend.
const (
	// defaultOllamaModel is Ollama's packaging of all-MiniLM-L6-v2.
	defaultOllamaModel = "all-minilm"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of all-minilm.
	// Other Ollama models differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 384
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	case "hash":
		return defaultHashDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// Backend resolves the embedding backend name: EMBEDDING_PROVIDER, then
// MODEL_PROVIDER when it names an embedding-capable backend, then "ollama".
func Backend() string {
	if b := getEnv("EMBEDDING_PROVIDER"); b != "" {
		return b
	}
	switch p := getEnv("MODEL_PROVIDER"); p {
	case "openai", "azure", "ollama":
		return p
	}
	return "ollama"
}

// OllamaHost is the Ollama server used for embeddings: EMBEDDING_ENDPOINT,
// else OLLAMA_HOST, else the local default.
func OllamaHost() string {
	if host := getEnv("EMBEDDING_ENDPOINT"); host != "" {
		return host
	}
	return getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
}

// NewFromEnv constructs a rag.Embedder using cascading defaults that inherit
// from the chat provider configuration when embedding-specific overrides are
// not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER (ollama, openai, azure, hash); see Backend
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions
//  7. EMBEDDING_CACHE ("memory" or a Redis address/URL) wraps the result
//     in a query-embedding cache
func NewFromEnv() (rag.Embedder, error) {
	backend := Backend()
	dims := DefaultDimensions(backend)

	var base rag.Embedder
	switch backend {
	case "ollama":
		base = NewOllamaEmbedder(&OllamaConfig{
			Host:       OllamaHost(),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
			Dimensions: dims,
		})

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		base = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnvOrDefault("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
		})

	case "azure":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		base = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(endpoint, "/") + "/openai",
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		})

	case "hash":
		base = NewHashEmbedder(dims)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure, hash)", backend)
	}

	cache, err := cacheFromEnv()
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return base, nil
	}
	return NewCached(base, cache), nil
}

// cacheFromEnv builds the cache named by EMBEDDING_CACHE, or nil when unset.
func cacheFromEnv() (Cache, error) {
	target := getEnv("EMBEDDING_CACHE")
	if target == "" {
		return nil, nil
	}
	if target == "memory" {
		return NewMemoryCache(), nil
	}

	ttl := 24 * time.Hour
	if v := getEnv("EMBEDDING_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("embedder: EMBEDDING_CACHE_TTL %q: %w", v, err)
		}
		ttl = d
	}

	opts := RedisOptions{Address: target, TTL: ttl}
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("embedder: EMBEDDING_CACHE: %w", err)
		}
		opts.Address = parsed.Addr
		opts.Password = parsed.Password
		opts.DB = parsed.DB
	}
	return NewRedisCache(opts), nil
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
