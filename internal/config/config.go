// Package config loads pressqa settings from an optional YAML file and an
// optional .env file. Both are applied as environment variables and neither
// overrides a variable that is already set, so the process environment always
// has the last word and every other package keeps reading plain env vars.
//
// YAML search order:
//  1. --config CLI flag (explicit path)
//  2. PRESSQA_CONFIG environment variable
//  3. ~/.pressqa/config.yaml
//  4. ./pressqa.yaml
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the YAML document. Keys mirror the env vars they feed.
type Config struct {
	// Model configures the answer-generation backend.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding backend and query cache.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Index selects and configures the vector index.
	Index IndexConfig `yaml:"index"`

	// Retrieval holds the default top_k and similarity threshold.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Scrape configures the press-release scraper.
	Scrape ScrapeConfig `yaml:"scrape"`

	// Server configures `pressqa serve`.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures the query log.
	History HistoryConfig `yaml:"history"`

	// Tracing configures Langfuse.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds generation settings.
type ModelConfig struct {
	// Provider selects the backend: openai, azure, ollama, gemini, ark.
	Provider string `yaml:"provider"`
	// MaxTokens caps the answer length.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature is the sampling temperature. Zero is the default and is
	// therefore not distinguishable from "unset".
	Temperature float32 `yaml:"temperature"`
	// ContextTokens is the prompt size above which a warning is logged.
	ContextTokens int `yaml:"context_tokens"`

	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ark    ArkConfig    `yaml:"ark"`
}

// OllamaConfig holds Ollama settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI settings. Prefer OPENAI_API_KEY over api_key.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI settings.
type AzureConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// ArkConfig holds Volcengine Ark settings.
type ArkConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	// Provider selects the backend: ollama, openai, azure, hash.
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the model's vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey overrides the key inherited from the chat provider.
	APIKey string `yaml:"api_key"`
	// Endpoint overrides the endpoint inherited from the chat provider.
	Endpoint string `yaml:"endpoint"`
	// Cache is "memory" or a Redis address/URL for the query-embedding cache.
	Cache string `yaml:"cache"`
	// CacheTTL is a Go duration string for Redis entries.
	CacheTTL string `yaml:"cache_ttl"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	// Backend is one of qdrant, postgres, sqlite, memory.
	Backend string `yaml:"backend"`
	// DB is the SQLite file for the sqlite backend.
	DB string `yaml:"db"`
	// DatabaseURL is the PostgreSQL URL for the postgres backend.
	DatabaseURL string `yaml:"database_url"`
	// Qdrant holds the qdrant backend settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"api_key"`
	TLS        bool   `yaml:"tls"`
}

// RetrievalConfig holds request defaults.
type RetrievalConfig struct {
	// TopK is the default number of chunks retrieved.
	TopK int `yaml:"top_k"`
	// Threshold is the default minimum similarity.
	Threshold float64 `yaml:"threshold"`
}

// ScrapeConfig holds scraper settings.
type ScrapeConfig struct {
	BaseURL     string  `yaml:"base_url"`
	FeedURL     string  `yaml:"feed_url"`
	TargetCount int     `yaml:"target_count"`
	OutputDir   string  `yaml:"output_dir"`
	Concurrency int     `yaml:"concurrency"`
	RPS         float64 `yaml:"rps"`
}

// ServerConfig holds `pressqa serve` settings.
type ServerConfig struct {
	// APIKey is the Bearer token for the API. Prefer PRESSQA_API_KEY.
	APIKey string `yaml:"api_key"`
	// RefreshSchedule is a cron expression for scrape-and-ingest refreshes.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// HistoryConfig holds query log settings.
type HistoryConfig struct {
	// DBPath is the SQLite path, or "disabled".
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse settings.
type TracingConfig struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// binding ties one env var to the YAML field that feeds it.
type binding struct {
	env   string
	value func(*Config) string
}

var bindings = []binding{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return itoa(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return ftoa(float64(c.Model.Temperature), 32) }},
	{"MODEL_CONTEXT_TOKENS", func(c *Config) string { return itoa(c.Model.ContextTokens) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return itoa(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_CACHE", func(c *Config) string { return c.Embedding.Cache }},
	{"EMBEDDING_CACHE_TTL", func(c *Config) string { return c.Embedding.CacheTTL }},
	{"INDEX_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"INDEX_DB", func(c *Config) string { return c.Index.DB }},
	{"DATABASE_URL", func(c *Config) string { return c.Index.DatabaseURL }},
	{"QDRANT_HOST", func(c *Config) string { return c.Index.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return itoa(c.Index.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Index.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Index.Qdrant.APIKey }},
	{"QDRANT_USE_TLS", func(c *Config) string { return btoa(c.Index.Qdrant.TLS) }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return itoa(c.Retrieval.TopK) }},
	{"RETRIEVAL_THRESHOLD", func(c *Config) string { return ftoa(c.Retrieval.Threshold, 64) }},
	{"SCRAPE_BASE_URL", func(c *Config) string { return c.Scrape.BaseURL }},
	{"SCRAPE_FEED_URL", func(c *Config) string { return c.Scrape.FeedURL }},
	{"SCRAPE_TARGET_COUNT", func(c *Config) string { return itoa(c.Scrape.TargetCount) }},
	{"PRESS_RELEASES_DIR", func(c *Config) string { return c.Scrape.OutputDir }},
	{"SCRAPE_CONCURRENCY", func(c *Config) string { return itoa(c.Scrape.Concurrency) }},
	{"SCRAPE_RPS", func(c *Config) string { return ftoa(c.Scrape.RPS, 64) }},
	{"PRESSQA_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"PRESSQA_REFRESH_SCHEDULE", func(c *Config) string { return c.Server.RefreshSchedule }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"PRESSQA_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads the YAML file found by the search order and exports its
// non-zero values as env vars that are not already set. It returns the path
// that was loaded, or "" when no file exists. An explicit path that does
// not exist is an error.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path, err := resolvePath(explicitPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := apply(&cfg)
	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// apply exports cfg's non-zero values as env vars that are not already set.
func apply(cfg *Config) int {
	applied := 0
	for _, b := range bindings {
		v := b.value(cfg)
		if v == "" {
			continue
		}
		if _, set := os.LookupEnv(b.env); set {
			continue
		}
		if err := os.Setenv(b.env, v); err == nil {
			applied++
		}
	}
	return applied
}

// LoadDotenv loads KEY=VALUE pairs from path (".env" when empty) without
// overriding variables already in the environment. A missing file is not
// an error.
func LoadDotenv(path string, log *slog.Logger) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return nil
}

// resolvePath returns the first config file that exists, or "" if none does.
func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: --config %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := []string{os.Getenv("PRESSQA_CONFIG")}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".pressqa", "config.yaml"))
	}
	candidates = append(candidates, "pressqa.yaml")

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func itoa(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func ftoa(v float64, bits int) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(v, 'f', 4, bits), "0"), ".")
}

func btoa(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
