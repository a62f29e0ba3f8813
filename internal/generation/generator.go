package generation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/pressqa-go/internal/budget"
	"github.com/54b3r/pressqa-go/internal/logging"
)

// Default tuning for answer generation.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.0
	DefaultOpenAIModel = "gpt-4-turbo"
)

// Generator performs a single-shot completion per prompt. It holds no
// per-request state and is safe for concurrent use.
type Generator struct {
	// chat is the eino chat model for the selected backend.
	chat model.BaseChatModel
	// tuning is applied on every call.
	tuning Tuning
	// name identifies backend/model in logs.
	name string
	// sendTemperature is false for models that reject the parameter.
	sendTemperature bool
}

// NewFromEnv resolves Config from environment variables and builds a
// Generator. Configuration problems are returned as *GenerationServiceError
// with KindAuth.
//
// Environment variables:
//
//	MODEL_PROVIDER = ollama | openai | azure | gemini | ark (default: openai)
//
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4-turbo), OPENAI_BASE_URL
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
//	Ark:     ARK_API_KEY, ARK_MODEL, ARK_BASE_URL
//
//	Shared:  MODEL_MAX_TOKENS (default: 1024), MODEL_TEMPERATURE (default: 0),
//	         MODEL_CONTEXT_TOKENS (default: budget.DefaultMaxContextTokens)
func NewFromEnv(ctx context.Context) (*Generator, error) {
	return New(ctx, ConfigFromEnv())
}

// ConfigFromEnv reads Config from environment variables without validating it.
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOpenAI))),
		Ollama: ProviderOllama{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("OLLAMA_MODEL", "llama3"),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnvOrDefault("OPENAI_MODEL", DefaultOpenAIModel),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-pro"),
		},
		Ark: ProviderArk{
			APIKey:  os.Getenv("ARK_API_KEY"),
			Model:   os.Getenv("ARK_MODEL"),
			BaseURL: os.Getenv("ARK_BASE_URL"),
		},
		Tuning: Tuning{
			MaxTokens:        getEnvInt("MODEL_MAX_TOKENS", DefaultMaxTokens),
			Temperature:      getEnvFloat32("MODEL_TEMPERATURE", DefaultTemperature),
			MaxContextTokens: getEnvInt("MODEL_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
		},
	}
}

// New validates cfg and constructs the backend chat model.
func New(ctx context.Context, cfg *Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &GenerationServiceError{Kind: KindAuth, Err: err}
	}
	chat, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, &GenerationServiceError{Kind: KindAuth, Err: err}
	}
	g := NewWithModel(chat, cfg.Tuning, string(cfg.Backend)+"/"+cfg.ModelName())
	g.sendTemperature = cfg.Backend != BackendAzure || !isAzureReasoningModel(cfg.AzureOpenAI.Deployment)
	return g, nil
}

// NewWithModel wraps an existing chat model. Used by tests and by callers
// that construct their own eino model.
func NewWithModel(chat model.BaseChatModel, tuning Tuning, name string) *Generator {
	if tuning.MaxTokens <= 0 {
		tuning.MaxTokens = DefaultMaxTokens
	}
	if tuning.MaxContextTokens <= 0 {
		tuning.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Generator{chat: chat, tuning: tuning, name: name, sendTemperature: true}
}

// Name returns "<backend>/<model>".
func (g *Generator) Name() string { return g.name }

// Complete sends prompt as a single user message and returns the model's
// text. Failures are returned as *GenerationServiceError.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	log := logging.FromContext(ctx)
	msgs := []*schema.Message{schema.UserMessage(prompt)}

	if report := budget.Check(msgs, g.tuning.MaxContextTokens); report.Over {
		log.Warn("prompt exceeds context budget",
			slog.Int("estimated_tokens", report.Estimated),
			slog.Int("budget_tokens", report.Max),
		)
	}

	opts := []model.Option{model.WithMaxTokens(g.tuning.MaxTokens)}
	if g.sendTemperature {
		opts = append(opts, model.WithTemperature(g.tuning.Temperature))
	}

	start := time.Now()
	resp, err := g.chat.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", classify(fmt.Errorf("%s: %w", g.name, err))
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &GenerationServiceError{Kind: KindEmpty, Err: fmt.Errorf("%s returned no text", g.name)}
	}

	log.Debug("generation complete",
		slog.String("model", g.name),
		slog.Duration("duration", time.Since(start)),
		slog.Int("answer_chars", len(resp.Content)),
	)
	return resp.Content, nil
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

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
