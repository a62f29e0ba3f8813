// Package generation turns an assembled prompt into an answer with a single
// chat-completion call. Backends are eino ChatModels (Ollama, OpenAI, Azure
// OpenAI, Gemini, Ark). Failures are returned as *GenerationServiceError and
// converted to a fixed user-facing sentence in exactly one place,
// AnswerOrFallback.
package generation

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcengine Ark model runtime.
	BackendArk Backend = "ark"
)

// ProviderOllama holds Ollama connection settings.
type ProviderOllama struct {
	// Host is the Ollama server base URL.
	Host string
	// Model is the chat model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI holds OpenAI credentials.
type ProviderOpenAI struct {
	// APIKey is the OpenAI secret key.
	APIKey string
	// Model is the chat model name (e.g. "gpt-4-turbo").
	Model string
	// BaseURL optionally points at an OpenAI-compatible endpoint.
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure resource key.
	APIKey string
	// Endpoint is the resource URL (https://<name>.openai.azure.com).
	Endpoint string
	// Deployment is the deployment name used as the model.
	Deployment string
	// APIVersion is the REST API version.
	APIVersion string
}

// ProviderGemini holds Google AI Studio credentials.
type ProviderGemini struct {
	// APIKey is the Google API key.
	APIKey string
	// Model is the Gemini model name.
	Model string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is the Ark API key.
	APIKey string
	// Model is the Ark endpoint ID or model name.
	Model string
	// BaseURL overrides the default Ark region endpoint.
	BaseURL string
}

// Tuning holds the sampling settings shared by every backend.
type Tuning struct {
	// MaxTokens caps the number of tokens generated per answer.
	MaxTokens int
	// Temperature controls response randomness. Answers use 0.
	Temperature float32
	// MaxContextTokens is the prompt budget; larger prompts are logged
	// with a warning but never truncated.
	MaxContextTokens int
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Gemini      ProviderGemini
	Ark         ProviderArk

	// Tuning applies to whichever backend is selected.
	Tuning Tuning
}

// ModelName returns the model identity of the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendGemini:
		return c.Gemini.Model
	case BackendArk:
		return c.Ark.Model
	default:
		return ""
	}
}

// Validate checks that the selected backend has everything it needs. The
// error names the environment variable to set.
func (c *Config) Validate() error {
	missing := func(env string) error {
		return fmt.Errorf("generation: %s backend requires %s", c.Backend, env)
	}
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return missing("OLLAMA_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing("OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return missing("OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return missing("AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return missing("AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return missing("AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return missing("GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return missing("GEMINI_MODEL")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return missing("ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return missing("ARK_MODEL")
		}
	default:
		return fmt.Errorf("generation: unknown backend %q (valid values: ollama, openai, azure, gemini, ark)", c.Backend)
	}
	if c.Tuning.MaxTokens <= 0 {
		return fmt.Errorf("generation: MODEL_MAX_TOKENS must be positive, got %d", c.Tuning.MaxTokens)
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment is an o-series
// or codex reasoning model. Those reject the temperature parameter.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, prefix := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, prefix) {
			return true
		}
	}
	return false
}
