package dispatch

import (
	"context"
	"fmt"
	"os"
	"strconv"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"google.golang.org/genai"

	"github.com/genskey/gskai-go/internal/registry"
)

// Config holds the per-family credentials and shared tuning used to build
// backend adapters. Populate it explicitly or via ConfigFromEnv.
type Config struct {
	// OpenAIAPIKey authenticates the openai family.
	OpenAIAPIKey string

	// AnthropicAPIKey and AnthropicEndpoint configure the anthropic family,
	// served through a Bedrock-compatible endpoint via the ark adapter.
	AnthropicAPIKey   string
	AnthropicEndpoint string

	// OllamaHost is the local Ollama server serving the meta family.
	OllamaHost string

	// GoogleAPIKey authenticates the google family (Gemini API).
	GoogleAPIKey string

	// MaxTokens caps tokens generated per response. Default 4096.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0). Default 0.2.
	Temperature float32
}

// ConfigFromEnv reads adapter configuration from environment variables.
//
//	OpenAI:    OPENAI_API_KEY
//	Anthropic: ANTHROPIC_API_KEY, ANTHROPIC_ENDPOINT
//	Meta:      OLLAMA_HOST (default: http://localhost:11434)
//	Google:    GOOGLE_API_KEY
//	Shared:    MODEL_MAX_TOKENS (default: 4096), MODEL_TEMPERATURE (default: 0.2)
func ConfigFromEnv() *Config {
	return &Config{
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicEndpoint: os.Getenv("ANTHROPIC_ENDPOINT"),
		OllamaHost:        getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
		GoogleAPIKey:      os.Getenv("GOOGLE_API_KEY"),
		MaxTokens:         getEnvInt("MODEL_MAX_TOKENS", 0),
		Temperature:       getEnvFloat32("MODEL_TEMPERATURE", 0),
	}
}

// applyDefaults fills zero-value tuning fields.
func (c *Config) applyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.OllamaHost == "" {
		c.OllamaHost = "http://localhost:11434"
	}
}

// familyBuilders wires one adapter constructor per implemented family.
// Construction is deferred to first dispatch so a family with missing
// credentials only fails when a model of that family is actually routed.
func familyBuilders(cfg *Config) map[registry.Family]builder {
	return map[registry.Family]builder{
		registry.FamilyOpenAI:    newOpenAIBuilder(cfg),
		registry.FamilyAnthropic: newAnthropicBuilder(cfg),
		registry.FamilyMeta:      newMetaBuilder(cfg),
		registry.FamilyGoogle:    newGoogleBuilder(cfg),
	}
}

// newOpenAIBuilder returns the openai family constructor.
func newOpenAIBuilder(cfg *Config) builder {
	return func(ctx context.Context, backendModel string) (chatModel, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai family")
		}
		maxTokens := cfg.MaxTokens
		temp := cfg.Temperature
		return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
			Model:       backendModel,
			APIKey:      cfg.OpenAIAPIKey,
			MaxTokens:   &maxTokens,
			Temperature: &temp,
		})
	}
}

// newAnthropicBuilder returns the anthropic family constructor. Claude
// models are reached through a Bedrock-compatible endpoint, so the ark
// adapter carries the call.
func newAnthropicBuilder(cfg *Config) builder {
	return func(ctx context.Context, backendModel string) (chatModel, error) {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic family")
		}
		maxTokens := cfg.MaxTokens
		temp := cfg.Temperature
		return einoark.NewChatModel(ctx, &einoark.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
			Model:       backendModel,
			APIKey:      cfg.AnthropicAPIKey,
			BaseURL:     cfg.AnthropicEndpoint,
			MaxTokens:   &maxTokens,
			Temperature: &temp,
		})
	}
}

// newMetaBuilder returns the meta family constructor. Llama models are
// served by a local Ollama instance; no API key is required.
func newMetaBuilder(cfg *Config) builder {
	return func(ctx context.Context, backendModel string) (chatModel, error) {
		return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
			BaseURL: cfg.OllamaHost,
			Model:   backendModel,
		})
	}
}

// newGoogleBuilder returns the google family constructor.
func newGoogleBuilder(cfg *Config) builder {
	return func(ctx context.Context, backendModel string) (chatModel, error) {
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for the google family")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GoogleAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return einogemini.NewChatModel(ctx, &einogemini.Config{ //nolint:wrapcheck // constructor passthrough
			Client: client,
			Model:  backendModel,
		})
	}
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
