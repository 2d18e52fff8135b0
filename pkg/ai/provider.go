package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ProviderConfig selects and configures an LLM backend.
type ProviderConfig struct {
	Provider string
	APIKey   string
	// KeyName is reported to clients when APIKey is empty.
	KeyName string
	Model   string
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewCompleter returns the Completer for the configured provider. A missing credential
// is not an error here: the returned Unconfigured completer rejects every request instead.
func NewCompleter(ctx context.Context, cfg ProviderConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return Unconfigured{KeyName: cfg.KeyName}, nil
	}

	switch cfg.Provider {
	case "openrouter", "":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = OpenRouterBaseURL
		}
		model := cfg.Model
		if model == "" {
			model = "openai/gpt-4.1-mini"
		}
		return NewOpenAIClient(OpenAIConfig{
			Provider: "openrouter",
			APIKey:   cfg.APIKey,
			Model:    model,
			BaseURL:  baseURL,
			Timeout:  cfg.Timeout,
			Logger:   cfg.Logger,
		})
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			Provider: "openai",
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
			Logger:   cfg.Logger,
		})
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
			Logger: cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
