package ai

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/flitsinc/skyagent/internal/config"
)

type Config struct {
	Provider   string
	Model      string
	APIKey     string
	OllamaHost string
	MaxTokens  int
}

func FromConfig(cfg config.Config) Config {
	return Config{
		Provider:   cfg.LLMProvider,
		Model:      cfg.LLMModel,
		APIKey:     cfg.LLMAPIKey,
		OllamaHost: cfg.OllamaHost,
	}
}

// NewModel builds the langchaingo model for the configured provider.
func NewModel(cfg Config) (llms.Model, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm provider is required")
	}
	modelName := resolveModelAlias(cfg.Provider, cfg.Model)

	switch cfg.Provider {
	case config.ProviderOllama:
		if modelName == "" {
			return nil, fmt.Errorf("llm model is required")
		}
		model, err := ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return model, nil

	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if modelName != "" {
			opts = append(opts, openai.WithModel(modelName))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return model, nil

	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey)}
		if modelName != "" {
			opts = append(opts, anthropic.WithModel(modelName))
		}
		model, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return model, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func resolveModelAlias(provider, model string) string {
	alias := strings.ToLower(strings.TrimSpace(model))
	if alias == "" {
		return strings.TrimSpace(model)
	}
	switch provider {
	case config.ProviderAnthropic:
		switch alias {
		case "fast":
			return "claude-3-5-haiku-latest"
		case "balanced", "smart":
			return "claude-sonnet-4-5"
		}
	case config.ProviderOpenAI:
		switch alias {
		case "fast":
			return "gpt-4o-mini"
		case "balanced", "smart":
			return "gpt-4o"
		}
	}
	return strings.TrimSpace(model)
}
