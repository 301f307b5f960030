package narrative

import (
	"context"
	"fmt"
	"log/slog"
)

// Provider is a text-generation backend. Prompts instruct the model to
// answer with a JSON object; decoding stays with the callers so each
// analyzer can apply its own defensive handling.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProviderConfig selects and configures the backend.
type ProviderConfig struct {
	Backend           string // "gemini" or "openai"
	APIKey            string
	Model             string
	MaxRetries        int
	RetryDelaySeconds int
}

// NewProvider builds the configured backend. It acts as a factory,
// selecting either the Gemini or OpenAI implementation.
func NewProvider(ctx context.Context, cfg ProviderConfig, log *slog.Logger) (Provider, error) {
	log.Info("Initializing analysis backend", "backend", cfg.Backend, "model", cfg.Model)

	switch cfg.Backend {
	case "gemini":
		return newGeminiProvider(ctx, cfg, log)
	case "openai":
		return newOpenAIProvider(cfg, log)
	default:
		return nil, fmt.Errorf("unknown analysis backend: %s", cfg.Backend)
	}
}
