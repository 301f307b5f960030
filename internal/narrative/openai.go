package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

type openAIProvider struct {
	client     openai.Client
	log        *slog.Logger
	model      string
	maxRetries int
	retryDelay time.Duration
}

func newOpenAIProvider(cfg ProviderConfig, log *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &openAIProvider{
		client:     client,
		log:        log.With("component", "openai_provider"),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

// Generate sends the prompt through the Responses API and returns the
// concatenated output text, which is more robust than reaching into the
// nested output structure.
func (p *openAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	params := responses.ResponseNewParams{
		Model: p.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}

	var lastErr error
	for i := 0; i <= p.maxRetries; i++ {
		resp, err := p.client.Responses.New(ctx, params)
		if err == nil {
			return resp.OutputText(), nil
		}
		lastErr = err

		p.log.WarnContext(ctx, "OpenAI API call failed", "attempt", i+1, "max_retries", p.maxRetries, "error", err)

		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != 429 {
			return "", fmt.Errorf("openai API call failed: %w", err)
		}
		if i < p.maxRetries {
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("openai API call failed after %d retries: %w", p.maxRetries, lastErr)
}
