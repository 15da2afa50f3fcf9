package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trainlyhq/trainly-core/internal/config"
)

// Gateway routes answer and embedding calls to the configured providers
// with bounded retries.
type Gateway struct {
	providers       map[string]Provider
	defaultProvider string
	embeddingModel  string
	maxRetries      int
}

func NewGateway(cfg config.LLMConfig) *Gateway {
	g := &Gateway{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.DefaultProvider,
		embeddingModel:  cfg.EmbeddingModel,
		maxRetries:      cfg.MaxRetries,
	}

	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}

	return g
}

func (g *Gateway) provider(name string) (Provider, error) {
	if name == "" {
		name = g.defaultProvider
	}
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// providerForModel picks the provider by model name prefix, falling back to
// the default.
func (g *Gateway) providerForModel(model string) (Provider, error) {
	if len(model) >= 6 && model[:6] == "claude" {
		if p, ok := g.providers["anthropic"]; ok {
			return p, nil
		}
	}
	return g.provider("")
}

func (g *Gateway) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	p, err := g.providerForModel(req.Model)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			slog.Debug("retrying answer call", "provider", p.Name(), "attempt", attempt)
		}

		resp, err := p.Answer(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", p.Name(), lastErr)
}

// Embed always routes to openai regardless of the chat provider.
func (g *Gateway) Embed(ctx context.Context, input []string) ([][]float32, int, error) {
	p, ok := g.providers["openai"]
	if !ok {
		return nil, 0, fmt.Errorf("embedding provider not configured")
	}
	return p.Embed(ctx, g.embeddingModel, input)
}
