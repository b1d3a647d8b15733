package gemini

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragline/ai"
	"google.golang.org/genai"
)

// Provider implements ai.AIProvider over a single genai client.
type Provider struct {
	embedder  ai.Embedder
	generator ai.Generator
	logger    *slog.Logger
}

// NewProvider validates cfg and connects to the configured backend. If the
// client cannot be created (for example, no credentials are available) the
// provider serves unavailable gateways and logs the cause.
func NewProvider(ctx context.Context, cfg Config) (ai.AIProvider, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "gemini-provider", "backend", cfg.Backend)

	client, err := genai.NewClient(ctx, cfg.clientConfig())
	if err != nil {
		logger.Error("gemini client unavailable", "err", err)
		return &Provider{
			embedder:  ai.UnavailableEmbedder(err, cfg.Dimensions),
			generator: ai.UnavailableGenerator(err),
			logger:    logger,
		}, nil
	}

	return &Provider{
		embedder:  newEmbedder(client, cfg),
		generator: newGenerator(client, cfg),
		logger:    logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; genai clients hold no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return nil
}
