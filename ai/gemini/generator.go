package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragline/ai"
	"google.golang.org/genai"
)

// Generator implements ai.Generator with the GenerateContent API.
type Generator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func newGenerator(client *genai.Client, cfg Config) *Generator {
	return &Generator{
		client: client,
		model:  cfg.GenerationModel,
		logger: slog.Default().With("component", "gemini-generator"),
	}
}

// Generate returns the model's text response to prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	g.logger.Debug("generating completion", "prompt_length", len(prompt), "model", g.model)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxTokens),
	})
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", fmt.Errorf("%w: %w", ai.ErrGenerationCall, err)
	}
	return resp.Text(), nil
}
