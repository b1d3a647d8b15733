package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragline/ai"
	"google.golang.org/genai"
)

// Embedder implements ai.Embedder with the EmbedContent API.
type Embedder struct {
	client *genai.Client
	model  string
	dims   int
	logger *slog.Logger
}

func newEmbedder(client *genai.Client, cfg Config) *Embedder {
	return &Embedder{
		client: client,
		model:  cfg.EmbeddingModel,
		dims:   cfg.Dimensions,
		logger: slog.Default().With("component", "gemini-embedder"),
	}
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in a single request, preserving order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", "count", len(texts), "model", e.model)

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.Text(text)...)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(e.dims)),
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbeddingCall, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: embedding result mismatch. expected %d, received %d",
			ai.ErrEmbeddingCall, len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: model returned an empty embedding at position %d", ai.ErrEmbeddingCall, i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimensions reports the requested output dimensionality.
func (e *Embedder) Dimensions() int {
	return e.dims
}
