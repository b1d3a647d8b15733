package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns ErrEmbeddingUnavailable if the embedding model never initialized
	// and ErrEmbeddingCall if the model call failed.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one call.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the vector size this embedder is configured to produce.
	Dimensions() int
}

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// Generator produces a completion for a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's answer to prompt.
	// Returns ErrGenerationUnavailable if the model never initialized
	// and ErrGenerationCall if the model call failed.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the text generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
