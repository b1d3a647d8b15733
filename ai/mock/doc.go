// Package mock provides test doubles for AI service interfaces.
//
// Each mock supports custom behavior via function fields and tracks call
// counts for test assertions. Counters are safe for the concurrent calls the
// ingestion pipeline makes.
//
// # Usage
//
//	mockEmbed := mock.NewMockEmbedder()
//	mockEmbed.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, fmt.Errorf("%w: timeout", ai.ErrEmbeddingCall)
//	}
//	provider := mock.NewMockProviderWithServices(mockEmbed, mock.NewMockGenerator())
//
// # Default Behavior
//
// Without custom functions:
//
//   - MockEmbedder: bag-of-words hash vectors from ai/offline (texts sharing words are similar)
//   - MockGenerator: returns "mock answer" and records the last prompt
package mock
