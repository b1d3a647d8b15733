package reembed

import "errors"

var (
	// ErrSourceRequired is returned when no source index is provided.
	ErrSourceRequired = errors.New("source index required")

	// ErrTargetRequired is returned when no target index is provided.
	ErrTargetRequired = errors.New("target index required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
