package reembed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index"
	"github.com/poiesic/ragline/ingestion"
)

// BatchProcessor embeds a batch of records and writes them to the target.
type BatchProcessor struct {
	target         index.Index
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a processor. Both the embedding call and the
// write are retried up to maxRetries times.
func NewBatchProcessor(target index.Index, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		target:         target,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process replaces the embedding of every record. A batch either succeeds
// as a whole or returns an error; no record is written with a vector that
// failed validation.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := ingestion.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(embeddings))
	}

	dims := bp.embedder.Dimensions()
	updated := make([]*core.DocumentRecord, len(records))
	for i, record := range records {
		if err := core.ValidateEmbedding(embeddings[i], dims); err != nil {
			return fmt.Errorf("doc %q: %w", record.DocID, err)
		}
		rec := *record
		rec.Embedding = embeddings[i]
		rec.ContentHash = core.HashContent(rec.Text)
		updated[i] = &rec
	}

	err = ingestion.RetryWithBackoff(ctx, func() error {
		err := bp.target.Upsert(ctx, updated...)
		if err != nil && !errors.Is(err, index.ErrIndexUnavailable) {
			return ingestion.Permanent(err)
		}
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}

	return nil
}
