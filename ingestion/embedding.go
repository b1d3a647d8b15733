package ingestion

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index"
)

// Failure describes one event that could not be indexed.
type Failure struct {
	DocID string
	Err   error
}

// FailureHandler receives ingest failures. It may be called from several
// goroutines at once.
type FailureHandler func(ctx context.Context, f Failure)

// embed turns events into records concurrently. The result is aligned with
// events; entries for failed events are nil.
func (p *Pipeline) embed(ctx context.Context, events []core.IngestEvent) []*core.DocumentRecord {
	records := make([]*core.DocumentRecord, len(events))

	var wg sync.WaitGroup
	for i, ev := range events {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			records[i] = p.embedOne(ctx, ev)
		}
		if err := p.pool.Submit(task); err != nil {
			p.logger.Debug("pool unavailable, embedding inline", "err", err)
			task()
		}
	}
	wg.Wait()

	return records
}

// embedOne never substitutes a placeholder vector: a failed or malformed
// embedding excludes the event from the write.
func (p *Pipeline) embedOne(ctx context.Context, ev core.IngestEvent) *core.DocumentRecord {
	vec, err := p.embedder.EmbedText(ctx, ev.Text)
	if err == nil {
		err = core.ValidateEmbedding(vec, p.dims)
	}
	if err != nil {
		p.recordFailure(ctx, ev.DocID, err)
		return nil
	}

	return &core.DocumentRecord{
		DocID:       ev.DocID,
		Text:        ev.Text,
		Metadata:    ev.Metadata,
		Embedding:   vec,
		ContentHash: core.HashContent(ev.Text),
		Timestamp:   ev.Timestamp,
	}
}

// unchanged filters out events whose DocID is already indexed with the same
// content. Only the first event for a DocID in the batch is compared with
// the stored record; later ones always stay so updates apply in order.
// Lookup errors keep the event.
func (p *Pipeline) unchanged(ctx context.Context, events []core.IngestEvent) []core.IngestEvent {
	kept := events[:0:0]
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.DocID]; ok {
			kept = append(kept, ev)
			continue
		}
		seen[ev.DocID] = struct{}{}

		existing, err := p.index.Get(ctx, ev.DocID)
		switch {
		case err == nil && existing.ContentHash == core.HashContent(ev.Text):
			p.stats.skipped.Add(1)
			eventsTotal.WithLabelValues("skipped").Inc()
			p.logger.Debug("skipping unchanged document", "doc_id", ev.DocID)
			continue
		case err != nil && !errors.Is(err, index.ErrNotFound):
			p.logger.Debug("dedup lookup failed", "doc_id", ev.DocID, "err", err)
		}
		kept = append(kept, ev)
	}
	return kept
}

func (p *Pipeline) recordFailure(ctx context.Context, docID string, err error) {
	p.stats.failed.Add(1)
	eventsTotal.WithLabelValues("failed").Inc()
	p.logger.Warn("ingest failed", "doc_id", docID, "err", err)
	if p.onFailure != nil {
		p.onFailure(ctx, Failure{DocID: docID, Err: err})
	}
}
