package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/feed"
	"github.com/poiesic/ragline/index"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBatchSize is the number of events that triggers a flush.
	DefaultBatchSize = 8

	// DefaultMaxWait bounds how long a partial batch waits before flushing.
	DefaultMaxWait = 2 * time.Second

	// DefaultWriteAttempts is how many times a batch write is tried while
	// the index is unavailable.
	DefaultWriteAttempts = 5

	// DefaultWriteBackoff is the delay before the second write attempt.
	DefaultWriteBackoff = 200 * time.Millisecond
)

// Pipeline batches events from a feed, embeds them, and writes them to a
// vector index. A Pipeline runs one feed at a time.
type Pipeline struct {
	index     index.Index
	embedder  ai.Embedder
	dims      int
	pool      *ants.Pool
	batchSize int
	maxWait   time.Duration
	attempts  int
	backoff   time.Duration
	dedup     bool
	onFailure FailureHandler
	logger    *slog.Logger
	now       func() time.Time

	stats counters
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of concurrent embedding calls per batch.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets the batch size that triggers a flush.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithMaxWait sets how long a partial batch may wait before it is flushed.
// Zero disables the time-based flush.
func WithMaxWait(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return fmt.Errorf("max wait must not be negative, got %s", d)
		}
		p.maxWait = d
		return nil
	}
}

// WithWriteRetry sets the number of write attempts and the initial backoff
// used while the index is unavailable.
func WithWriteRetry(attempts int, backoff time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.attempts = attempts
		p.backoff = backoff
		return nil
	}
}

// WithDeduplication skips events whose DocID is already indexed with
// identical text. Costs one index lookup per event.
func WithDeduplication(enabled bool) Option {
	return func(p *Pipeline) error {
		p.dedup = enabled
		return nil
	}
}

// WithFailureHandler registers a callback for events that fail ingestion.
func WithFailureHandler(fn FailureHandler) Option {
	return func(p *Pipeline) error {
		p.onFailure = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline writing to idx with the
// provider's embedder.
func NewPipeline(idx index.Index, provider ai.AIProvider, opts ...Option) (*Pipeline, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil || provider.Embedder() == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		index:     idx,
		embedder:  provider.Embedder(),
		dims:      provider.Embedder().Dimensions(),
		pool:      pool,
		batchSize: DefaultBatchSize,
		maxWait:   DefaultMaxWait,
		attempts:  DefaultWriteAttempts,
		backoff:   DefaultWriteBackoff,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

type feedItem struct {
	ev  core.IngestEvent
	err error
}

// Run consumes f until it ends or ctx is done, then flushes the partial
// batch and returns. Flushes are not interrupted by ctx cancellation.
// Run returns nil on a clean stop and an error wrapping
// ErrIngestBatchFailed if a batch could not be written.
func (p *Pipeline) Run(ctx context.Context, f feed.Feed) error {
	if f == nil {
		return ErrFeedRequired
	}
	if !p.stats.state.CompareAndSwap(int32(StateStopped), int32(StateStreaming)) {
		return ErrAlreadyRunning
	}
	defer p.setState(StateStopped)

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	items := make(chan feedItem)
	go func() {
		defer close(items)
		for ev, err := range f.Events(pumpCtx) {
			select {
			case items <- feedItem{ev, err}:
			case <-pumpCtx.Done():
				return
			}
		}
	}()

	flushCtx := context.WithoutCancel(ctx)
	batch := make([]core.IngestEvent, 0, p.batchSize)

	var timer *time.Timer
	var deadline <-chan time.Time
	flush := func(reason string) error {
		if timer != nil {
			timer.Stop()
			timer, deadline = nil, nil
		}
		if len(batch) == 0 {
			return nil
		}
		err := p.flush(flushCtx, batch, reason)
		batch = batch[:0]
		return err
	}

	p.logger.Info("pipeline started", "batch_size", p.batchSize, "max_wait", p.maxWait)
	for {
		select {
		case item, ok := <-items:
			if !ok {
				p.setState(StateDraining)
				p.logger.Info("feed ended, draining")
				return flush("drain")
			}
			if item.err != nil {
				p.stats.feedErrors.Add(1)
				p.logger.Warn("feed error", "err", item.err)
				continue
			}

			p.stats.received.Add(1)
			ev := item.ev
			if err := core.ValidateIngestEvent(&ev); err != nil {
				p.recordFailure(ctx, ev.DocID, err)
				continue
			}
			if ev.Timestamp.IsZero() {
				ev.Timestamp = p.now()
			}

			batch = append(batch, ev)
			p.setState(StateBatching)
			if len(batch) == 1 && p.maxWait > 0 {
				timer = time.NewTimer(p.maxWait)
				deadline = timer.C
			}
			if len(batch) >= p.batchSize {
				if err := flush("size"); err != nil {
					return err
				}
				p.setState(StateStreaming)
			}

		case <-deadline:
			timer, deadline = nil, nil
			if err := flush("max_wait"); err != nil {
				return err
			}
			p.setState(StateStreaming)

		case <-ctx.Done():
			p.setState(StateDraining)
			p.logger.Info("shutdown requested, draining", "pending", len(batch))
			return flush("drain")
		}
	}
}

// flush embeds and writes one batch. The write is retried as a whole, in
// the original order, while the index reports itself unavailable.
func (p *Pipeline) flush(ctx context.Context, events []core.IngestEvent, reason string) error {
	if State(p.stats.state.Load()) != StateDraining {
		p.setState(StateFlushing)
	}
	start := time.Now()
	defer func() { flushDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := tracer.Start(ctx, "ingestion.flush", trace.WithAttributes(
		attribute.Int("ragline.batch.size", len(events)),
		attribute.String("ragline.batch.reason", reason),
	))
	defer span.End()

	pending := events
	if p.dedup {
		pending = p.unchanged(ctx, events)
	}

	embedded := p.embed(ctx, pending)
	records := make([]*core.DocumentRecord, 0, len(embedded))
	for _, rec := range embedded {
		if rec != nil {
			records = append(records, rec)
		}
	}
	span.SetAttributes(attribute.Int("ragline.batch.records", len(records)))

	if len(records) > 0 {
		err := RetryWithBackoff(ctx, func() error {
			err := p.index.Upsert(ctx, records...)
			if err != nil && !errors.Is(err, index.ErrIndexUnavailable) {
				return Permanent(err)
			}
			return err
		}, p.attempts, p.backoff)
		if err != nil {
			p.stats.failedBatches.Add(1)
			batchesTotal.WithLabelValues("failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch write failed")
			p.logger.Error("batch write failed", "records", len(records), "attempts", p.attempts, "err", err)
			return fmt.Errorf("%w: %d records: %w", ErrIngestBatchFailed, len(records), err)
		}
	}

	p.stats.batches.Add(1)
	p.stats.indexed.Add(uint64(len(records)))
	batchesTotal.WithLabelValues("committed").Inc()
	eventsTotal.WithLabelValues("indexed").Add(float64(len(records)))
	p.logger.Debug("batch flushed",
		"reason", reason,
		"events", len(events),
		"indexed", len(records),
		"elapsed", time.Since(start))
	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return p.stats.snapshot()
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return State(p.stats.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.stats.state.Store(int32(s))
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
