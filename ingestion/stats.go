package ingestion

import "sync/atomic"

// State is the pipeline's position in its batching loop.
type State int32

const (
	// StateStopped means Run is not executing.
	StateStopped State = iota
	// StateStreaming means the pipeline is waiting for events with an empty batch.
	StateStreaming
	// StateBatching means the pipeline holds a partial batch.
	StateBatching
	// StateFlushing means a batch is being embedded and written.
	StateFlushing
	// StateDraining means the pipeline is flushing its last batch before stopping.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStreaming:
		return "streaming"
	case StateBatching:
		return "batching"
	case StateFlushing:
		return "flushing"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of pipeline counters since creation.
type Stats struct {
	State         State  `json:"-"`
	Received      uint64 `json:"received"`
	Indexed       uint64 `json:"indexed"`
	Failed        uint64 `json:"failed"`
	Skipped       uint64 `json:"skipped"`
	Batches       uint64 `json:"batches"`
	FailedBatches uint64 `json:"failed_batches"`
	FeedErrors    uint64 `json:"feed_errors"`
}

type counters struct {
	state         atomic.Int32
	received      atomic.Uint64
	indexed       atomic.Uint64
	failed        atomic.Uint64
	skipped       atomic.Uint64
	batches       atomic.Uint64
	failedBatches atomic.Uint64
	feedErrors    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		State:         State(c.state.Load()),
		Received:      c.received.Load(),
		Indexed:       c.indexed.Load(),
		Failed:        c.failed.Load(),
		Skipped:       c.skipped.Load(),
		Batches:       c.batches.Load(),
		FailedBatches: c.failedBatches.Load(),
		FeedErrors:    c.feedErrors.Load(),
	}
}
