package feed

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/poiesic/ragline/core"
)

// DefaultChannelBuffer is the buffer size used by NewChannel when size < 1.
const DefaultChannelBuffer = 64

// Channel is a push feed. Producers call Publish, one consumer ranges over
// Events. Close ends the sequence after buffered events are delivered.
type Channel struct {
	ch     chan core.IngestEvent
	done   chan struct{}
	sealed chan struct{}
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ Feed = (*Channel)(nil)

// NewChannel creates a push feed with the given buffer size.
func NewChannel(size int) *Channel {
	if size < 1 {
		size = DefaultChannelBuffer
	}
	return &Channel{
		ch:     make(chan core.IngestEvent, size),
		done:   make(chan struct{}),
		sealed: make(chan struct{}),
	}
}

// PublishError reports a publish that stopped after some events had
// already been enqueued. Those events are still delivered.
type PublishError struct {
	Accepted int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%v after %d accepted events", e.Err, e.Accepted)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Publish hands events to the consumer in order, blocking while the buffer
// is full. It returns ErrFeedClosed once Close has been called; events
// accepted before that are still delivered. When a multi-event publish is
// cut short part way, the error is a *PublishError carrying the count.
func (c *Channel) Publish(ctx context.Context, events ...core.IngestEvent) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrFeedClosed
	}

	for i, ev := range events {
		var err error
		select {
		case c.ch <- ev:
			continue
		case <-c.done:
			err = ErrFeedClosed
		case <-ctx.Done():
			err = ctx.Err()
		}
		if i > 0 {
			return &PublishError{Accepted: i, Err: err}
		}
		return err
	}
	return nil
}

// Close stops accepting events. It is safe to call more than once.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		// Wait for in-flight publishers to return.
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.sealed)
	})
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered events.
func (c *Channel) Len() int {
	return len(c.ch)
}

// Events yields published events until the channel is closed and drained,
// or ctx is done.
func (c *Channel) Events(ctx context.Context) iter.Seq2[core.IngestEvent, error] {
	return func(yield func(core.IngestEvent, error) bool) {
		for {
			select {
			case ev := <-c.ch:
				if !yield(ev, nil) {
					return
				}
			case <-c.done:
				<-c.sealed
				for {
					select {
					case ev := <-c.ch:
						if !yield(ev, nil) {
							return
						}
					default:
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}
}
