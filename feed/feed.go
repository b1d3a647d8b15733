// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package feed

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/poiesic/ragline/core"
)

var (
	// ErrFeedClosed is returned when publishing to a closed feed.
	ErrFeedClosed = errors.New("feed closed")

	// ErrMalformedEvent is yielded for input that cannot be decoded into an event.
	ErrMalformedEvent = errors.New("malformed event")
)

// Feed is an upstream source of ingest events. Events returns a lazy,
// possibly infinite sequence; a non-nil error paired with an event reports
// a problem with one item and does not end the sequence. The sequence ends
// when the source is exhausted, closed, or ctx is done.
//
// Resumption (offsets, cursors) is the feed's own concern.
type Feed interface {
	Events(ctx context.Context) iter.Seq2[core.IngestEvent, error]
}

// Func adapts a function to the Feed interface.
type Func func(ctx context.Context) iter.Seq2[core.IngestEvent, error]

// Events calls f(ctx).
func (f Func) Events(ctx context.Context) iter.Seq2[core.IngestEvent, error] {
	return f(ctx)
}

// Slice returns a finite feed over events.
func Slice(events ...core.IngestEvent) Feed {
	return Func(func(ctx context.Context) iter.Seq2[core.IngestEvent, error] {
		return func(yield func(core.IngestEvent, error) bool) {
			for _, ev := range events {
				if ctx.Err() != nil {
					return
				}
				if !yield(ev, nil) {
					return
				}
			}
		}
	})
}

// Merge interleaves several feeds. Ordering is preserved within each feed
// but not across feeds. The merged sequence ends when every input ends.
func Merge(feeds ...Feed) Feed {
	return Func(func(ctx context.Context) iter.Seq2[core.IngestEvent, error] {
		return func(yield func(core.IngestEvent, error) bool) {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			type item struct {
				ev  core.IngestEvent
				err error
			}
			out := make(chan item)

			var wg sync.WaitGroup
			for _, f := range feeds {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for ev, err := range f.Events(ctx) {
						select {
						case out <- item{ev, err}:
						case <-ctx.Done():
							return
						}
					}
				}()
			}
			go func() {
				wg.Wait()
				close(out)
			}()

			for it := range out {
				if !yield(it.ev, it.err) {
					return
				}
			}
		}
	})
}
