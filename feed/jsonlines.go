package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/poiesic/ragline/core"
)

// maxLineSize bounds a single JSON line.
const maxLineSize = 4 * 1024 * 1024

// JSONLines reads one event per line from r. Blank lines are ignored.
// A line that fails to decode yields ErrMalformedEvent and reading
// continues. The sequence ends at EOF; a read error is yielded last.
//
// The reader is consumed once; calling Events again continues from where the
// previous sequence stopped.
type JSONLines struct {
	scanner *bufio.Scanner
	line    int
}

var _ Feed = (*JSONLines)(nil)

// NewJSONLines creates a feed reading newline-delimited JSON from r.
func NewJSONLines(r io.Reader) *JSONLines {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &JSONLines{scanner: scanner}
}

// Events yields decoded events.
func (j *JSONLines) Events(ctx context.Context) iter.Seq2[core.IngestEvent, error] {
	return func(yield func(core.IngestEvent, error) bool) {
		for j.scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			j.line++
			raw := j.scanner.Bytes()
			if len(bytes.TrimSpace(raw)) == 0 {
				continue
			}

			var ev core.IngestEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				if !yield(core.IngestEvent{}, fmt.Errorf("%w: line %d: %w", ErrMalformedEvent, j.line, err)) {
					return
				}
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := j.scanner.Err(); err != nil {
			yield(core.IngestEvent{}, fmt.Errorf("read events: %w", err))
		}
	}
}
