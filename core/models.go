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

package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash is a 64-bit BLAKE2b digest of document text.
type ContentHash uint64

// HashContent returns a deterministic hash of text. Identical text always
// produces the same hash, which lets the ingestion pipeline skip unchanged
// documents.
func HashContent(text string) ContentHash {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ContentHash(binary.LittleEndian.Uint64(sum))
}

// Metadata is an opaque key/value map carried from the feed to query
// responses without interpretation.
type Metadata map[string]any

// IngestEvent is a single document change delivered by an upstream feed.
// Events are upserts keyed by DocID.
type IngestEvent struct {
	DocID     string
	Text      string
	Metadata  Metadata
	Timestamp time.Time // zero when the source did not provide one
}

type ingestEventJSON struct {
	DocID    string          `json:"doc_id"`
	Text     string          `json:"text"`
	Metadata Metadata        `json:"metadata,omitempty"`
	TS       json.RawMessage `json:"ts,omitempty"`
}

// UnmarshalJSON accepts ts either as epoch seconds (integer or fractional)
// or as an RFC 3339 string.
func (e *IngestEvent) UnmarshalJSON(data []byte) error {
	var raw ingestEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := parseTimestamp(raw.TS)
	if err != nil {
		return err
	}
	*e = IngestEvent{
		DocID:     raw.DocID,
		Text:      raw.Text,
		Metadata:  raw.Metadata,
		Timestamp: ts,
	}
	return nil
}

// MarshalJSON writes ts as RFC 3339 with nanoseconds, omitting it when unset.
func (e IngestEvent) MarshalJSON() ([]byte, error) {
	raw := ingestEventJSON{
		DocID:    e.DocID,
		Text:     e.Text,
		Metadata: e.Metadata,
	}
	if !e.Timestamp.IsZero() {
		ts, err := json.Marshal(e.Timestamp.Format(time.RFC3339Nano))
		if err != nil {
			return nil, err
		}
		raw.TS = ts
	}
	return json.Marshal(raw)
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err == nil {
		whole, frac := math.Modf(seconds)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return time.Time{}, fmt.Errorf("ts must be epoch seconds or an RFC 3339 string: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("ts must be epoch seconds or an RFC 3339 string: %w", err)
	}
	return ts, nil
}

// DocumentRecord is the unit of indexed knowledge: a document's text, its
// metadata, and the embedding computed from the text.
type DocumentRecord struct {
	DocID       string
	Text        string
	Metadata    Metadata
	Embedding   []float32
	ContentHash ContentHash
	Timestamp   time.Time // Source event time, defaulted to processing time
	IngestedAt  time.Time // Set by the index at write time
}

// Hit is a single retrieval result.
type Hit struct {
	DocID      string    `json:"doc_id"`
	Text       string    `json:"text"`
	Metadata   Metadata  `json:"metadata"`
	Score      float32   `json:"score"`
	IngestedAt time.Time `json:"-"`
}

// MarshalJSON always writes metadata, as an empty object when unset.
func (h Hit) MarshalJSON() ([]byte, error) {
	type hitJSON Hit
	raw := hitJSON(h)
	if raw.Metadata == nil {
		raw.Metadata = Metadata{}
	}
	return json.Marshal(raw)
}

// QueryRequest is a natural-language question.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// QueryResponse carries the generated answer and the hits used to ground it,
// in rank order.
type QueryResponse struct {
	Answer  string `json:"answer"`
	Sources []Hit  `json:"sources"`
}
