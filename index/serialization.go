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

package index

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/ragline/core"
	"github.com/viant/bintly"
)

// recordVersion is written first so the layout can evolve.
const recordVersion int16 = 1

var (
	writers = bintly.NewWriters()
	readers = bintly.NewReaders()
)

// MarshalRecord encodes a DocumentRecord into its binary storage form.
// Metadata is stored as JSON so arbitrary values survive the round trip.
func MarshalRecord(rec *core.DocumentRecord) ([]byte, error) {
	meta := ""
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
		}
		meta = string(data)
	}

	w := writers.Get()
	defer writers.Put(w)

	w.Int16(recordVersion)
	w.String(rec.DocID)
	w.String(rec.Text)
	w.String(meta)
	w.Int(int(rec.ContentHash))
	w.Time(rec.Timestamp)
	w.Time(rec.IngestedAt)
	w.Int(len(rec.Embedding))
	for _, v := range rec.Embedding {
		w.Float32(v)
	}

	// Bytes allocates a fresh slice and resets the writer.
	return w.Bytes(), nil
}

// UnmarshalRecord decodes bytes produced by MarshalRecord.
func UnmarshalRecord(data []byte) (rec *core.DocumentRecord, err error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}

	r := readers.Get()
	defer readers.Put(r)

	// The reader indexes past the end of short input instead of returning an error.
	defer func() {
		if p := recover(); p != nil {
			rec, err = nil, fmt.Errorf("%w: %v", ErrTruncatedData, p)
		}
	}()

	if err := r.FromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	var version int16
	r.Int16(&version)
	if version != recordVersion {
		return nil, fmt.Errorf("%w: unsupported record version %d", ErrSerializationFailed, version)
	}

	rec = &core.DocumentRecord{}
	var meta string
	var hash, dims int
	r.String(&rec.DocID)
	r.String(&rec.Text)
	r.String(&meta)
	r.Int(&hash)
	r.Time(&rec.Timestamp)
	r.Time(&rec.IngestedAt)
	r.Int(&dims)
	if dims < 0 || dims > len(data) {
		return nil, fmt.Errorf("%w: embedding length %d", ErrTruncatedData, dims)
	}
	rec.ContentHash = core.ContentHash(uint64(hash))
	rec.Embedding = make([]float32, dims)
	for i := range rec.Embedding {
		r.Float32(&rec.Embedding[i])
	}

	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
		}
	}
	return rec, nil
}
