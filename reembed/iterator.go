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

package reembed

import (
	"context"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index"
)

const (
	// DefaultBatchSize is the default number of records handed to fn at once
	DefaultBatchSize = 100
)

// RecordIterator walks every record in an index in fixed-size batches.
type RecordIterator struct {
	source    index.Scanner
	batchSize int
}

// NewRecordIterator creates an iterator over source.
func NewRecordIterator(source index.Scanner, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		source:    source,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches of records. The last batch may
// be short. Iteration stops at the first error from fn or when ctx is done.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.DocumentRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make([]*core.DocumentRecord, 0, it.batchSize)
	err := it.source.Scan(ctx, func(rec *core.DocumentRecord) error {
		batch = append(batch, rec)
		if len(batch) < it.batchSize {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		batch = make([]*core.DocumentRecord, 0, it.batchSize)
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
