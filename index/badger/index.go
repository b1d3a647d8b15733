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

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index"
)

// ctxCheckInterval is how many records a scan visits between context checks.
const ctxCheckInterval = 256

// Index implements index.Index and index.Scanner on BadgerDB with exact
// cosine similarity search.
type Index struct {
	backend *Backend
	dims    int
	locks   keyLocks
	logger  *slog.Logger
	now     func() time.Time
}

var (
	_ index.Index   = (*Index)(nil)
	_ index.Scanner = (*Index)(nil)
)

// Option configures an Index.
type Option func(*Index) error

// WithDimensions rejects upserts and searches whose vectors are not dims long.
// Zero disables the check.
func WithDimensions(dims int) Option {
	return func(i *Index) error {
		if dims < 0 {
			return fmt.Errorf("dimensions must not be negative, got %d", dims)
		}
		i.dims = dims
		return nil
	}
}

// WithLogger sets the logger for the index.
// If not provided, uses slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// Open opens or creates an index stored at path.
func Open(path string, opts ...Option) (*Index, error) {
	return open(path, false, opts...)
}

func open(path string, inMemory bool, opts ...Option) (*Index, error) {
	idx := &Index{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}

	backend, err := OpenBackend(path, inMemory, idx.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}
	idx.backend = backend
	idx.logger = idx.logger.With("component", "badger-index")
	return idx, nil
}

// Upsert writes records in a single transaction.
func (i *Index) Upsert(ctx context.Context, records ...*core.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}
	docIDs := make([]string, len(records))
	for n, rec := range records {
		if rec == nil || rec.DocID == "" {
			return fmt.Errorf("%w: %w", core.ErrInvalidEvent, core.ErrEmptyDocID)
		}
		if err := core.ValidateEmbedding(rec.Embedding, i.dims); err != nil {
			return fmt.Errorf("doc %q: %w", rec.DocID, err)
		}
		docIDs[n] = rec.DocID
	}
	if err := i.available(ctx); err != nil {
		return err
	}

	unlock := i.locks.lock(docIDs...)
	defer unlock()

	now := i.now()
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		for _, rec := range records {
			rec.IngestedAt = now
			value, err := index.MarshalRecord(rec)
			if err != nil {
				return err
			}
			if err := tx.Set(makeDocRecordKey(rec.DocID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		if errors.Is(err, index.ErrSerializationFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}

	i.logger.Debug("upserted records", "count", len(records))
	return nil
}

// Search scans every record and returns the topK most similar.
func (i *Index) Search(ctx context.Context, vector []float32, topK int) ([]core.Hit, error) {
	if topK < 1 {
		return nil, core.ErrInvalidTopK
	}
	if err := core.ValidateEmbedding(vector, i.dims); err != nil {
		return nil, err
	}
	if err := i.available(ctx); err != nil {
		return nil, err
	}

	hits := make([]core.Hit, 0)
	err := i.scan(ctx, true, func(rec *core.DocumentRecord) error {
		if len(rec.Embedding) != len(vector) {
			return nil
		}
		hits = append(hits, index.HitFromRecord(rec, index.CosineSimilarity(vector, rec.Embedding)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return index.RankHits(hits, topK), nil
}

// Delete removes records by DocID.
func (i *Index) Delete(ctx context.Context, docIDs ...string) error {
	if len(docIDs) == 0 {
		return nil
	}
	if err := i.available(ctx); err != nil {
		return err
	}

	unlock := i.locks.lock(docIDs...)
	defer unlock()

	err := i.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range docIDs {
			if err := tx.Delete(makeDocRecordKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}
	return nil
}

// Get retrieves a single record by DocID.
func (i *Index) Get(ctx context.Context, docID string) (*core.DocumentRecord, error) {
	if err := i.available(ctx); err != nil {
		return nil, err
	}

	var result *core.DocumentRecord
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocRecord(tx, makeDocRecordKey(docID))
		if err != nil {
			return err
		}
		if result == nil {
			return index.ErrNotFound
		}
		return nil
	}, false)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) || errors.Is(err, index.ErrSerializationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}
	return result, nil
}

// Count returns the number of stored records without decoding them.
func (i *Index) Count(ctx context.Context) (int, error) {
	if err := i.available(ctx); err != nil {
		return 0, err
	}

	count := 0
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}
	return count, nil
}

// Scan calls fn for every record in key order from a consistent snapshot.
// Records that cannot be decoded are logged and skipped.
func (i *Index) Scan(ctx context.Context, fn func(*core.DocumentRecord) error) error {
	return i.scan(ctx, false, fn)
}

// scan walks every record. When strict is set an undecodable record ends
// the walk with ErrSerializationFailed.
func (i *Index) scan(ctx context.Context, strict bool, fn func(*core.DocumentRecord) error) error {
	if err := i.available(ctx); err != nil {
		return err
	}

	var fnErr error
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		visited := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			visited++
			if visited%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var record *core.DocumentRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = index.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				if strict {
					fnErr = fmt.Errorf("%w: record %q: %w", index.ErrSerializationFailed, iter.Item().Key(), err)
					return fnErr
				}
				i.logger.Warn("skipping unreadable record", "key", string(iter.Item().Key()), "err", err)
				continue
			}

			if err := fn(record); err != nil {
				fnErr = err
				return err
			}
		}
		return nil
	}, false)

	switch {
	case err == nil:
		return nil
	case fnErr != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}
}

// Health reports whether the database is open.
func (i *Index) Health(ctx context.Context) error {
	return i.available(ctx)
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.backend.Close()
}

func (i *Index) available(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if i.backend.IsClosed() {
		return fmt.Errorf("%w: %w", index.ErrIndexUnavailable, index.ErrIndexClosed)
	}
	return nil
}

// readDocRecord reads a record from the transaction, returning nil when
// the key is absent.
func readDocRecord(tx *badger.Txn, key []byte) (*core.DocumentRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.DocumentRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = index.UnmarshalRecord(val)
		return unmarshalErr
	})
	return record, err
}
