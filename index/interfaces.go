package index

import (
	"context"

	"github.com/poiesic/ragline/core"
)

// Index stores document embeddings and serves nearest-neighbor search.
// Implementations must be thread-safe and serialize writes to the same DocID.
type Index interface {
	// Upsert writes records as a group, replacing any existing record with
	// the same DocID. IngestedAt is set on each record at write time.
	// Records are applied in order, so a later record for a DocID wins.
	// Storage failures wrap ErrIndexUnavailable.
	Upsert(ctx context.Context, records ...*core.DocumentRecord) error

	// Search returns at most topK hits ranked by cosine similarity, highest
	// first. Equal scores rank the most recently ingested record first.
	// An empty index yields an empty result, not an error.
	Search(ctx context.Context, vector []float32, topK int) ([]core.Hit, error)

	// Delete removes records by DocID. Missing IDs are ignored.
	Delete(ctx context.Context, docIDs ...string) error

	// Get retrieves a single record by DocID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, docID string) (*core.DocumentRecord, error)

	// Health reports whether the index can serve requests.
	Health(ctx context.Context) error

	// Close releases resources held by the index.
	Close() error
}

// Scanner is implemented by indexes that can enumerate their contents.
type Scanner interface {
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Scan calls fn for every stored record. Iteration stops at the first
	// error fn returns, and Scan returns that error.
	Scan(ctx context.Context, fn func(*core.DocumentRecord) error) error
}
