// Package ingestion turns an upstream feed of ingest events into embedded
// records in a vector index.
//
// The Pipeline consumes a feed.Feed and groups events into batches. A batch
// is flushed when it reaches the configured size, when the oldest event in
// it has waited longer than the maximum wait, or when the pipeline shuts
// down. Flushing a batch:
//   - embeds every event concurrently on a worker pool
//   - records events whose embedding failed (or had the wrong dimensions)
//     as failures and leaves them out of the write
//   - upserts the remaining records as one group, retrying with bounded
//     exponential backoff while the index is unavailable
//
// If the index stays unavailable past the last attempt, Run returns
// ErrIngestBatchFailed.
package ingestion
