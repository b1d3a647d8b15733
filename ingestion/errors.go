package ingestion

import "errors"

var (
	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrFeedRequired is returned when Run is called without a feed.
	ErrFeedRequired = errors.New("feed required")

	// ErrAlreadyRunning is returned when Run is called on a pipeline that is
	// already consuming a feed.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrIngestBatchFailed is returned by Run when a batch could not be
	// written to the index after all retry attempts. Run stops; the batch is
	// not dropped silently.
	ErrIngestBatchFailed = errors.New("ingest batch failed")

	// ErrInvalidMaxAttempts is returned when retry is configured with
	// fewer than one attempt.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")
)
