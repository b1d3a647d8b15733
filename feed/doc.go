// Package feed provides upstream change feeds for the ingestion pipeline.
//
// A Feed yields ingest events as a lazy sequence. Implementations include:
//   - Channel: an in-process push feed used by the HTTP ingest endpoint
//   - JSONLines: newline-delimited JSON events read from an io.Reader
//   - DirWatch: files under a directory, re-emitted when they change
//
// Feeds own their resumption semantics. The pipeline consuming them does not
// track offsets.
package feed
