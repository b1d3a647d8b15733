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

// Package qdrant implements index.Index on a remote Qdrant collection using
// its REST API. Point IDs are name-based UUIDs derived from the DocID, so
// upserts for the same document overwrite one point.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "ragline-documents"

// scrollPageSize bounds each page fetched by Scan.
const scrollPageSize = 256

// pointNamespace seeds the name-based UUIDs used as point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/poiesic/ragline/points"))

// Index implements index.Index and index.Scanner on Qdrant.
type Index struct {
	endpoint   string
	collection string
	dims       int
	apiKey     string
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time

	ensureMu sync.Mutex
	ensured  bool
}

var (
	_ index.Index   = (*Index)(nil)
	_ index.Scanner = (*Index)(nil)
)

// Option configures an Index.
type Option func(*Index)

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(i *Index) { i.collection = name }
}

// WithDimensions sets the vector size used to create the collection and to
// validate vectors.
func WithDimensions(dims int) Option {
	return func(i *Index) { i.dims = dims }
}

// WithAPIKey authenticates requests with the api-key header.
func WithAPIKey(key string) Option {
	return func(i *Index) { i.apiKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Index) { i.client = client }
}

// WithLogger sets the logger for the index.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New creates a Qdrant-backed index. The collection is created lazily on
// first use if it doesn't exist.
func New(endpoint string, opts ...Option) (*Index, error) {
	if endpoint == "" {
		return nil, errors.New("qdrant endpoint is required")
	}
	idx := &Index{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		collection: DefaultCollection,
		dims:       768,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.dims < 1 {
		return nil, fmt.Errorf("qdrant dimensions must be positive, got %d", idx.dims)
	}
	idx.logger = idx.logger.With("component", "qdrant-index", "collection", idx.collection)
	return idx, nil
}

// PointID returns the Qdrant point ID for docID.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

type payload struct {
	DocID       string        `json:"doc_id"`
	Text        string        `json:"text"`
	Metadata    core.Metadata `json:"metadata,omitempty"`
	ContentHash string        `json:"content_hash"`
	Timestamp   string        `json:"ts"`
	IngestedAt  string        `json:"ingested_at"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload payload   `json:"payload"`
	Score   float32   `json:"score,omitempty"`
}

func toPoint(rec *core.DocumentRecord) point {
	return point{
		ID:     PointID(rec.DocID),
		Vector: rec.Embedding,
		Payload: payload{
			DocID:       rec.DocID,
			Text:        rec.Text,
			Metadata:    rec.Metadata,
			ContentHash: strconv.FormatUint(uint64(rec.ContentHash), 10),
			Timestamp:   rec.Timestamp.Format(time.RFC3339Nano),
			IngestedAt:  rec.IngestedAt.Format(time.RFC3339Nano),
		},
	}
}

func (p point) record() *core.DocumentRecord {
	hash, _ := strconv.ParseUint(p.Payload.ContentHash, 10, 64)
	ts, _ := time.Parse(time.RFC3339Nano, p.Payload.Timestamp)
	ingested, _ := time.Parse(time.RFC3339Nano, p.Payload.IngestedAt)
	return &core.DocumentRecord{
		DocID:       p.Payload.DocID,
		Text:        p.Payload.Text,
		Metadata:    p.Payload.Metadata,
		Embedding:   p.Vector,
		ContentHash: core.ContentHash(hash),
		Timestamp:   ts,
		IngestedAt:  ingested,
	}
}

// Upsert writes all records in one request and waits for it to be applied.
func (i *Index) Upsert(ctx context.Context, records ...*core.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec == nil || rec.DocID == "" {
			return fmt.Errorf("%w: %w", core.ErrInvalidEvent, core.ErrEmptyDocID)
		}
		if err := core.ValidateEmbedding(rec.Embedding, i.dims); err != nil {
			return fmt.Errorf("doc %q: %w", rec.DocID, err)
		}
	}
	if err := i.ensureCollection(ctx); err != nil {
		return err
	}

	// Later records for the same DocID replace earlier ones.
	now := i.now()
	points := make([]point, 0, len(records))
	position := make(map[string]int, len(records))
	for _, rec := range records {
		rec.IngestedAt = now
		p := toPoint(rec)
		if n, ok := position[p.ID]; ok {
			points[n] = p
			continue
		}
		position[p.ID] = len(points)
		points = append(points, p)
	}

	return i.do(ctx, http.MethodPut, i.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Search asks Qdrant for the topK nearest points and re-ranks them so equal
// scores favor the most recent ingestion.
func (i *Index) Search(ctx context.Context, vector []float32, topK int) ([]core.Hit, error) {
	if topK < 1 {
		return nil, core.ErrInvalidTopK
	}
	if err := core.ValidateEmbedding(vector, i.dims); err != nil {
		return nil, err
	}
	if err := i.ensureCollection(ctx); err != nil {
		return nil, err
	}

	var resp struct {
		Result []point `json:"result"`
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if err := i.do(ctx, http.MethodPost, i.collectionURL("/points/search"), body, &resp); err != nil {
		return nil, err
	}

	hits := make([]core.Hit, 0, len(resp.Result))
	for _, p := range resp.Result {
		hits = append(hits, index.HitFromRecord(p.record(), p.Score))
	}
	return index.RankHits(hits, topK), nil
}

// Delete removes points by DocID.
func (i *Index) Delete(ctx context.Context, docIDs ...string) error {
	if len(docIDs) == 0 {
		return nil
	}
	if err := i.ensureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, len(docIDs))
	for n, id := range docIDs {
		ids[n] = PointID(id)
	}
	return i.do(ctx, http.MethodPost, i.collectionURL("/points/delete?wait=true"), map[string]any{"points": ids}, nil)
}

// Get retrieves a single record by DocID.
func (i *Index) Get(ctx context.Context, docID string) (*core.DocumentRecord, error) {
	if err := i.ensureCollection(ctx); err != nil {
		return nil, err
	}

	var resp struct {
		Result point `json:"result"`
	}
	err := i.do(ctx, http.MethodGet, i.collectionURL("/points/"+PointID(docID)), nil, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, index.ErrNotFound
		}
		return nil, err
	}
	return resp.Result.record(), nil
}

// Count returns the exact number of points in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	if err := i.ensureCollection(ctx); err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := i.do(ctx, http.MethodPost, i.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Scan pages through the collection with the scroll API.
func (i *Index) Scan(ctx context.Context, fn func(*core.DocumentRecord) error) error {
	if err := i.ensureCollection(ctx); err != nil {
		return err
	}

	var offset any
	for {
		body := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := i.do(ctx, http.MethodPost, i.collectionURL("/points/scroll"), body, &resp); err != nil {
			return err
		}

		for _, p := range resp.Result.Points {
			if err := fn(p.record()); err != nil {
				return err
			}
		}
		if resp.Result.NextPageOffset == nil {
			return nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// Health checks that the Qdrant server is reachable.
func (i *Index) Health(ctx context.Context) error {
	return i.do(ctx, http.MethodGet, i.endpoint+"/healthz", nil, nil)
}

// Close releases idle connections.
func (i *Index) Close() error {
	i.client.CloseIdleConnections()
	return nil
}

// ensureCollection creates the collection if it doesn't exist. Unlike a
// sync.Once, a failed attempt is retried on the next call.
func (i *Index) ensureCollection(ctx context.Context) error {
	i.ensureMu.Lock()
	defer i.ensureMu.Unlock()
	if i.ensured {
		return nil
	}

	err := i.do(ctx, http.MethodGet, i.collectionURL(""), nil, nil)
	var se *statusError
	switch {
	case err == nil:
	case errors.As(err, &se) && se.code == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{
				"size":     i.dims,
				"distance": "Cosine",
			},
		}
		if err := i.do(ctx, http.MethodPut, i.collectionURL(""), body, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		i.logger.Info("created collection", "dimensions", i.dims)
	default:
		return err
	}

	i.ensured = true
	return nil
}

func (i *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", i.endpoint, i.collection, suffix)
}

// statusError is a non-2xx response from Qdrant.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned %d: %s", e.code, e.body)
}

// do sends a JSON request and decodes the response into out when non-nil.
// Transport failures and 5xx responses wrap index.ErrIndexUnavailable.
func (i *Index) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: %w", index.ErrSerializationFailed, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", index.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", index.ErrIndexUnavailable, se)
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", index.ErrIndexUnavailable, err)
	}
	return nil
}
