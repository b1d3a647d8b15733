package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/feed"
	"github.com/poiesic/ragline/index"
	"github.com/poiesic/ragline/index/badger"
	"github.com/poiesic/ragline/query"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnswerer struct {
	resp *core.QueryResponse
	err  error
	req  core.QueryRequest
}

func (s *stubAnswerer) Answer(_ context.Context, req core.QueryRequest) (*core.QueryResponse, error) {
	s.req = req
	return s.resp, s.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.IngestEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...core.IngestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func newIndex(t *testing.T) *badger.Index {
	t.Helper()
	idx, err := badger.NewMemoryIndex(badger.WithDimensions(mock.DefaultDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func newServer(t *testing.T, answerer Answerer, idx index.Index, opts ...Option) *httptest.Server {
	t.Helper()
	s, err := New(answerer, idx, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestNew_Validation(t *testing.T) {
	idx := newIndex(t)

	_, err := New(nil, idx)
	assert.ErrorIs(t, err, ErrAnswererRequired)

	_, err = New(&stubAnswerer{}, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = New(&stubAnswerer{}, idx, WithMaxBodyBytes(0))
	assert.Error(t, err)
}

func TestQuery_EndToEnd(t *testing.T) {
	idx := newIndex(t)
	embedder := mock.NewMockEmbedder()
	generator := mock.NewMockGenerator()
	generator.GenerateFunc = func(_ context.Context, prompt string, _ ai.GenerateOptions) (string, error) {
		if strings.Contains(prompt, "cats purr") {
			return "Cats purr.", nil
		}
		return "I don't know.", nil
	}

	for id, text := range map[string]string{"a": "cats purr", "b": "dogs bark"} {
		vec, err := embedder.EmbedText(context.Background(), text)
		require.NoError(t, err)
		require.NoError(t, idx.Upsert(context.Background(), &core.DocumentRecord{
			DocID: id, Text: text, Embedding: vec, Timestamp: time.Now().UTC(),
		}))
	}

	orch, err := query.NewOrchestrator(idx, mock.NewMockProviderWithServices(embedder, generator))
	require.NoError(t, err)
	ts := newServer(t, orch, idx)

	resp := post(t, ts.URL+"/query", `{"query":"what sound do cats make","top_k":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var out core.QueryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Cats purr.", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "a", out.Sources[0].DocID)
}

func TestQuery_EmptyIndexReturnsEmptySources(t *testing.T) {
	idx := newIndex(t)
	orch, err := query.NewOrchestrator(idx, mock.NewMockProvider())
	require.NoError(t, err)
	ts := newServer(t, orch, idx)

	resp := post(t, ts.URL+"/query", `{"query":"anything at all"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["sources"]))
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "short query",
			err:        fmt.Errorf("%w: %w", core.ErrInvalidRequest, core.ErrQueryTooShort),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "embedding failure",
			err:        fmt.Errorf("%w: %w: %w", query.ErrRetrievalFailed, query.ErrQueryEmbedding, ai.ErrEmbeddingCall),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeEmbeddingFailed,
		},
		{
			name:       "index failure",
			err:        fmt.Errorf("%w: %w", query.ErrRetrievalFailed, index.ErrIndexUnavailable),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeRetrievalFailed,
		},
		{
			name:       "generation call failure",
			err:        fmt.Errorf("%w: %w", query.ErrGenerationFailed, ai.ErrGenerationCall),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeGenerationFailed,
		},
		{
			name:       "generation timeout",
			err:        fmt.Errorf("%w: %w", query.ErrGenerationFailed, context.DeadlineExceeded),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeGenerationFailed,
		},
		{
			name:       "generation misconfigured",
			err:        fmt.Errorf("%w: %w", query.ErrGenerationFailed, ai.ErrGenerationUnavailable),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeMisconfigured,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	idx := newIndex(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newServer(t, &stubAnswerer{err: tt.err}, idx)
			resp := post(t, ts.URL+"/query", `{"query":"a question"}`)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			detail := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.NotContains(t, detail.Message, "boom")
		})
	}
}

func TestQuery_MalformedBody(t *testing.T) {
	answerer := &stubAnswerer{}
	ts := newServer(t, answerer, newIndex(t))

	resp := post(t, ts.URL+"/query", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidRequest, decodeError(t, resp).Code)
}

func TestQuery_BodyTooLarge(t *testing.T) {
	ts := newServer(t, &stubAnswerer{}, newIndex(t), WithMaxBodyBytes(16))

	resp := post(t, ts.URL+"/query", `{"query":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestQuery_PassesTopK(t *testing.T) {
	answerer := &stubAnswerer{resp: &core.QueryResponse{Answer: "ok", Sources: []core.Hit{}}}
	ts := newServer(t, answerer, newIndex(t))

	resp := post(t, ts.URL+"/query", `{"query":"question","top_k":7}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.QueryRequest{Query: "question", TopK: 7}, answerer.req)
}

func TestQuery_ReusesRequestID(t *testing.T) {
	answerer := &stubAnswerer{resp: &core.QueryResponse{Answer: "ok", Sources: []core.Hit{}}}
	ts := newServer(t, answerer, newIndex(t))

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/query", strings.NewReader(`{"query":"question"}`))
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get(RequestIDHeader))
}

func TestQuery_MethodNotAllowed(t *testing.T) {
	ts := newServer(t, &stubAnswerer{}, newIndex(t))

	resp, err := http.Get(ts.URL + "/query")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestIngest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantIDs    []string
	}{
		{"single event", `{"doc_id":"a","text":"hello"}`, http.StatusAccepted, []string{"a"}},
		{"array", ` [{"doc_id":"a","text":"x"},{"doc_id":"b","text":"y","ts":1700000000}]`, http.StatusAccepted, []string{"a", "b"}},
		{"missing doc_id", `{"text":"hello"}`, http.StatusBadRequest, nil},
		{"missing text in array", `[{"doc_id":"a","text":"x"},{"doc_id":"b"}]`, http.StatusBadRequest, nil},
		{"empty array", `[]`, http.StatusBadRequest, nil},
		{"empty body", ``, http.StatusBadRequest, nil},
		{"malformed", `{"doc_id":`, http.StatusBadRequest, nil},
		{"bad timestamp", `{"doc_id":"a","text":"x","ts":"yesterday"}`, http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			ts := newServer(t, &stubAnswerer{}, newIndex(t), WithPublisher(pub))

			resp := post(t, ts.URL+"/ingest", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var ids []string
			for _, ev := range pub.events {
				ids = append(ids, ev.DocID)
			}
			assert.Equal(t, tt.wantIDs, ids)

			if tt.wantStatus == http.StatusAccepted {
				var out IngestResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
				assert.Equal(t, len(tt.wantIDs), out.Accepted)
			}
		})
	}
}

func TestIngest_Disabled(t *testing.T) {
	ts := newServer(t, &stubAnswerer{}, newIndex(t))

	resp := post(t, ts.URL+"/ingest", `{"doc_id":"a","text":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIngest_ClosedFeed(t *testing.T) {
	ch := feed.NewChannel(4)
	ch.Close()
	ts := newServer(t, &stubAnswerer{}, newIndex(t), WithPublisher(ch))

	resp := post(t, ts.URL+"/ingest", `{"doc_id":"a","text":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, CodeUnavailable, decodeError(t, resp).Code)
}

func TestIngest_PartiallyAccepted(t *testing.T) {
	pub := &recordingPublisher{err: &feed.PublishError{Accepted: 1, Err: feed.ErrFeedClosed}}
	ts := newServer(t, &stubAnswerer{}, newIndex(t), WithPublisher(pub))

	resp := post(t, ts.URL+"/ingest", `[{"doc_id":"a","text":"x"},{"doc_id":"b","text":"y"}]`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, CodeUnavailable, body.Error.Code)
	assert.Equal(t, 1, body.Accepted)
}

func TestIngest_IntoChannel(t *testing.T) {
	ch := feed.NewChannel(4)
	ts := newServer(t, &stubAnswerer{}, newIndex(t), WithPublisher(ch))

	resp := post(t, ts.URL+"/ingest", `[{"doc_id":"a","text":"x"},{"doc_id":"b","text":"y"}]`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 2, ch.Len())
}

func TestDelete(t *testing.T) {
	idx := newIndex(t)
	vec := make([]float32, mock.DefaultDimensions)
	vec[0] = 1
	require.NoError(t, idx.Upsert(context.Background(), &core.DocumentRecord{
		DocID: "doc-1", Text: "x", Embedding: vec,
	}))
	ts := newServer(t, &stubAnswerer{}, idx)

	del := func(id string) int {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/documents/"+id, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, del("doc-1"))
	_, err := idx.Get(context.Background(), "doc-1")
	assert.ErrorIs(t, err, index.ErrNotFound)

	// Deleting again is not an error.
	assert.Equal(t, http.StatusNoContent, del("doc-1"))
}

func TestDelete_IndexUnavailable(t *testing.T) {
	idx := newIndex(t)
	ts := newServer(t, &stubAnswerer{}, idx)
	require.NoError(t, idx.Close())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/documents/doc-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	idx := newIndex(t)
	ts := newServer(t, &stubAnswerer{}, idx)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)

	require.NoError(t, idx.Close())
	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	answerer := &stubAnswerer{resp: &core.QueryResponse{Answer: "ok", Sources: []core.Hit{}}}
	ts := newServer(t, answerer, newIndex(t))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST /query", "200"))
	post(t, ts.URL+"/query", `{"query":"question"}`)
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST /query", "200"))
	assert.Equal(t, before+1, after)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s, err := New(&stubAnswerer{}, newIndex(t), WithTimeouts(time.Second, time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
