package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index"
	"github.com/poiesic/ragline/index/badger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingIndex counts searches and can fail them.
type countingIndex struct {
	index.Index
	searches atomic.Int32
	err      error
}

func (c *countingIndex) Search(ctx context.Context, vector []float32, topK int) ([]core.Hit, error) {
	c.searches.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Index.Search(ctx, vector, topK)
}

type fixture struct {
	index     *countingIndex
	store     *badger.Index
	embedder  *mock.MockEmbedder
	generator *mock.MockGenerator
	orch      *Orchestrator
}

func setupTest(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := badger.NewMemoryIndex(badger.WithDimensions(mock.DefaultDimensions))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		index:     &countingIndex{Index: store},
		store:     store,
		embedder:  mock.NewMockEmbedder(),
		generator: mock.NewMockGenerator(),
	}
	provider := mock.NewMockProviderWithServices(f.embedder, f.generator)
	f.orch, err = NewOrchestrator(f.index, provider, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) add(t *testing.T, docs map[string]string) {
	t.Helper()
	for id, text := range docs {
		vec, err := f.embedder.EmbedText(context.Background(), text)
		require.NoError(t, err)
		require.NoError(t, f.store.Upsert(context.Background(), &core.DocumentRecord{
			DocID:     id,
			Text:      text,
			Embedding: vec,
			Timestamp: time.Now().UTC(),
		}))
	}
	f.embedder.Reset()
}

func TestNewOrchestrator_Validation(t *testing.T) {
	store, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	defer store.Close()
	provider := mock.NewMockProvider()

	_, err = NewOrchestrator(nil, provider)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewOrchestrator(store, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	for _, opt := range []Option{
		WithTimeout(0),
		WithContextCap(0),
		WithDefaultTopK(0),
		WithGenerateOptions(ai.GenerateOptions{MaxTokens: 0}),
	} {
		_, err = NewOrchestrator(store, provider, opt)
		assert.Error(t, err)
	}

	o, err := NewOrchestrator(store, provider)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, o.timeout)
	assert.Equal(t, DefaultContextCap, o.contextCap)
	assert.Equal(t, DefaultTopK, o.defaultTopK)
	assert.Equal(t, DefaultGenerateOptions, o.genOpts)
}

func TestAnswer_CatsAndDogs(t *testing.T) {
	f := setupTest(t)
	f.add(t, map[string]string{"a": "cats purr", "b": "dogs bark"})

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "what sound do cats make", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "a", resp.Sources[0].DocID)
	assert.Equal(t, "cats purr", resp.Sources[0].Text)
	assert.Equal(t, mock.DefaultAnswer, resp.Answer)

	assert.Equal(t,
		"Context:\ncats purr\n\nQuestion: what sound do cats make\nAnswer concisely:",
		f.generator.LastPrompt())
	assert.Equal(t, DefaultGenerateOptions, f.generator.LastOptions())
}

func TestAnswer_ShortQueryMakesNoCalls(t *testing.T) {
	f := setupTest(t)
	for _, q := range []string{"", "a", "ab", "日本"} {
		resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: q})
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, core.ErrInvalidRequest)
		assert.ErrorIs(t, err, core.ErrQueryTooShort)
	}

	_, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "valid query", TopK: -1})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	assert.Equal(t, 0, f.embedder.CallCount())
	assert.Equal(t, 0, f.generator.CallCount())
	assert.Equal(t, int32(0), f.index.searches.Load())
}

func TestAnswer_EmptyIndex(t *testing.T) {
	f := setupTest(t)

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "anything there?", TopK: 4})
	require.NoError(t, err)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, mock.DefaultAnswer, resp.Answer)
	assert.Equal(t, "Context:\n\n\nQuestion: anything there?\nAnswer concisely:", f.generator.LastPrompt())
}

func TestAnswer_TopK(t *testing.T) {
	f := setupTest(t)
	docs := map[string]string{}
	for i := range 6 {
		docs[fmt.Sprintf("doc-%d", i)] = fmt.Sprintf("shared topic number %d", i)
	}
	f.add(t, docs)

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "shared topic"})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, DefaultTopK, "unset top_k uses the default")

	resp, err = f.orch.Answer(t.Context(), core.QueryRequest{Query: "shared topic", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2)

	resp, err = f.orch.Answer(t.Context(), core.QueryRequest{Query: "shared topic", TopK: 50})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 6, "never more sources than indexed records")

	for i := 1; i < len(resp.Sources); i++ {
		assert.GreaterOrEqual(t, resp.Sources[i-1].Score, resp.Sources[i].Score)
	}
}

func TestAnswer_ContextCap(t *testing.T) {
	f := setupTest(t, WithContextCap(50))
	f.add(t, map[string]string{
		"a": "alpha " + strings.Repeat("x", 30),
		"b": "alpha " + strings.Repeat("y", 30),
	})

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "alpha", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Sources, 2, "sources list every hit even when context drops one")

	prompt := f.generator.LastPrompt()
	contextText := strings.TrimSuffix(strings.TrimPrefix(prompt, "Context:\n"), "\n\nQuestion: alpha\nAnswer concisely:")
	assert.LessOrEqual(t, len([]rune(contextText)), 50)
	assert.Equal(t, resp.Sources[0].Text, contextText)
}

func TestAnswer_EmbeddingFailure(t *testing.T) {
	f := setupTest(t)
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: connection refused", ai.ErrEmbeddingCall)
	}

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "what sound do cats make"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, ErrQueryEmbedding)
	assert.ErrorIs(t, err, ai.ErrEmbeddingCall)
	assert.Equal(t, int32(0), f.index.searches.Load())
	assert.Equal(t, 0, f.generator.CallCount())
}

func TestAnswer_MalformedQueryEmbedding(t *testing.T) {
	f := setupTest(t)
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	}

	_, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "what sound do cats make"})
	assert.ErrorIs(t, err, ErrQueryEmbedding)
	assert.ErrorIs(t, err, core.ErrInvalidEmbedding)
}

func TestAnswer_IndexFailure(t *testing.T) {
	f := setupTest(t)
	f.index.err = fmt.Errorf("%w: disk offline", index.ErrIndexUnavailable)

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "what sound do cats make"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, index.ErrIndexUnavailable)
	assert.NotErrorIs(t, err, ErrQueryEmbedding)
	assert.Equal(t, 0, f.generator.CallCount(), "no answer without context")
}

func TestAnswer_GenerationFailure(t *testing.T) {
	f := setupTest(t)
	f.generator.GenerateFunc = func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
		return "partial", fmt.Errorf("%w: upstream 503", ai.ErrGenerationCall)
	}

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "what sound do cats make"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, ai.ErrGenerationCall)
}

func TestAnswer_TimeoutDuringGeneration(t *testing.T) {
	f := setupTest(t, WithTimeout(30*time.Millisecond))
	f.generator.GenerateFunc = func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "slow question"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnswer_LateAnswerIsDiscarded(t *testing.T) {
	f := setupTest(t, WithTimeout(20*time.Millisecond))
	f.generator.GenerateFunc = func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
		time.Sleep(60 * time.Millisecond)
		return "too late", nil
	}

	resp, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "slow question"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestAnswer_TimeoutDuringEmbedding(t *testing.T) {
	f := setupTest(t, WithTimeout(20*time.Millisecond))
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "slow question"})
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnswer_CustomGenerateOptions(t *testing.T) {
	opts := ai.GenerateOptions{MaxTokens: 64, Temperature: 0.7}
	f := setupTest(t, WithGenerateOptions(opts))

	_, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "question"})
	require.NoError(t, err)
	assert.Equal(t, opts, f.generator.LastOptions())
}

func TestAnswer_Metrics(t *testing.T) {
	f := setupTest(t)
	ok := testutil.ToFloat64(requestsTotal.WithLabelValues("ok"))
	invalid := testutil.ToFloat64(requestsTotal.WithLabelValues("invalid"))

	_, err := f.orch.Answer(t.Context(), core.QueryRequest{Query: "question"})
	require.NoError(t, err)
	_, err = f.orch.Answer(t.Context(), core.QueryRequest{Query: "q"})
	require.Error(t, err)

	assert.Equal(t, ok+1, testutil.ToFloat64(requestsTotal.WithLabelValues("ok")))
	assert.Equal(t, invalid+1, testutil.ToFloat64(requestsTotal.WithLabelValues("invalid")))
}

// testMonitor records which hooks fired.
type testMonitor struct {
	calls    []string
	hits     int
	finalErr error
}

func (m *testMonitor) Start(string, int)                     { m.calls = append(m.calls, "start") }
func (m *testMonitor) AfterEmbedding(int, time.Duration)     { m.calls = append(m.calls, "embed") }
func (m *testMonitor) AfterContextAssembly(string, int)      { m.calls = append(m.calls, "context") }
func (m *testMonitor) AfterGeneration(string, time.Duration) { m.calls = append(m.calls, "generate") }
func (m *testMonitor) AfterRetrieval(hits []core.Hit, _ time.Duration) {
	m.calls = append(m.calls, "retrieve")
	m.hits = len(hits)
}
func (m *testMonitor) Finish(_ *core.QueryResponse, err error) {
	m.calls = append(m.calls, "finish")
	m.finalErr = err
}

func TestAnswerWithMonitor(t *testing.T) {
	f := setupTest(t)
	f.add(t, map[string]string{"a": "cats purr"})

	monitor := &testMonitor{}
	_, err := f.orch.AnswerWithMonitor(t.Context(), core.QueryRequest{Query: "cats?"}, monitor)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "embed", "retrieve", "context", "generate", "finish"}, monitor.calls)
	assert.Equal(t, 1, monitor.hits)

	failing := &testMonitor{}
	f.generator.GenerateFunc = func(context.Context, string, ai.GenerateOptions) (string, error) {
		return "", errors.New("boom")
	}
	_, err = f.orch.AnswerWithMonitor(t.Context(), core.QueryRequest{Query: "cats?"}, failing)
	require.Error(t, err)
	assert.ErrorIs(t, failing.finalErr, ErrGenerationFailed)
}

func TestExplainMonitor(t *testing.T) {
	f := setupTest(t)
	f.add(t, map[string]string{"a": "cats purr"})

	var buf bytes.Buffer
	_, err := f.orch.AnswerWithMonitor(t.Context(), core.QueryRequest{Query: "cats?", TopK: 1}, NewExplainMonitor(&buf))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `query: "cats?" (top_k=1)`)
	assert.Contains(t, out, "retrieved 1 hits")
	assert.Contains(t, out, "1. a (score")
	assert.Contains(t, out, "done in")
}
