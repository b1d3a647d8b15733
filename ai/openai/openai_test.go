package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/ragline/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI serves the two endpoints the provider uses.
func fakeOpenAI(t *testing.T, failEmbeddings, failChat bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if failEmbeddings {
			http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(i), 0.5, 0.25}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if failChat {
			http.Error(w, `{"error":{"message":"boom"}}`, http.StatusBadRequest)
			return
		}
		var req struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-chat", req.Model)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Cats purr."},
				"finish_reason": "stop",
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(host string) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(host),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithGenerationModel("test-chat"),
		ai.WithDimensions(3),
	)
}

func TestNewProvider(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := ai.NewConfig(ai.WithEmbeddingModel(""))
		_, err := NewProvider(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel is required")
	})

	t.Run("valid config", func(t *testing.T) {
		p, err := NewProvider(testConfig("http://localhost:1"))
		require.NoError(t, err)
		defer p.Close()
		assert.NotNil(t, p.Embedder())
		assert.NotNil(t, p.Generator())
		assert.Equal(t, 3, p.Embedder().Dimensions())
	})
}

func TestEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("single text", func(t *testing.T) {
		srv := fakeOpenAI(t, false, false)
		e, err := NewEmbedder(testConfig(srv.URL))
		require.NoError(t, err)

		vec, err := e.EmbedText(ctx, "cats purr")
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0.5, 0.25}, vec)
	})

	t.Run("batch keeps order", func(t *testing.T) {
		srv := fakeOpenAI(t, false, false)
		e, err := NewEmbedder(testConfig(srv.URL))
		require.NoError(t, err)

		vecs, err := e.EmbedTexts(ctx, []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, vecs, 3)
		assert.Equal(t, float32(2), vecs[2][0])
	})

	t.Run("call failure", func(t *testing.T) {
		srv := fakeOpenAI(t, true, false)
		e, err := NewEmbedder(testConfig(srv.URL))
		require.NoError(t, err)

		_, err = e.EmbedText(ctx, "cats purr")
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrEmbeddingCall)
	})
}

func TestGenerator(t *testing.T) {
	ctx := context.Background()

	t.Run("completion", func(t *testing.T) {
		srv := fakeOpenAI(t, false, false)
		g, err := NewGenerator(testConfig(srv.URL))
		require.NoError(t, err)

		answer, err := g.Generate(ctx, "Context:\ncats purr\n\nQuestion: what sound do cats make\nAnswer concisely:",
			ai.GenerateOptions{MaxTokens: 512, Temperature: 0.2})
		require.NoError(t, err)
		assert.Equal(t, "Cats purr.", answer)
	})

	t.Run("call failure", func(t *testing.T) {
		srv := fakeOpenAI(t, false, true)
		g, err := NewGenerator(testConfig(srv.URL))
		require.NoError(t, err)

		_, err = g.Generate(ctx, "prompt", ai.GenerateOptions{MaxTokens: 16, Temperature: 0.2})
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrGenerationCall)
	})
}
