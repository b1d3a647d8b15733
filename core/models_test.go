package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "cats purr"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h1 := HashContent(tt.content)
			h2 := HashContent(tt.content)
			if h1 != h2 {
				t.Errorf("HashContent() produced different hashes for same content: %d vs %d", h1, h2)
			}
		})
	}
}

func TestHashContent_Different(t *testing.T) {
	if HashContent("cats purr") == HashContent("dogs bark") {
		t.Error("HashContent() produced identical hashes for different content")
	}
}

func TestIngestEvent_UnmarshalJSON(t *testing.T) {
	t.Run("epoch seconds", func(t *testing.T) {
		var ev IngestEvent
		err := json.Unmarshal([]byte(`{"doc_id":"a","text":"cats purr","ts":1700000000.5}`), &ev)
		require.NoError(t, err)
		assert.Equal(t, "a", ev.DocID)
		assert.Equal(t, "cats purr", ev.Text)
		assert.Equal(t, int64(1700000000), ev.Timestamp.Unix())
		assert.Equal(t, 500*time.Millisecond, time.Duration(ev.Timestamp.Nanosecond()))
	})

	t.Run("RFC 3339 string", func(t *testing.T) {
		var ev IngestEvent
		err := json.Unmarshal([]byte(`{"doc_id":"a","text":"x","ts":"2024-05-01T10:00:00Z"}`), &ev)
		require.NoError(t, err)
		assert.True(t, ev.Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("missing ts is zero", func(t *testing.T) {
		var ev IngestEvent
		err := json.Unmarshal([]byte(`{"doc_id":"a","text":"x"}`), &ev)
		require.NoError(t, err)
		assert.True(t, ev.Timestamp.IsZero())
	})

	t.Run("metadata carried through", func(t *testing.T) {
		var ev IngestEvent
		err := json.Unmarshal([]byte(`{"doc_id":"a","text":"x","metadata":{"source":"wiki","rank":2}}`), &ev)
		require.NoError(t, err)
		assert.Equal(t, "wiki", ev.Metadata["source"])
		assert.Equal(t, float64(2), ev.Metadata["rank"])
	})

	t.Run("malformed ts", func(t *testing.T) {
		var ev IngestEvent
		err := json.Unmarshal([]byte(`{"doc_id":"a","text":"x","ts":"yesterday"}`), &ev)
		require.Error(t, err)
	})
}

func TestIngestEvent_MarshalJSON(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	data, err := json.Marshal(IngestEvent{DocID: "a", Text: "x", Timestamp: ts})
	require.NoError(t, err)
	assert.JSONEq(t, `{"doc_id":"a","text":"x","ts":"2024-05-01T10:00:00Z"}`, string(data))

	var back IngestEvent
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Timestamp.Equal(ts))
}

func TestHit_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Hit{DocID: "a", Text: "x", Score: 0.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"doc_id":"a","text":"x","metadata":{},"score":0.5}`, string(data))

	data, err = json.Marshal([]Hit{{DocID: "b", Text: "y", Metadata: Metadata{"source": "wiki"}, Score: 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"doc_id":"b","text":"y","metadata":{"source":"wiki"},"score":1}]`, string(data))
}
