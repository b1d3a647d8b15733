package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// envReader applies variables and collects parse errors.
type envReader struct {
	lookup LookupFunc
	errs   []error
}

// first returns the value of the first variable that is set and non-empty.
func (r *envReader) first(keys ...string) (string, string, bool) {
	for _, key := range keys {
		if v, ok := r.lookup(key); ok && v != "" {
			return key, v, true
		}
	}
	return "", "", false
}

func (r *envReader) str(dst *string, keys ...string) {
	if _, v, ok := r.first(keys...); ok {
		*dst = v
	}
}

func (r *envReader) int(dst *int, keys ...string) {
	if key, v, ok := r.first(keys...); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) int64(dst *int64, keys ...string) {
	if key, v, ok := r.first(keys...); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) float(dst *float64, keys ...string) {
	if key, v, ok := r.first(keys...); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (r *envReader) bool(dst *bool, keys ...string) {
	if key, v, ok := r.first(keys...); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *envReader) duration(dst *Duration, keys ...string) {
	if key, v, ok := r.first(keys...); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		dst.Duration = d
	}
}

// ApplyEnv overrides values from environment variables. RAGLINE_* names
// take precedence; a few unprefixed names are honored as fallbacks.
// Malformed values are reported, not ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	r := &envReader{lookup: lookup}

	r.str(&c.Server.Addr, "RAGLINE_SERVER_ADDR")
	r.duration(&c.Server.ReadTimeout, "RAGLINE_SERVER_READ_TIMEOUT")
	r.duration(&c.Server.WriteTimeout, "RAGLINE_SERVER_WRITE_TIMEOUT")
	r.int64(&c.Server.MaxBodyBytes, "RAGLINE_SERVER_MAX_BODY_BYTES")

	r.str(&c.AI.Provider, "RAGLINE_AI_PROVIDER")
	r.str(&c.AI.Host, "RAGLINE_AI_HOST")
	r.str(&c.AI.EmbeddingHost, "RAGLINE_EMBEDDING_HOST")
	r.str(&c.AI.GenerationHost, "RAGLINE_GENERATION_HOST")
	r.str(&c.AI.EmbeddingModel, "RAGLINE_EMBEDDING_MODEL", "EMBEDDING_MODEL")
	r.str(&c.AI.GenerationModel, "RAGLINE_GENERATION_MODEL", "LLM_MODEL")
	r.str(&c.AI.APIKey, "RAGLINE_AI_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	r.int(&c.AI.Dimensions, "RAGLINE_EMBEDDING_DIMENSIONS")
	r.float(&c.AI.Temperature, "RAGLINE_TEMPERATURE")
	r.int(&c.AI.MaxTokens, "RAGLINE_MAX_TOKENS")
	r.str(&c.AI.Generator, "RAGLINE_GENERATOR")
	r.str(&c.AI.AnthropicAPIKey, "RAGLINE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	r.str(&c.AI.AnthropicModel, "RAGLINE_ANTHROPIC_MODEL")
	r.str(&c.AI.GeminiBackend, "RAGLINE_GEMINI_BACKEND")
	r.str(&c.AI.GeminiProject, "RAGLINE_GEMINI_PROJECT", "PROJECT_ID")
	r.str(&c.AI.GeminiLocation, "RAGLINE_GEMINI_LOCATION", "VERTEX_LOCATION")

	r.str(&c.Index.Backend, "RAGLINE_INDEX_BACKEND")
	r.str(&c.Index.Path, "RAGLINE_INDEX_PATH")
	r.bool(&c.Index.InMemory, "RAGLINE_INDEX_IN_MEMORY")
	r.str(&c.Index.Endpoint, "RAGLINE_INDEX_ENDPOINT")
	r.str(&c.Index.Collection, "RAGLINE_INDEX_COLLECTION")
	r.str(&c.Index.APIKey, "RAGLINE_INDEX_API_KEY")

	r.int(&c.Ingest.BatchSize, "RAGLINE_BATCH_SIZE")
	r.duration(&c.Ingest.MaxWait, "RAGLINE_BATCH_MAX_WAIT")
	r.int(&c.Ingest.Concurrency, "RAGLINE_EMBED_CONCURRENCY")
	r.int(&c.Ingest.WriteAttempts, "RAGLINE_WRITE_ATTEMPTS")
	r.duration(&c.Ingest.WriteBackoff, "RAGLINE_WRITE_BACKOFF")
	r.bool(&c.Ingest.Deduplicate, "RAGLINE_DEDUPLICATE")
	r.int(&c.Ingest.FeedBuffer, "RAGLINE_FEED_BUFFER")

	r.duration(&c.Query.Timeout, "RAGLINE_QUERY_TIMEOUT")
	r.int(&c.Query.ContextCap, "RAGLINE_CONTEXT_CAP")
	r.int(&c.Query.DefaultTopK, "RAGLINE_TOP_K")

	r.str(&c.Log.Level, "RAGLINE_LOG_LEVEL")

	return errors.Join(r.errs...)
}
