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

// Package config loads service configuration.
//
// Values are layered with priority CLI flags > environment > config file >
// defaults. Load applies the first three layers; the CLI applies flags on
// top and then calls Validate.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Provider names.
const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderOffline = "offline"

	GeneratorAnthropic = "anthropic"
)

// Index backend names.
const (
	IndexBadger = "badger"
	IndexQdrant = "qdrant"
)

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete service configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	AI     AIConfig     `toml:"ai"`
	Index  IndexConfig  `toml:"index"`
	Ingest IngestConfig `toml:"ingest"`
	Query  QueryConfig  `toml:"query"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
}

// AIConfig selects and configures the embedding and generation gateways.
type AIConfig struct {
	// Provider is openai, gemini or offline.
	Provider       string `toml:"provider"`
	Host           string `toml:"host"`
	EmbeddingHost  string `toml:"embedding_host"`
	GenerationHost string `toml:"generation_host"`
	// Empty model names select the provider's default.
	EmbeddingModel  string  `toml:"embedding_model"`
	GenerationModel string  `toml:"generation_model"`
	APIKey          string  `toml:"api_key"`
	Dimensions      int     `toml:"dimensions"`
	Temperature     float64 `toml:"temperature"`
	MaxTokens       int     `toml:"max_tokens"`

	// Generator overrides the provider for generation only. Empty or
	// "anthropic".
	Generator       string `toml:"generator"`
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	AnthropicModel  string `toml:"anthropic_model"`

	GeminiBackend  string `toml:"gemini_backend"`
	GeminiProject  string `toml:"gemini_project"`
	GeminiLocation string `toml:"gemini_location"`
}

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	InMemory   bool   `toml:"in_memory"`
	Endpoint   string `toml:"endpoint"`
	Collection string `toml:"collection"`
	APIKey     string `toml:"api_key"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	BatchSize     int      `toml:"batch_size"`
	MaxWait       Duration `toml:"max_wait"`
	Concurrency   int      `toml:"concurrency"`
	WriteAttempts int      `toml:"write_attempts"`
	WriteBackoff  Duration `toml:"write_backoff"`
	Deduplicate   bool     `toml:"deduplicate"`
	FeedBuffer    int      `toml:"feed_buffer"`
}

// QueryConfig tunes the query orchestrator.
type QueryConfig struct {
	Timeout     Duration `toml:"timeout"`
	ContextCap  int      `toml:"context_cap"`
	DefaultTopK int      `toml:"default_top_k"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			MaxBodyBytes: 4 << 20,
		},
		AI: AIConfig{
			Provider:       ProviderOpenAI,
			Host:           "http://localhost:11434/v1",
			Dimensions:     768,
			Temperature:    0.2,
			MaxTokens:      512,
			GeminiBackend:  "gemini",
			GeminiLocation: "us-central1",
		},
		Index: IndexConfig{
			Backend:    IndexBadger,
			Path:       "ragline.db",
			Endpoint:   "http://localhost:6333",
			Collection: "ragline-documents",
		},
		Ingest: IngestConfig{
			BatchSize:     8,
			MaxWait:       Duration{2 * time.Second},
			Concurrency:   4,
			WriteAttempts: 5,
			WriteBackoff:  Duration{200 * time.Millisecond},
			FeedBuffer:    64,
		},
		Query: QueryConfig{
			Timeout:     Duration{10 * time.Second},
			ContextCap:  5000,
			DefaultTopK: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a configuration from defaults, the TOML file at path (if
// path is not empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := cfg.Decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges TOML data into cfg. Keys not present keep their values.
// Unknown keys are rejected.
func (c *Config) Decode(data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(c)
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate normalizes values and reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	c.AI.Generator = strings.ToLower(strings.TrimSpace(c.AI.Generator))
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Server.MaxBodyBytes > 0, "server.max_body_bytes must be positive")

	check(slices.Contains([]string{ProviderOpenAI, ProviderGemini, ProviderOffline}, c.AI.Provider),
		"ai.provider must be one of openai, gemini, offline (got %q)", c.AI.Provider)
	check(c.AI.Generator == "" || c.AI.Generator == GeneratorAnthropic,
		"ai.generator must be empty or anthropic (got %q)", c.AI.Generator)
	check(c.AI.Dimensions > 0, "ai.dimensions must be positive")
	check(c.AI.Temperature >= 0 && c.AI.Temperature <= 2, "ai.temperature must be between 0 and 2")
	check(c.AI.MaxTokens > 0, "ai.max_tokens must be positive")
	if c.AI.Provider == ProviderGemini && c.AI.GeminiBackend == "vertex" {
		check(c.AI.GeminiProject != "", "ai.gemini_project is required for the vertex backend")
	}

	check(c.Index.Backend == IndexBadger || c.Index.Backend == IndexQdrant,
		"index.backend must be badger or qdrant (got %q)", c.Index.Backend)
	if c.Index.Backend == IndexBadger {
		check(c.Index.InMemory || c.Index.Path != "", "index.path is required unless index.in_memory is set")
	}
	if c.Index.Backend == IndexQdrant {
		check(c.Index.Endpoint != "", "index.endpoint is required for qdrant")
	}

	check(c.Ingest.BatchSize > 0, "ingest.batch_size must be positive")
	check(c.Ingest.MaxWait.Duration >= 0, "ingest.max_wait must not be negative")
	check(c.Ingest.Concurrency > 0, "ingest.concurrency must be positive")
	check(c.Ingest.WriteAttempts > 0, "ingest.write_attempts must be positive")
	check(c.Ingest.FeedBuffer > 0, "ingest.feed_buffer must be positive")

	check(c.Query.Timeout.Duration > 0, "query.timeout must be positive")
	check(c.Query.ContextCap > 0, "query.context_cap must be positive")
	check(c.Query.DefaultTopK > 0, "query.default_top_k must be positive")

	check(slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level),
		"log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)

	return errors.Join(errs...)
}
