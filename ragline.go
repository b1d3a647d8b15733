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

// Package ragline wires the retrieval-augmented query service together:
// a vector index, the embedding and generation gateways, the ingestion
// pipeline that fills the index and the orchestrator that answers queries
// from it.
package ragline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/anthropic"
	"github.com/poiesic/ragline/ai/gemini"
	"github.com/poiesic/ragline/ai/offline"
	"github.com/poiesic/ragline/ai/openai"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/index"
	"github.com/poiesic/ragline/index/badger"
	"github.com/poiesic/ragline/index/qdrant"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/query"
)

// ErrConfigRequired is returned by NewService when cfg is nil.
var ErrConfigRequired = errors.New("config is required")

// Service owns the index and the AI provider shared by pipelines and
// orchestrators.
type Service struct {
	cfg      *config.Config
	index    index.Index
	provider ai.AIProvider
	closers  []func() error
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	provider ai.AIProvider
	index    index.Index
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the config.
// The caller keeps ownership; Close does not close it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithIndex uses idx instead of opening one from the config. The caller
// keeps ownership; Close does not close it.
func WithIndex(idx index.Index) Option {
	return func(o *serviceOptions) {
		o.index = idx
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService validates cfg, then builds the provider and opens the index.
func NewService(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	s := &Service{
		cfg:    cfg,
		logger: options.logger,
	}

	s.provider = options.provider
	if s.provider == nil {
		provider, err := NewProvider(ctx, cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("failed to create AI provider: %w", err)
		}
		s.provider = provider
		s.closers = append(s.closers, provider.Close)
	}

	s.index = options.index
	if s.index == nil {
		idx, err := OpenIndex(cfg.Index, cfg.AI.Dimensions, s.logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		s.index = idx
		s.closers = append(s.closers, idx.Close)
	}

	s.logger.Info("service ready",
		"provider", cfg.AI.Provider,
		"index", cfg.Index.Backend,
		"dimensions", cfg.AI.Dimensions)
	return s, nil
}

// NewProvider builds the AI provider cfg selects. When cfg.Generator is
// "anthropic", generation goes to Claude and embedding stays with the
// provider.
func NewProvider(ctx context.Context, cfg config.AIConfig) (ai.AIProvider, error) {
	var (
		provider ai.AIProvider
		err      error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		provider, err = openai.NewProvider(openAIConfig(cfg))
	case config.ProviderGemini:
		provider, err = gemini.NewProvider(ctx, gemini.Config{
			Backend:         cfg.GeminiBackend,
			APIKey:          cfg.APIKey,
			Project:         cfg.GeminiProject,
			Location:        cfg.GeminiLocation,
			BaseURL:         cfg.Host,
			EmbeddingModel:  cfg.EmbeddingModel,
			GenerationModel: cfg.GenerationModel,
			Dimensions:      cfg.Dimensions,
		})
	case config.ProviderOffline:
		provider = offline.NewProvider(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Generator == config.GeneratorAnthropic {
		generator := anthropic.NewGenerator(anthropic.Config{
			APIKey:     cfg.AnthropicAPIKey,
			Model:      cfg.AnthropicModel,
			MaxRetries: -1,
		})
		return ai.NewCompositeProvider(provider.Embedder(), generator, provider), nil
	}
	return provider, nil
}

func openAIConfig(cfg config.AIConfig) *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithDimensions(cfg.Dimensions),
		ai.WithTemperature(cfg.Temperature),
		ai.WithMaxTokens(cfg.MaxTokens),
		ai.WithAPIKey(cfg.APIKey),
	}
	if cfg.Host != "" {
		opts = append(opts, ai.WithHost(cfg.Host))
	}
	if cfg.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(cfg.EmbeddingHost))
	}
	if cfg.GenerationHost != "" {
		opts = append(opts, ai.WithGenerationHost(cfg.GenerationHost))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, ai.WithEmbeddingModel(cfg.EmbeddingModel))
	}
	if cfg.GenerationModel != "" {
		opts = append(opts, ai.WithGenerationModel(cfg.GenerationModel))
	}
	return ai.NewConfig(opts...)
}

// OpenIndex opens the index backend cfg selects.
func OpenIndex(cfg config.IndexConfig, dims int, logger *slog.Logger) (index.Index, error) {
	switch cfg.Backend {
	case config.IndexBadger:
		opts := []badger.Option{badger.WithDimensions(dims), badger.WithLogger(logger)}
		var (
			idx *badger.Index
			err error
		)
		if cfg.InMemory {
			idx, err = badger.NewMemoryIndex(opts...)
		} else {
			idx, err = badger.Open(cfg.Path, opts...)
		}
		if err != nil {
			return nil, err
		}
		return idx, nil
	case config.IndexQdrant:
		idx, err := qdrant.New(cfg.Endpoint,
			qdrant.WithCollection(cfg.Collection),
			qdrant.WithDimensions(dims),
			qdrant.WithAPIKey(cfg.APIKey),
			qdrant.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Index returns the vector index.
func (s *Service) Index() index.Index {
	return s.index
}

// Provider returns the AI provider.
func (s *Service) Provider() ai.AIProvider {
	return s.provider
}

// NewIngestionPipeline creates a pipeline tuned by the ingest config.
// opts are applied after the config and take precedence.
func (s *Service) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	c := s.cfg.Ingest
	base := []ingestion.Option{
		ingestion.WithBatchSize(c.BatchSize),
		ingestion.WithMaxWait(c.MaxWait.Duration),
		ingestion.WithPoolSize(c.Concurrency),
		ingestion.WithWriteRetry(c.WriteAttempts, c.WriteBackoff.Duration),
		ingestion.WithDeduplication(c.Deduplicate),
		ingestion.WithLogger(s.logger),
	}
	return ingestion.NewPipeline(s.index, s.provider, append(base, opts...)...)
}

// NewOrchestrator creates a query orchestrator tuned by the query config.
// opts are applied after the config and take precedence.
func (s *Service) NewOrchestrator(opts ...query.Option) (*query.Orchestrator, error) {
	base := []query.Option{
		query.WithTimeout(s.cfg.Query.Timeout.Duration),
		query.WithContextCap(s.cfg.Query.ContextCap),
		query.WithDefaultTopK(s.cfg.Query.DefaultTopK),
		query.WithGenerateOptions(ai.GenerateOptions{
			MaxTokens:   s.cfg.AI.MaxTokens,
			Temperature: s.cfg.AI.Temperature,
		}),
		query.WithLogger(s.logger),
	}
	return query.NewOrchestrator(s.index, s.provider, append(base, opts...)...)
}

// Delete removes documents from the index. Missing IDs are ignored.
func (s *Service) Delete(ctx context.Context, docIDs ...string) error {
	return s.index.Delete(ctx, docIDs...)
}

// Health reports whether the index can serve requests.
func (s *Service) Health(ctx context.Context) error {
	return s.index.Health(ctx)
}

// Close releases what NewService created, newest first.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("error closing service component", "err", err)
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
