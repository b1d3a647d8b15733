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

package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/index"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultTimeout bounds embedding, retrieval and generation together.
	DefaultTimeout = 10 * time.Second

	// DefaultContextCap is the maximum context length in characters.
	DefaultContextCap = 5000

	// DefaultTopK is used when a request leaves top_k unset.
	DefaultTopK = 4
)

// DefaultGenerateOptions are the generation parameters used unless
// overridden with WithGenerateOptions.
var DefaultGenerateOptions = ai.GenerateOptions{MaxTokens: 512, Temperature: 0.2}

// Orchestrator answers questions against a vector index. It is safe for
// concurrent use and keeps no state between requests.
type Orchestrator struct {
	index       index.Index
	embedder    ai.Embedder
	generator   ai.Generator
	timeout     time.Duration
	contextCap  int
	defaultTopK int
	genOpts     ai.GenerateOptions
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		o.timeout = d
		return nil
	}
}

// WithContextCap sets the maximum assembled context length in characters.
func WithContextCap(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("context cap must be positive, got %d", n)
		}
		o.contextCap = n
		return nil
	}
}

// WithDefaultTopK sets the number of hits retrieved when a request leaves
// top_k unset.
func WithDefaultTopK(k int) Option {
	return func(o *Orchestrator) error {
		if k < 1 {
			return fmt.Errorf("default top_k must be positive, got %d", k)
		}
		o.defaultTopK = k
		return nil
	}
}

// WithGenerateOptions sets the generation parameters.
func WithGenerateOptions(opts ai.GenerateOptions) Option {
	return func(o *Orchestrator) error {
		if opts.MaxTokens < 1 {
			return fmt.Errorf("max tokens must be positive, got %d", opts.MaxTokens)
		}
		o.genOpts = opts
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an orchestrator reading from idx and using the
// provider's embedder and generator.
func NewOrchestrator(idx index.Index, provider ai.AIProvider, opts ...Option) (*Orchestrator, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil || provider.Embedder() == nil || provider.Generator() == nil {
		return nil, ErrAIProviderRequired
	}

	o := &Orchestrator{
		index:       idx,
		embedder:    provider.Embedder(),
		generator:   provider.Generator(),
		timeout:     DefaultTimeout,
		contextCap:  DefaultContextCap,
		defaultTopK: DefaultTopK,
		genOpts:     DefaultGenerateOptions,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "query")
	return o, nil
}

// Answer answers a question.
func (o *Orchestrator) Answer(ctx context.Context, req core.QueryRequest) (*core.QueryResponse, error) {
	return o.AnswerWithMonitor(ctx, req, nil)
}

// AnswerWithMonitor answers a question, reporting each step to monitor.
//
// Errors wrap core.ErrInvalidRequest for bad input, ErrRetrievalFailed when
// the query could not be embedded (also ErrQueryEmbedding) or the index could
// not be searched, and ErrGenerationFailed when the generator failed. The
// underlying cause is wrapped as well.
func (o *Orchestrator) AnswerWithMonitor(ctx context.Context, req core.QueryRequest, monitor QueryMonitor) (resp *core.QueryResponse, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	defer func() {
		monitor.Finish(resp, err)
		requestsTotal.WithLabelValues(outcome(err)).Inc()
	}()

	if err := core.ValidateQueryRequest(&req); err != nil {
		return nil, err
	}
	topK := req.TopK
	if topK == 0 {
		topK = o.defaultTopK
	}
	monitor.Start(req.Query, topK)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "query.answer", trace.WithAttributes(
		attribute.Int("ragline.query.top_k", topK),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome(err))
		}
	}()

	// 1. Embed the question
	start := time.Now()
	vector, err := o.embedder.EmbedText(ctx, req.Query)
	if err == nil {
		err = core.ValidateEmbedding(vector, o.embedder.Dimensions())
	}
	if err != nil {
		o.logger.Error("error embedding query", "err", err)
		return nil, fmt.Errorf("%w: %w: %w", ErrRetrievalFailed, ErrQueryEmbedding, err)
	}
	elapsed := time.Since(start)
	requestDuration.WithLabelValues("embed").Observe(elapsed.Seconds())
	monitor.AfterEmbedding(len(vector), elapsed)

	// 2. Retrieve
	start = time.Now()
	hits, err := o.index.Search(ctx, vector, topK)
	if err != nil {
		o.logger.Error("error searching index", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	if hits == nil {
		hits = []core.Hit{}
	}
	elapsed = time.Since(start)
	requestDuration.WithLabelValues("retrieve").Observe(elapsed.Seconds())
	monitor.AfterRetrieval(hits, elapsed)
	span.SetAttributes(attribute.Int("ragline.query.hits", len(hits)))

	// 3. Assemble context and prompt
	contextText, used := AssembleContext(hits, o.contextCap)
	monitor.AfterContextAssembly(contextText, used)
	prompt := BuildPrompt(contextText, req.Query)

	// 4. Generate
	start = time.Now()
	answer, err := o.generator.Generate(ctx, prompt, o.genOpts)
	if err == nil {
		// A generator that ignores ctx must not produce a late answer.
		err = ctx.Err()
	}
	if err != nil {
		o.logger.Error("error generating answer", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	elapsed = time.Since(start)
	requestDuration.WithLabelValues("generate").Observe(elapsed.Seconds())
	monitor.AfterGeneration(answer, elapsed)

	return &core.QueryResponse{Answer: answer, Sources: hits}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrRetrievalFailed):
		return "retrieval_failed"
	case errors.Is(err, ErrGenerationFailed):
		return "generation_failed"
	default:
		return "error"
	}
}
