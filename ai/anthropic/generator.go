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

// Package anthropic implements ai.Generator on Claude models through the
// Anthropic Messages API. It provides no embedder; pair it with another
// provider's embedder via ai.NewCompositeProvider.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/poiesic/ragline/ai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-3-5-haiku-latest"

// ErrAPIKeyRequired is the cause reported by the unavailable generator when
// no API key is configured.
var ErrAPIKeyRequired = errors.New("anthropic API key is required")

// Config holds Claude generation settings.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// MaxRetries caps SDK-level retries. Negative keeps the SDK default.
	MaxRetries int
}

// Generator implements ai.Generator with Claude.
type Generator struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewGenerator returns a Claude generator. Without an API key it returns an
// unavailable generator so the failure surfaces per request.
func NewGenerator(cfg Config) ai.Generator {
	logger := slog.Default().With("component", "anthropic-generator")
	if cfg.APIKey == "" {
		logger.Error("generation model unavailable", "err", ErrAPIKeyRequired)
		return ai.UnavailableGenerator(ErrAPIKeyRequired)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Generator{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

// Generate sends prompt as a single user message and concatenates the text
// blocks of the reply.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	g.logger.Debug("generating completion", "prompt_length", len(prompt), "model", g.model)

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", fmt.Errorf("%w: %w", ai.ErrGenerationCall, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
