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

// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// This package works with any service that implements the OpenAI API specification,
// including:
//   - OpenAI (api.openai.com)
//   - Ollama (with OpenAI compatibility layer)
//   - LocalAI
//   - vLLM
//   - Any other OpenAI-compatible endpoint
//
// # Configuration
//
// Configuration is provided via ai.Config:
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434/v1"),
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	    ai.WithGenerationModel("llama3.2"),
//	    ai.WithDimensions(768),
//	)
//	provider, err := openai.NewProvider(config)
//
// # Embeddings
//
// The Embedder wraps langchaingo's embeddings package with newline stripping.
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello, world!")
//
// # Generation
//
// The Generator sends a single user prompt to the chat completions endpoint.
//
//	answer, err := provider.Generator().Generate(ctx, prompt, config.GenerateOptions())
//
// # Error Handling
//
// Call failures wrap ai.ErrEmbeddingCall or ai.ErrGenerationCall. A client that
// cannot be constructed yields an unavailable gateway instead of an error, so
// NewProvider only fails on invalid configuration.
package openai
