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

// Package ai provides abstractions for the model gateways used by Ragline.
//
// The package defines three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Produces a completion for a prompt
//   - AIProvider: Aggregates both for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (Ollama, vLLM, LocalAI, OpenAI) via langchaingo
//   - ai/gemini: Gemini API or Vertex AI via google.golang.org/genai
//   - ai/anthropic: Claude generation via anthropic-sdk-go
//   - ai/offline: deterministic local gateways that never touch the network
//   - ai/mock: test doubles with injectable behavior
//
// # Failure Classification
//
// Every adapter wraps its failures with one of four sentinels so callers
// can tell a model that never came up from one that failed a single call:
//
//	ErrEmbeddingUnavailable, ErrEmbeddingCall
//	ErrGenerationUnavailable, ErrGenerationCall
//
// Providers never fail construction because a model could not be reached.
// They substitute UnavailableEmbedder or UnavailableGenerator and log the
// cause, so the service keeps running and reports the failure per request.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithDimensions(768))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	answer, err := provider.Generator().Generate(ctx, prompt, config.GenerateOptions())
package ai
