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

package ai

import (
	"context"
	"fmt"
)

// UnavailableEmbedder returns an Embedder that fails every call with
// ErrEmbeddingUnavailable. Providers use it when model initialization fails
// so the process can keep serving and report the failure per request.
func UnavailableEmbedder(cause error, dims int) Embedder {
	return &unavailableEmbedder{cause: cause, dims: dims}
}

// UnavailableGenerator returns a Generator that fails every call with
// ErrGenerationUnavailable.
func UnavailableGenerator(cause error) Generator {
	return &unavailableGenerator{cause: cause}
}

type unavailableEmbedder struct {
	cause error
	dims  int
}

func (u *unavailableEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, u.cause)
}

func (u *unavailableEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, u.cause)
}

func (u *unavailableEmbedder) Dimensions() int {
	return u.dims
}

type unavailableGenerator struct {
	cause error
}

func (u *unavailableGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, u.cause)
}
