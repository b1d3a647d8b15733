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

package offline

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/poiesic/ragline/ai"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 384

// Embedder implements ai.Embedder with feature hashing over word tokens.
type Embedder struct {
	dims int
}

// NewEmbedder creates an embedder producing dims-sized vectors.
// Non-positive dims fall back to DefaultDimensions.
func NewEmbedder(dims int) *Embedder {
	if dims < 1 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// EmbedText returns a unit vector for text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return HashVector(text, e.dims), nil
}

// EmbedTexts embeds each text in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions reports the configured vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Tokenize splits text into lowercase words of letters and digits.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashVector builds a normalized bag-of-words vector of size dims.
// Text without any word tokens maps to the first basis vector.
func HashVector(text string, dims int) []float32 {
	vector := make([]float32, dims)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		vector[0] = 1
		return vector
	}
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vector[h.Sum32()%uint32(dims)]++
	}
	return Normalize(vector)
}

var _ ai.Embedder = (*Embedder)(nil)
