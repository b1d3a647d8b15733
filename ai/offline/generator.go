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
	"strings"

	"github.com/poiesic/ragline/ai"
)

// NoContextAnswer is returned when the prompt carries no context passages.
const NoContextAnswer = "I don't know based on the indexed documents."

// Generator implements ai.Generator by echoing the highest-ranked context
// passage from a "Context:\n...\n\nQuestion:" prompt.
type Generator struct{}

// NewGenerator creates an extractive generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the first context passage, trimmed to opts.MaxTokens words.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	passage := firstPassage(prompt)
	if passage == "" {
		return NoContextAnswer, nil
	}
	if opts.MaxTokens > 0 {
		words := strings.Fields(passage)
		if len(words) > opts.MaxTokens {
			passage = strings.Join(words[:opts.MaxTokens], " ")
		}
	}
	return passage, nil
}

func firstPassage(prompt string) string {
	_, body, ok := strings.Cut(prompt, "Context:\n")
	if !ok {
		return ""
	}
	if i := strings.Index(body, "\n\nQuestion:"); i >= 0 {
		body = body[:i]
	}
	passage, _, _ := strings.Cut(body, "\n\n")
	return strings.TrimSpace(passage)
}

var _ ai.Generator = (*Generator)(nil)
