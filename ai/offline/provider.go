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

import "github.com/poiesic/ragline/ai"

// Provider implements ai.AIProvider with the offline embedder and generator.
type Provider struct {
	embedder  *Embedder
	generator *Generator
}

// NewProvider creates an offline provider producing dims-sized embeddings.
func NewProvider(dims int) ai.AIProvider {
	return &Provider{
		embedder:  NewEmbedder(dims),
		generator: NewGenerator(),
	}
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
