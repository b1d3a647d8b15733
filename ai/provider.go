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
	"errors"
	"io"
)

// CompositeProvider pairs an embedder from one backend with a generator from
// another, for example local embeddings with a hosted generation model.
type CompositeProvider struct {
	embedder  Embedder
	generator Generator
	closers   []io.Closer
}

// NewCompositeProvider returns a provider serving embedder and generator.
// closers are closed in order by Close.
func NewCompositeProvider(embedder Embedder, generator Generator, closers ...io.Closer) *CompositeProvider {
	return &CompositeProvider{
		embedder:  embedder,
		generator: generator,
		closers:   closers,
	}
}

func (p *CompositeProvider) Embedder() Embedder {
	return p.embedder
}

func (p *CompositeProvider) Generator() Generator {
	return p.generator
}

// Close closes every underlying resource and joins their errors.
func (p *CompositeProvider) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
