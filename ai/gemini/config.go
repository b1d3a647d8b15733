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

package gemini

import (
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Supported backends.
const (
	BackendGeminiAPI = "gemini"
	BackendVertex    = "vertex"
)

// Config holds settings for the Gemini and Vertex AI backends.
type Config struct {
	// Backend is BackendGeminiAPI or BackendVertex. Default: BackendGeminiAPI
	Backend string

	// APIKey authenticates against the Gemini API.
	APIKey string

	// Project and Location select the Vertex AI endpoint.
	Project  string
	Location string

	// BaseURL overrides the service endpoint.
	BaseURL string

	// EmbeddingModel defaults to "text-embedding-004".
	EmbeddingModel string

	// GenerationModel defaults to "gemini-2.0-flash".
	GenerationModel string

	// Dimensions requests a specific output dimensionality. Default: 768
	Dimensions int
}

// WithDefaults returns a copy of c with empty fields filled in.
func (c Config) WithDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendGeminiAPI
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-004"
	}
	if c.GenerationModel == "" {
		c.GenerationModel = "gemini-2.0-flash"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 768
	}
	return c
}

// Validate reports configuration errors that no retry could fix.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendGeminiAPI:
	case BackendVertex:
		if c.Project == "" {
			return errors.New("gemini config: Project is required for the vertex backend")
		}
		if c.Location == "" {
			return errors.New("gemini config: Location is required for the vertex backend")
		}
	default:
		return fmt.Errorf("gemini config: unknown backend %q: must be one of %s, %s", c.Backend, BackendGeminiAPI, BackendVertex)
	}
	if c.Dimensions < 1 {
		return errors.New("gemini config: Dimensions must be positive")
	}
	return nil
}

func (c Config) clientConfig() *genai.ClientConfig {
	cc := &genai.ClientConfig{
		APIKey:  c.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.Backend == BackendVertex {
		cc.Backend = genai.BackendVertexAI
		cc.Project = c.Project
		cc.Location = c.Location
		cc.APIKey = ""
	}
	if c.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.BaseURL}
	}
	return cc
}
