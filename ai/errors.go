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

import "errors"

// Gateway errors. Adapters wrap the underlying cause with these so callers
// can classify failures with errors.Is.
var (
	// ErrEmbeddingUnavailable indicates the embedding model failed to initialize.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrEmbeddingCall indicates a call to an initialized embedding model failed.
	ErrEmbeddingCall = errors.New("embedding call failed")

	// ErrGenerationUnavailable indicates the generation model failed to initialize.
	ErrGenerationUnavailable = errors.New("generation model unavailable")

	// ErrGenerationCall indicates a call to an initialized generation model failed.
	ErrGenerationCall = errors.New("generation call failed")
)
