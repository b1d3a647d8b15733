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

package query

import "errors"

var (
	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrRetrievalFailed is returned when the query could not be embedded or
	// the index could not be searched in time. No answer is attempted.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrQueryEmbedding accompanies ErrRetrievalFailed when the failing step
	// was embedding the query rather than searching the index.
	ErrQueryEmbedding = errors.New("query embedding failed")

	// ErrGenerationFailed is returned when the answer could not be generated.
	ErrGenerationFailed = errors.New("generation failed")
)
