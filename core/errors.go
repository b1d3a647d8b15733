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

package core

import "errors"

// Request and record validation errors
var (
	// ErrInvalidRequest indicates a query request failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrQueryTooShort indicates the query text has fewer than MinQueryLength characters.
	ErrQueryTooShort = errors.New("query too short")

	// ErrInvalidTopK indicates a negative top_k.
	ErrInvalidTopK = errors.New("top_k must be at least 1")

	// ErrInvalidEvent indicates an ingest event failed validation.
	ErrInvalidEvent = errors.New("invalid ingest event")

	// ErrEmptyDocID indicates the doc_id field is empty.
	ErrEmptyDocID = errors.New("doc_id cannot be empty")

	// ErrEmptyContent indicates the text field is empty.
	ErrEmptyContent = errors.New("text cannot be empty")

	// ErrInvalidEmbedding indicates a vector is empty, has the wrong
	// dimensionality, or holds non-finite values.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)
