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

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// MinQueryLength is the shortest accepted query, in characters.
const MinQueryLength = 3

// ValidateQueryRequest checks a query request before any external call is
// made.
//
// Validation rules:
//   - Query must be at least MinQueryLength characters
//   - TopK must not be negative (0 means "use the default")
func ValidateQueryRequest(req *QueryRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(req.Query) < MinQueryLength {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrQueryTooShort)
	}
	if req.TopK < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrInvalidTopK)
	}
	return nil
}

// ValidateIngestEvent checks an event before it is embedded.
func ValidateIngestEvent(ev *IngestEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidEvent)
	}
	if ev.DocID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrEmptyDocID)
	}
	if ev.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrEmptyContent)
	}
	return nil
}

// ValidateEmbedding checks that vec is a complete embedding of the expected
// dimensionality. dims <= 0 skips the length check.
func ValidateEmbedding(vec []float32, dims int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	if dims > 0 && len(vec) != dims {
		return fmt.Errorf("%w: expected %d dimensions, received %d", ErrInvalidEmbedding, dims, len(vec))
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite value at position %d", ErrInvalidEmbedding, i)
		}
	}
	return nil
}
