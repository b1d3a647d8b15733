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

// Package offline provides deterministic AI gateways that run entirely in
// process. They make no network calls, which makes them suitable for
// development, demos, and tests that need stable retrieval ordering.
//
// The embedder hashes word tokens into a fixed number of buckets and
// L2-normalizes the counts, so texts sharing words score higher under cosine
// similarity. The generator answers extractively with the first passage of
// the prompt's context block.
package offline
