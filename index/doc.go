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

// Package index provides the vector index abstraction for Ragline.
//
// The Index interface decouples the ingestion pipeline and the query
// orchestrator from the storage engine. Two implementations exist:
//
//   - index/badger: embedded BadgerDB store with exact cosine search
//   - index/qdrant: remote Qdrant collection over its REST API
//
// Both guarantee that writes to the same DocID are serialized, that a record
// is only visible with a complete embedding, and that search ranks by cosine
// similarity with ties broken by the most recent ingestion.
//
// # Usage
//
//	idx, err := badger.Open("/var/lib/ragline/index", badger.WithDimensions(768))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
// Use in tests with in-memory storage:
//
//	idx, err := badger.NewMemoryIndex(badger.WithDimensions(8))
package index
