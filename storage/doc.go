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

// Package storage provides the durable storage abstraction for memctx.
//
// The document store keeps every record in memory and writes whole
// collections through the Storage interface after each mutation. This
// package defines that interface, the collection names and the JSON
// document encoding shared by all backends.
//
// # Constructor Return Type Pattern
//
// Backend constructors return the storage.Storage interface so the store
// never couples to a specific backend:
//
//	backend, err := badger.NewStorage(path)  // returns storage.Storage
//
// Internal constructors (OpenBackend, etc.) may return concrete types for
// tests and tooling inside the implementation package.
//
// # Backends
//
//   - storage/badger: BadgerDB, one key per document, one transaction per collection write
//   - storage/jsonfile: one JSON object file per collection, compatible with
//     the legacy memory directory layout
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.NewMemoryBackend()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Semantics
//
// WriteAll replaces a collection wholesale. There is no locking between
// processes: the last writer wins.
//
// # Context Support
//
// All methods accept context.Context. Pass context.Background() for
// operations without specific timeout requirements.
package storage
