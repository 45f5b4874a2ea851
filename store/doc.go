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

// Package store implements the document store: the single owner of the
// conversation, knowledge and item collections.
//
// Every mutation is applied in memory and then written through the
// storage.Storage contract before the call returns. The write lock is held
// across the write, so mutations are observed and persisted in the order
// they were submitted. Readers receive copies and never share state with
// the store.
//
// Example:
//
//	backend, _ := badger.NewStorage("./memory")
//	st, _ := store.New(backend)
//	if err := st.Load(ctx); err != nil { ... }
//	id, err := st.UpsertConversation(ctx, "conv-1", messages, nil)
package store
