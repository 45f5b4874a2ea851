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

// Package search ranks stored memory against a query.
//
// The Ranker combines two tiers:
//   - Conversations are scored with TF-IDF over their message text and
//     returned best first. Ties keep store order.
//   - Knowledge records match when the query occurs, ignoring case, in the
//     record key or in the JSON form of its data. They keep store order.
//
// Search is the plain lexical variant used for browsing: a substring match
// over whole conversations and knowledge records that returns previews.
package search
