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

// Package index scores documents against a query with TF-IDF term weighting.
//
// For a corpus of N documents the score of document d is
//
//	sum over query terms t of tf(t, d) * ln(N / df(t))
//
// where tf is the raw count of t in d and df is the number of documents
// containing t. Repeated query terms contribute once per occurrence. A term
// that appears in every document carries no weight.
//
// The index is built fresh for every query and holds no state between calls.
package index
