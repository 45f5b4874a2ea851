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

// Package prompt turns ranked memory into a context block for a language
// model prompt.
//
// The block starts with a fixed header followed by one section per ranked
// item, separated by blank lines:
//
//	Relevant prior knowledge:
//
//	Conversation 1:
//	user: How do promises work?
//	assistant: A promise represents a future value.
//
//	Knowledge: deploy-notes
//	Run the migration before restarting the workers.
//
// EnhancePrompt wraps a user prompt with that block, even when the block
// holds only the header. Retrieval is best effort: any failure yields the
// original prompt.
package prompt
