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

// Package ingestion decides when inbound conversation traffic is worth
// remembering.
//
// Capture buffers the messages of each conversation id until the buffer
// holds both a user and an assistant message. A response batch that
// completes such an exchange is written at once; an exchange completed by a
// request batch is written when the conversation goes idle. A buffer that
// goes idle without both roles is discarded.
//
// After every write, long assistant answers are turned into knowledge
// records on a worker pool. Failures anywhere in the package are logged and
// never reported to the caller of Observe.
package ingestion
