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

package ingestion

import (
	"context"

	"github.com/poiesic/memctx/core"
)

// processor is an internal interface for work done after a conversation
// is written. Implementations run on the capture worker pool.
type processor interface {
	// wants reports whether the messages hold anything to process.
	wants(messages []core.Message) bool

	// process handles the messages just written to conversation id.
	process(ctx context.Context, id string, messages []core.Message) error
}
