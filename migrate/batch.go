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

package migrate

import "context"

// forEachBatch calls fn with consecutive slices of at most size records.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func forEachBatch[T any](ctx context.Context, records []T, size int, fn func([]T) error) error {
	if size <= 0 {
		size = DefaultConfig().BatchSize
	}

	for i := 0; i < len(records); i += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(i+size, len(records))
		if err := fn(records[i:end]); err != nil {
			return err
		}
	}

	return nil
}
