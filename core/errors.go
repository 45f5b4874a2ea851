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

package core

import "errors"

// Error kinds. Callers match them with errors.Is; the wrapped message
// carries the detail.
var (
	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a lookup by id or key missed.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an insert-only creation collided with an existing id.
	ErrConflict = errors.New("already exists")

	// ErrIO indicates the durable storage could not be read or written.
	ErrIO = errors.New("storage i/o failed")

	// ErrUpstream indicates a collaborator call failed.
	ErrUpstream = errors.New("upstream failure")
)

// Validation details
var (
	// ErrEmptyID indicates the id or key field is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrMissingMessages indicates a conversation was written without messages.
	ErrMissingMessages = errors.New("messages are required")

	// ErrEmptyRole indicates a message without a role.
	ErrEmptyRole = errors.New("role cannot be empty")

	// ErrEmptyContent indicates a message or item without content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingData indicates a knowledge record without data.
	ErrMissingData = errors.New("data is required")
)
