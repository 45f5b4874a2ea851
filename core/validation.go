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

import (
	"fmt"
	"strings"
)

// ValidateConversation validates the arguments of a conversation upsert.
//
// Validation rules:
//   - id must not be empty
//   - messages must be present (a nil slice is missing, an empty one is not)
//
// Individual messages are stored as given.
func ValidateConversation(id string, messages []Message) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: conversation %w", ErrValidation, ErrEmptyID)
	}
	if messages == nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingMessages)
	}
	return nil
}

// ValidateMessage validates a message appended to a conversation.
//
// Validation rules:
//   - Role must not be empty
//   - Content must not be empty
func ValidateMessage(role Role, content string) error {
	if strings.TrimSpace(string(role)) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyRole)
	}
	if content == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
	}
	return nil
}

// ValidateKnowledge validates the arguments of a knowledge upsert.
//
// Validation rules:
//   - key must not be empty
//   - data must not be nil or an empty string
func ValidateKnowledge(key string, data any) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: knowledge %w", ErrValidation, ErrEmptyID)
	}
	if IsEmptyData(data) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingData)
	}
	return nil
}

// ValidateMemoryItem validates an item before creation or update.
// The ID is not checked because creation generates one when it is empty.
func ValidateMemoryItem(item *MemoryItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrValidation)
	}
	if item.Content == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
	}
	return nil
}

// IsEmptyData reports whether a knowledge payload counts as missing.
func IsEmptyData(data any) bool {
	switch v := data.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}
