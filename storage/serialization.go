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

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/memctx/core"
)

// MarshalConversation serializes a ConversationRecord to a document.
func MarshalConversation(record *core.ConversationRecord) (Document, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return Document{}, fmt.Errorf("%w: conversation %s: %w", ErrSerializationFailed, record.ID, err)
	}
	return Document{Key: record.ID, Body: body}, nil
}

// UnmarshalConversation deserializes a ConversationRecord from a document.
// The document key wins over a missing id in the body.
func UnmarshalConversation(doc Document) (*core.ConversationRecord, error) {
	var record core.ConversationRecord
	if err := json.Unmarshal(doc.Body, &record); err != nil {
		return nil, fmt.Errorf("%w: conversation %s: %w", ErrSerializationFailed, doc.Key, err)
	}
	if record.ID == "" {
		record.ID = doc.Key
	}
	if record.Messages == nil {
		record.Messages = []core.Message{}
	}
	return &record, nil
}

// MarshalKnowledge serializes a KnowledgeRecord to a document.
func MarshalKnowledge(record *core.KnowledgeRecord) (Document, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return Document{}, fmt.Errorf("%w: knowledge %s: %w", ErrSerializationFailed, record.Key, err)
	}
	return Document{Key: record.Key, Body: body}, nil
}

// UnmarshalKnowledge deserializes a KnowledgeRecord from a document.
// Legacy bodies carry no key field; the document key fills it in.
func UnmarshalKnowledge(doc Document) (*core.KnowledgeRecord, error) {
	var record core.KnowledgeRecord
	if err := json.Unmarshal(doc.Body, &record); err != nil {
		return nil, fmt.Errorf("%w: knowledge %s: %w", ErrSerializationFailed, doc.Key, err)
	}
	if record.Key == "" {
		record.Key = doc.Key
	}
	return &record, nil
}

// MarshalItem serializes a MemoryItem to a document.
func MarshalItem(item *core.MemoryItem) (Document, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return Document{}, fmt.Errorf("%w: item %s: %w", ErrSerializationFailed, item.ID, err)
	}
	return Document{Key: item.ID, Body: body}, nil
}

// UnmarshalItem deserializes a MemoryItem from a document.
func UnmarshalItem(doc Document) (*core.MemoryItem, error) {
	var item core.MemoryItem
	if err := json.Unmarshal(doc.Body, &item); err != nil {
		return nil, fmt.Errorf("%w: item %s: %w", ErrSerializationFailed, doc.Key, err)
	}
	if item.ID == "" {
		item.ID = doc.Key
	}
	return &item, nil
}
