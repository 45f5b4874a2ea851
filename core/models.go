package core

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a message written by the human side of a conversation.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the language model.
	RoleAssistant Role = "assistant"
)

// DefaultItemType is assigned to memory items created without a type.
const DefaultItemType = "generic"

// Metadata is an open key-value bag attached to every record.
type Metadata map[string]any

// Message is a single turn of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// ConversationRecord is a persisted conversation.
type ConversationRecord struct {
	ID          string    `json:"id"`
	Messages    []Message `json:"messages"`
	Metadata    Metadata  `json:"metadata"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Text returns the message contents joined by single spaces.
// This is the text the relevance index sees for the conversation.
func (c *ConversationRecord) Text() string {
	n := 0
	for _, m := range c.Messages {
		n += len(m.Content) + 1
	}
	buf := make([]byte, 0, n)
	for i, m := range c.Messages {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, m.Content...)
	}
	return string(buf)
}

// Clone returns a copy that shares no mutable state with c.
// Metadata values are copied shallowly.
func (c *ConversationRecord) Clone() *ConversationRecord {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = slices.Clone(c.Messages)
	out.Metadata = maps.Clone(c.Metadata)
	return &out
}

// KnowledgeRecord is a keyed knowledge snippet.
// Data is either a string or any JSON-compatible value.
type KnowledgeRecord struct {
	Key         string    `json:"key"`
	Data        any       `json:"data"`
	Metadata    Metadata  `json:"metadata"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Clone returns a copy of the record with its own metadata map.
func (k *KnowledgeRecord) Clone() *KnowledgeRecord {
	if k == nil {
		return nil
	}
	out := *k
	out.Metadata = maps.Clone(k.Metadata)
	return &out
}

// DataJSON returns the compact JSON encoding of the record's data.
func (k *KnowledgeRecord) DataJSON() (string, error) {
	return JSONString(k.Data)
}

// JSONString encodes v as compact JSON without escaping HTML characters,
// so that "<" and "&" in stored text stay searchable as written.
func JSONString(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// MemoryItem is a free-form memory entry. Unlike conversations and
// knowledge, items are insert-only: creating an existing ID fails.
type MemoryItem struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Type          string    `json:"type"`
	Metadata      Metadata  `json:"metadata"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Clone returns a copy of the item with its own metadata map.
func (m *MemoryItem) Clone() *MemoryItem {
	if m == nil {
		return nil
	}
	out := *m
	out.Metadata = maps.Clone(m.Metadata)
	return &out
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Metadata     Metadata  `json:"metadata"`
	LastUpdated  time.Time `json:"lastUpdated"`
	MessageCount int       `json:"messageCount"`
}

// ConversationPage is one page of conversation summaries.
type ConversationPage struct {
	Total int                    `json:"total"`
	Page  int                    `json:"page"`
	Limit int                    `json:"limit"`
	Items []*ConversationSummary `json:"items"`
}

// KnowledgeSummary is the list view of a knowledge record.
type KnowledgeSummary struct {
	Key         string    `json:"key"`
	Metadata    Metadata  `json:"metadata"`
	LastUpdated time.Time `json:"lastUpdated"`
	Preview     string    `json:"preview"`
}

// Stats counts the records held by a store.
type Stats struct {
	Conversations int `json:"conversations"`
	Knowledge     int `json:"knowledge"`
	Items         int `json:"items"`
	Messages      int `json:"messages"`
}

// PreviewLength is the number of runes kept in list and search previews.
const PreviewLength = 100

// Preview returns the first PreviewLength runes of a knowledge payload.
// Strings are used verbatim; any other value is previewed as JSON.
func Preview(data any) string {
	var s string
	switch v := data.(type) {
	case string:
		s = v
	default:
		var err error
		if s, err = JSONString(v); err != nil {
			return ""
		}
	}
	return Truncate(s, PreviewLength)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
