package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/poiesic/memctx/core"
)

// UpsertConversation creates or replaces a conversation. Messages and
// metadata replace any existing ones wholesale; an existing conversation
// keeps its position in the collection.
func (s *Store) UpsertConversation(ctx context.Context, id string, messages []core.Message, metadata core.Metadata) (string, error) {
	if err := core.ValidateConversation(id, messages); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations.set(id, &core.ConversationRecord{
		ID:          id,
		Messages:    slices.Clone(messages),
		Metadata:    maps.Clone(metadata),
		LastUpdated: s.timestamp(),
	})
	s.logger.Debug("upserted conversation", "id", id, "messages", len(messages))

	if err := s.persistLocked(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// AppendMessage adds a message stamped with the current time to the end of
// an existing conversation.
func (s *Store) AppendMessage(ctx context.Context, id string, role core.Role, content string) error {
	if err := core.ValidateMessage(role, content); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.conversations.get(id)
	if !ok {
		return fmt.Errorf("%w: conversation %s", core.ErrNotFound, id)
	}
	now := s.timestamp()
	// Copy on write; snapshots handed out earlier may share the old slice.
	updated := record.Clone()
	updated.Messages = append(updated.Messages, core.Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	updated.LastUpdated = now
	s.conversations.set(id, updated)

	return s.persistLocked(ctx)
}

// AppendMessages adds messages, keeping their own timestamps, to the end of
// a conversation, creating it when it does not exist. Metadata keys are
// merged into the existing metadata. It returns the number of messages the
// conversation held before the call.
func (s *Store) AppendMessages(ctx context.Context, id string, messages []core.Message, metadata core.Metadata) (int, error) {
	if err := core.ValidateConversation(id, messages); err != nil {
		return 0, err
	}
	for _, m := range messages {
		if err := core.ValidateMessage(m.Role, m.Content); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *core.ConversationRecord
	previous := 0
	if record, ok := s.conversations.get(id); ok {
		updated = record.Clone()
		previous = len(record.Messages)
	} else {
		updated = &core.ConversationRecord{ID: id, Messages: []core.Message{}}
	}
	updated.Messages = append(updated.Messages, messages...)
	if len(metadata) > 0 {
		if updated.Metadata == nil {
			updated.Metadata = make(core.Metadata, len(metadata))
		}
		maps.Copy(updated.Metadata, metadata)
	}
	updated.LastUpdated = s.timestamp()
	s.conversations.set(id, updated)

	return previous, s.persistLocked(ctx)
}

// GetConversation returns a copy of a conversation.
func (s *Store) GetConversation(ctx context.Context, id string) (*core.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.conversations.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", core.ErrNotFound, id)
	}
	return record.Clone(), nil
}

// ListConversations returns one page of conversation summaries in insertion
// order. Pages are 1-indexed; a page past the end is empty.
func (s *Store) ListConversations(ctx context.Context, page, limit int) (*core.ConversationPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1, got %d", core.ErrValidation, page)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be at least 1, got %d", core.ErrValidation, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.conversations.len()
	result := &core.ConversationPage{
		Total: total,
		Page:  page,
		Limit: limit,
		Items: []*core.ConversationSummary{},
	}
	start := (page - 1) * limit
	if start >= total {
		return result, nil
	}
	end := min(start+limit, total)
	for _, id := range s.conversations.keys[start:end] {
		record := s.conversations.values[id]
		result.Items = append(result.Items, &core.ConversationSummary{
			ID:           record.ID,
			Metadata:     maps.Clone(record.Metadata),
			LastUpdated:  record.LastUpdated,
			MessageCount: len(record.Messages),
		})
	}
	return result, nil
}

// DeleteConversation removes a conversation.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.conversations.delete(id) {
		return fmt.Errorf("%w: conversation %s", core.ErrNotFound, id)
	}
	return s.persistLocked(ctx)
}

// Conversations returns copies of every conversation in insertion order.
func (s *Store) Conversations(ctx context.Context) []*core.ConversationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.ConversationRecord, 0, s.conversations.len())
	s.conversations.each(func(_ string, r *core.ConversationRecord) bool {
		out = append(out, r.Clone())
		return true
	})
	return out
}
