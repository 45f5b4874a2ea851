package store

import (
	"context"

	"github.com/poiesic/memctx/core"
)

// Batch is a set of records brought in from another memory.
type Batch struct {
	Conversations []*core.ConversationRecord
	Knowledge     []*core.KnowledgeRecord
	Items         []*core.MemoryItem
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Conversations) + len(b.Knowledge) + len(b.Items)
}

// ImportResult counts what Import did with a batch.
type ImportResult struct {
	Imported int
	Skipped  int
	Invalid  int
}

// Add accumulates another result into r.
func (r *ImportResult) Add(other ImportResult) {
	r.Imported += other.Imported
	r.Skipped += other.Skipped
	r.Invalid += other.Invalid
}

// Import merges a batch into memory, keeping the records' own timestamps.
// Existing ids and keys are skipped unless overwrite is set; records that
// fail validation are counted as invalid and dropped. Import does not write
// to the backend; call Persist once the batch should be made durable.
func (s *Store) Import(ctx context.Context, batch Batch, overwrite bool) ImportResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result ImportResult
	now := s.timestamp()

	for _, r := range batch.Conversations {
		if r == nil || core.ValidateConversation(r.ID, r.Messages) != nil {
			result.Invalid++
			continue
		}
		if _, exists := s.conversations.get(r.ID); exists && !overwrite {
			result.Skipped++
			continue
		}
		record := r.Clone()
		if record.LastUpdated.IsZero() {
			record.LastUpdated = now
		}
		s.conversations.set(record.ID, record)
		result.Imported++
	}

	for _, r := range batch.Knowledge {
		if r == nil || core.ValidateKnowledge(r.Key, r.Data) != nil {
			result.Invalid++
			continue
		}
		if _, exists := s.knowledge.get(r.Key); exists && !overwrite {
			result.Skipped++
			continue
		}
		record := r.Clone()
		if record.LastUpdated.IsZero() {
			record.LastUpdated = now
		}
		s.knowledge.set(record.Key, record)
		result.Imported++
	}

	for _, item := range batch.Items {
		if core.ValidateMemoryItem(item) != nil || item.ID == "" {
			result.Invalid++
			continue
		}
		if _, exists := s.items.get(item.ID); exists && !overwrite {
			result.Skipped++
			continue
		}
		imported := item.Clone()
		if imported.Type == "" {
			imported.Type = core.DefaultItemType
		}
		if imported.CreatedAt.IsZero() {
			imported.CreatedAt = now
		}
		if imported.LastUpdatedAt.IsZero() {
			imported.LastUpdatedAt = imported.CreatedAt
		}
		s.items.set(imported.ID, imported)
		result.Imported++
	}

	s.logger.Debug("imported batch",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"invalid", result.Invalid)
	return result
}
