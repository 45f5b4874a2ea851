package store

import (
	"context"
	"fmt"
	"maps"

	"github.com/poiesic/memctx/core"
)

// UpsertKnowledge creates or replaces the knowledge record stored under key.
func (s *Store) UpsertKnowledge(ctx context.Context, key string, data any, metadata core.Metadata) (string, error) {
	if err := core.ValidateKnowledge(key, data); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.knowledge.set(key, &core.KnowledgeRecord{
		Key:         key,
		Data:        data,
		Metadata:    maps.Clone(metadata),
		LastUpdated: s.timestamp(),
	})
	s.logger.Debug("upserted knowledge", "key", key)

	if err := s.persistLocked(ctx); err != nil {
		return key, err
	}
	return key, nil
}

// GetKnowledge returns a copy of a knowledge record.
func (s *Store) GetKnowledge(ctx context.Context, key string) (*core.KnowledgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.knowledge.get(key)
	if !ok {
		return nil, fmt.Errorf("%w: knowledge %s", core.ErrNotFound, key)
	}
	return record.Clone(), nil
}

// ListKnowledge summarizes every knowledge record in insertion order.
func (s *Store) ListKnowledge(ctx context.Context) []*core.KnowledgeSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.KnowledgeSummary, 0, s.knowledge.len())
	s.knowledge.each(func(_ string, r *core.KnowledgeRecord) bool {
		out = append(out, &core.KnowledgeSummary{
			Key:         r.Key,
			Metadata:    maps.Clone(r.Metadata),
			LastUpdated: r.LastUpdated,
			Preview:     core.Preview(r.Data),
		})
		return true
	})
	return out
}

// DeleteKnowledge removes a knowledge record.
func (s *Store) DeleteKnowledge(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.knowledge.delete(key) {
		return fmt.Errorf("%w: knowledge %s", core.ErrNotFound, key)
	}
	return s.persistLocked(ctx)
}

// Knowledge returns copies of every knowledge record in insertion order.
func (s *Store) Knowledge(ctx context.Context) []*core.KnowledgeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.KnowledgeRecord, 0, s.knowledge.len())
	s.knowledge.each(func(_ string, r *core.KnowledgeRecord) bool {
		out = append(out, r.Clone())
		return true
	})
	return out
}
