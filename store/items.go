package store

import (
	"context"
	"fmt"
	"maps"

	"github.com/poiesic/memctx/core"
)

// ItemIDPrefix prefixes identifiers generated for items created without one.
const ItemIDPrefix = "mem"

// CreateItem inserts a new item. An empty ID is generated and an empty type
// becomes core.DefaultItemType. Creating an ID that already exists fails with
// core.ErrConflict and leaves the stored item untouched.
func (s *Store) CreateItem(ctx context.Context, item *core.MemoryItem) (*core.MemoryItem, error) {
	if err := core.ValidateMemoryItem(item); err != nil {
		return nil, err
	}

	created := item.Clone()
	if created.ID == "" {
		created.ID = core.NewID(ItemIDPrefix)
	}
	if created.Type == "" {
		created.Type = core.DefaultItemType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items.get(created.ID); exists {
		return nil, fmt.Errorf("%w: item %s", core.ErrConflict, created.ID)
	}
	now := s.timestamp()
	created.CreatedAt = now
	created.LastUpdatedAt = now
	s.items.set(created.ID, created)

	if err := s.persistLocked(ctx); err != nil {
		return created.Clone(), err
	}
	return created.Clone(), nil
}

// UpdateItem replaces the content of an existing item. An empty itemType
// and a nil metadata map keep the stored values.
func (s *Store) UpdateItem(ctx context.Context, id, content, itemType string, metadata core.Metadata) (*core.MemoryItem, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyContent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: item %s", core.ErrNotFound, id)
	}
	updated := existing.Clone()
	updated.Content = content
	if itemType != "" {
		updated.Type = itemType
	}
	if metadata != nil {
		updated.Metadata = maps.Clone(metadata)
	}
	updated.LastUpdatedAt = s.timestamp()
	s.items.set(id, updated)

	if err := s.persistLocked(ctx); err != nil {
		return updated.Clone(), err
	}
	return updated.Clone(), nil
}

// GetItem returns a copy of an item.
func (s *Store) GetItem(ctx context.Context, id string) (*core.MemoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: item %s", core.ErrNotFound, id)
	}
	return item.Clone(), nil
}

// ListItems returns copies of every item in insertion order.
func (s *Store) ListItems(ctx context.Context) []*core.MemoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.MemoryItem, 0, s.items.len())
	s.items.each(func(_ string, item *core.MemoryItem) bool {
		out = append(out, item.Clone())
		return true
	})
	return out
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.items.delete(id) {
		return fmt.Errorf("%w: item %s", core.ErrNotFound, id)
	}
	return s.persistLocked(ctx)
}
