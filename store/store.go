package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/storage"
)

// Store holds the three collections and persists them after every mutation.
type Store struct {
	backend storage.Storage
	logger  *slog.Logger
	now     func() time.Time

	mu            sync.RWMutex
	conversations *ordered[*core.ConversationRecord]
	knowledge     *ordered[*core.KnowledgeRecord]
	items         *ordered[*core.MemoryItem]
	// fingerprints of the last successful write per collection
	fingerprints map[storage.Collection]core.Fingerprint
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "store")
		return nil
	}
}

// WithClock overrides the time source used for lastUpdated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// New creates an empty store writing through backend. A nil backend keeps
// the store purely in memory. Call Load to read previously persisted state.
func New(backend storage.Storage, opts ...Option) (*Store, error) {
	s := &Store{
		backend:       backend,
		logger:        slog.Default().With("component", "store"),
		now:           time.Now,
		conversations: newOrdered[*core.ConversationRecord](),
		knowledge:     newOrdered[*core.KnowledgeRecord](),
		items:         newOrdered[*core.MemoryItem](),
		fingerprints:  make(map[storage.Collection]core.Fingerprint),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// timestamp returns the current time in UTC without a monotonic reading,
// so stamped records compare equal after a round trip through storage.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Round(0)
}

// Load replaces the in-memory collections with the durable ones.
// A collection that was never written loads as empty.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	conversations := newOrdered[*core.ConversationRecord]()
	knowledge := newOrdered[*core.KnowledgeRecord]()
	items := newOrdered[*core.MemoryItem]()

	for _, c := range storage.Collections {
		docs, err := s.backend.ReadAll(ctx, c)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", core.ErrIO, c, err)
		}
		for _, doc := range docs {
			switch c {
			case storage.Conversations:
				record, err := storage.UnmarshalConversation(doc)
				if err != nil {
					return fmt.Errorf("%w: %w", core.ErrIO, err)
				}
				conversations.set(record.ID, record)
			case storage.Knowledge:
				record, err := storage.UnmarshalKnowledge(doc)
				if err != nil {
					return fmt.Errorf("%w: %w", core.ErrIO, err)
				}
				knowledge.set(record.Key, record)
			case storage.Items:
				item, err := storage.UnmarshalItem(doc)
				if err != nil {
					return fmt.Errorf("%w: %w", core.ErrIO, err)
				}
				items.set(item.ID, item)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = conversations
	s.knowledge = knowledge
	s.items = items
	clear(s.fingerprints)
	// Seed fingerprints so an unchanged store does not rewrite anything.
	for _, c := range storage.Collections {
		docs, err := s.documentsLocked(c)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrIO, err)
		}
		s.fingerprints[c] = fingerprintDocuments(docs)
	}

	s.logger.Info("loaded memory",
		"conversations", conversations.len(),
		"knowledge", knowledge.len(),
		"items", items.len())
	return nil
}

// Persist writes every collection whose content changed since the last
// successful write.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// persistLocked must be called with the write lock held. Failures leave
// the in-memory collections untouched.
func (s *Store) persistLocked(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	var errs []error
	for _, c := range storage.Collections {
		docs, err := s.documentsLocked(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fp := fingerprintDocuments(docs)
		if last, ok := s.fingerprints[c]; ok && last == fp {
			continue
		}
		if err := s.backend.WriteAll(ctx, c, docs); err != nil {
			errs = append(errs, fmt.Errorf("writing %s: %w", c, err))
			continue
		}
		s.fingerprints[c] = fp
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("failed to persist memory", "err", err)
		return fmt.Errorf("%w: %w", core.ErrIO, err)
	}
	return nil
}

func (s *Store) documentsLocked(c storage.Collection) ([]storage.Document, error) {
	var (
		docs []storage.Document
		err  error
	)
	switch c {
	case storage.Conversations:
		docs = make([]storage.Document, 0, s.conversations.len())
		s.conversations.each(func(_ string, r *core.ConversationRecord) bool {
			var doc storage.Document
			doc, err = storage.MarshalConversation(r)
			docs = append(docs, doc)
			return err == nil
		})
	case storage.Knowledge:
		docs = make([]storage.Document, 0, s.knowledge.len())
		s.knowledge.each(func(_ string, r *core.KnowledgeRecord) bool {
			var doc storage.Document
			doc, err = storage.MarshalKnowledge(r)
			docs = append(docs, doc)
			return err == nil
		})
	case storage.Items:
		docs = make([]storage.Document, 0, s.items.len())
		s.items.each(func(_ string, item *core.MemoryItem) bool {
			var doc storage.Document
			doc, err = storage.MarshalItem(item)
			docs = append(docs, doc)
			return err == nil
		})
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownCollection, c)
	}
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// fingerprintDocuments hashes keys and bodies with length framing so that
// moving bytes between documents changes the result.
func fingerprintDocuments(docs []storage.Document) core.Fingerprint {
	var buf bytes.Buffer
	for _, doc := range docs {
		fmt.Fprintf(&buf, "%d:%s%d:", len(doc.Key), doc.Key, len(doc.Body))
		buf.Write(doc.Body)
	}
	return core.FingerprintOf(buf.Bytes())
}

// Stats counts the records currently held.
func (s *Store) Stats(ctx context.Context) core.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := core.Stats{
		Conversations: s.conversations.len(),
		Knowledge:     s.knowledge.len(),
		Items:         s.items.len(),
	}
	s.conversations.each(func(_ string, r *core.ConversationRecord) bool {
		stats.Messages += len(r.Messages)
		return true
	})
	return stats
}
