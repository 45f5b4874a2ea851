package storage

import (
	"context"
)

// Collection names a group of documents persisted together.
type Collection string

const (
	// Conversations holds core.ConversationRecord documents keyed by id.
	Conversations Collection = "conversations"
	// Knowledge holds core.KnowledgeRecord documents keyed by key.
	Knowledge Collection = "knowledge"
	// Items holds core.MemoryItem documents keyed by id.
	Items Collection = "items"
)

// Collections lists every collection in persistence order.
var Collections = []Collection{Conversations, Knowledge, Items}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case Conversations, Knowledge, Items:
		return true
	}
	return false
}

// Document is one serialized record of a collection.
type Document struct {
	Key  string
	Body []byte
}

// Storage is the durable surface the document store persists to.
// Implementations must be thread-safe and support concurrent access.
type Storage interface {
	// ReadAll returns every document of a collection in the order it was
	// last written. A collection that was never written is empty, not an error.
	ReadAll(ctx context.Context, collection Collection) ([]Document, error)

	// WriteAll replaces the full contents of a collection with docs.
	// Order is preserved. Last writer wins; there is no cross-process locking.
	WriteAll(ctx context.Context, collection Collection, docs []Document) error

	// Close closes the storage backend and releases resources.
	Close() error
}
