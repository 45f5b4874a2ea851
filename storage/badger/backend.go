package badger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/memctx/storage"
)

// Backend wraps a BadgerDB instance and implements storage.Storage.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ storage.Storage = (*Backend)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// NewStorage opens a BadgerDB directory as a storage.Storage.
func NewStorage(dirPath string) (storage.Storage, error) {
	return OpenBackend(dirPath, false)
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(dirPath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(dirPath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(dirPath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(dirPath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dirPath)
		}
		opts = badger.DefaultOptions(dirPath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// ReadAll returns the documents of a collection ordered by write position.
func (b *Backend) ReadAll(ctx context.Context, collection storage.Collection) ([]storage.Document, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownCollection, collection)
	}

	var docs []storage.Document
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = collectionPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			var doc storage.Document
			err := item.Value(func(val []byte) error {
				var err error
				doc, err = decodeDocument(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("%s: %w", item.Key(), err)
			}
			docs = append(docs, doc)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("read collection", "collection", collection, "documents", len(docs))
	return docs, nil
}

// WriteAll replaces a collection in a single read-write transaction.
// Existing keys under the collection prefix are deleted before the new
// documents are written at positions 0..n-1.
func (b *Backend) WriteAll(ctx context.Context, collection storage.Collection, docs []storage.Document) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %q", storage.ErrUnknownCollection, collection)
	}

	return b.WithTx(func(tx *badger.Txn) error {
		// Collect old keys first; deleting while iterating is not allowed.
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = collectionPrefix(collection)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			stale = append(stale, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		for i, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.Set(makeDocumentKey(collection, uint64(i)), encodeDocument(doc)); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		b.logger.Debug("wrote collection", "collection", collection, "documents", len(docs), "replaced", len(stale))
		return nil
	}, true)
}
