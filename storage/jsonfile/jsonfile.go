// Package jsonfile stores each collection as a single JSON object file.
//
// The layout matches the legacy memory directory: conversations.json,
// knowledge.json and items.json, each an object mapping a record key to the
// record body. Member order is the document order.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/poiesic/memctx/storage"
)

// Storage is a storage.Storage backed by one JSON file per collection.
type Storage struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ storage.Storage = (*Storage)(nil)

// Option configures a Storage.
type Option func(*Storage) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "jsonfile")
		return nil
	}
}

// New opens the directory dir, creating it if needed.
func New(dir string, opts ...Option) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("jsonfile: directory is required")
	}
	s := &Storage{
		dir:    dir,
		logger: slog.Default().With("component", "jsonfile"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file that holds a collection.
func (s *Storage) Path(collection storage.Collection) string {
	return filepath.Join(s.dir, string(collection)+".json")
}

// ReadAll decodes the collection file member by member so that document
// order follows the file. A missing or empty file is an empty collection.
func (s *Storage) ReadAll(ctx context.Context, collection storage.Collection) ([]storage.Document, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownCollection, collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}

	data, err := os.ReadFile(s.Path(collection))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	docs, err := decodeObject(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrCorruptDocument, s.Path(collection), err)
	}
	s.logger.Debug("read collection", "collection", collection, "documents", len(docs))
	return docs, nil
}

// WriteAll rewrites the collection file. The new content goes to a
// temporary file in the same directory which is then renamed over the old one.
func (s *Storage) WriteAll(ctx context.Context, collection storage.Collection, docs []storage.Document) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %q", storage.ErrUnknownCollection, collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}

	data, err := encodeObject(ctx, docs)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(collection)+"-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.Path(collection)); err != nil {
		return err
	}
	s.logger.Debug("wrote collection", "collection", collection, "documents", len(docs))
	return nil
}

// Close marks the storage closed. Later calls fail with storage.ErrStorageClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func decodeObject(ctx context.Context, data []byte) ([]storage.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var docs []storage.Document
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected member name, got %v", tok)
		}
		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("member %q: %w", key, err)
		}
		docs = append(docs, storage.Document{Key: key, Body: []byte(body)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after object")
	}
	return docs, nil
}

// encodeObject renders docs as a two-space indented JSON object.
func encodeObject(ctx context.Context, docs []storage.Document) ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			compact.WriteByte(',')
		}
		key, err := json.Marshal(doc.Key)
		if err != nil {
			return nil, err
		}
		compact.Write(key)
		compact.WriteByte(':')
		if !json.Valid(doc.Body) {
			return nil, fmt.Errorf("%w: %s: body is not JSON", storage.ErrSerializationFailed, doc.Key)
		}
		compact.Write(doc.Body)
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
