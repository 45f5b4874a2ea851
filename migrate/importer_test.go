package migrate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/storage/badger"
	"github.com/poiesic/memctx/storage/jsonfile"
	"github.com/poiesic/memctx/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyConversations = `{
  "conv-1": {
    "id": "conv-1",
    "messages": [
      {"role": "user", "content": "How do promises work?"},
      {"role": "assistant", "content": "They stand in for a later value."}
    ],
    "metadata": {"title": "promises"},
    "lastUpdated": "2024-03-01T10:00:00.000Z"
  },
  "broken": "not a conversation"
}`

const legacyKnowledge = `{
  "deploy-notes": {
    "data": "Run the migration before restarting the workers.",
    "metadata": {"source": "ops"},
    "lastUpdated": "2024-03-01T10:00:00.000Z"
  },
  "api-shape": {
    "data": {"endpoint": "/v1/items"},
    "metadata": {},
    "lastUpdated": "2024-03-02T11:30:00.000Z"
  }
}`

const legacyItems = `{
  "mem-1": {
    "id": "mem-1",
    "content": "Prefers tabs",
    "type": "preference",
    "metadata": {},
    "createdAt": "2024-01-01T00:00:00.000Z",
    "lastUpdatedAt": "2024-01-01T00:00:00.000Z"
  }
}`

func writeLegacyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conversations.json"), []byte(legacyConversations), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "knowledge.json"), []byte(legacyKnowledge), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.json"), []byte(legacyItems), 0644))
	return dir
}

func newTargetStore(t *testing.T) *store.Store {
	t.Helper()
	backend, err := badger.NewMemoryBackend()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	s, err := store.New(backend)
	require.NoError(t, err)
	return s
}

// flakyTarget fails the first failures calls to Persist.
type flakyTarget struct {
	*store.Store
	mu       sync.Mutex
	failures int
	persists int
}

func (f *flakyTarget) Persist(ctx context.Context) error {
	f.mu.Lock()
	f.persists++
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("disk busy")
	}
	f.mu.Unlock()
	return f.Store.Persist(ctx)
}

func TestNewImporter_RequiresSourceAndTarget(t *testing.T) {
	source, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)

	_, err = NewImporter(nil, newTargetStore(t), nil, nil, nil)
	assert.ErrorIs(t, err, ErrSourceRequired)
	_, err = NewImporter(source, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrTargetRequired)
}

func TestImporter_ImportsLegacyDirectory(t *testing.T) {
	source, err := jsonfile.New(writeLegacyDir(t))
	require.NoError(t, err)
	target := newTargetStore(t)
	ctx := context.Background()

	var progress bytes.Buffer
	im, err := NewImporter(source, target, &Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 1}, &progress, nil)
	require.NoError(t, err)

	summary, err := im.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Imported)
	assert.Equal(t, 1, summary.Corrupt)
	assert.Equal(t, 1, summary.Conversations)
	assert.Equal(t, 2, summary.Knowledge)
	assert.Equal(t, 1, summary.Items)

	conv, err := target.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), conv.LastUpdated)

	// Legacy knowledge bodies carry no key.
	k, err := target.GetKnowledge(ctx, "api-shape")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"endpoint": "/v1/items"}, k.Data)

	item, err := target.GetItem(ctx, "mem-1")
	require.NoError(t, err)
	assert.Equal(t, "preference", item.Type)

	assert.Contains(t, progress.String(), "4/4")
	assert.Contains(t, progress.String(), "Import complete")
}

func TestImporter_SecondRunSkips(t *testing.T) {
	source, err := jsonfile.New(writeLegacyDir(t))
	require.NoError(t, err)
	target := newTargetStore(t)
	ctx := context.Background()

	im, err := NewImporter(source, target, nil, nil, nil)
	require.NoError(t, err)
	_, err = im.Run(ctx)
	require.NoError(t, err)

	summary, err := im.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 4, summary.Skipped)
	assert.Equal(t, core.Stats{Conversations: 1, Knowledge: 2, Items: 1, Messages: 2}, target.Stats(ctx))
}

func TestImporter_RetriesPersist(t *testing.T) {
	source, err := jsonfile.New(writeLegacyDir(t))
	require.NoError(t, err)
	target := &flakyTarget{Store: newTargetStore(t), failures: 2}

	im, err := NewImporter(source, target, &Config{BatchSize: 100, MaxRetries: 3, RetryDelay: time.Millisecond}, nil, nil)
	require.NoError(t, err)

	summary, err := im.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Imported)
	assert.Equal(t, 3, target.persists)
}

func TestImporter_GivesUpAfterRetries(t *testing.T) {
	source, err := jsonfile.New(writeLegacyDir(t))
	require.NoError(t, err)
	target := &flakyTarget{Store: newTargetStore(t), failures: 10}

	im, err := NewImporter(source, target, &Config{BatchSize: 100, MaxRetries: 2, RetryDelay: time.Millisecond}, nil, nil)
	require.NoError(t, err)

	_, err = im.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk busy")
	assert.Equal(t, 2, target.persists)
}

func TestImporter_EmptySource(t *testing.T) {
	source, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)
	var progress bytes.Buffer

	im, err := NewImporter(source, newTargetStore(t), nil, &progress, nil)
	require.NoError(t, err)

	summary, err := im.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Imported)
	assert.Contains(t, progress.String(), "No records found")
}
