package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/memctx/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A knowledge file in the legacy layout: no key field inside the body.
const legacyKnowledge = `{
  "deploy-notes": {
    "data": "Run the migration before restarting the workers.",
    "metadata": {"source": "ops"},
    "lastUpdated": "2024-03-01T10:00:00.000Z"
  },
  "api-shape": {
    "data": {"endpoint": "/v1/items", "methods": ["GET", "POST"]},
    "metadata": {},
    "lastUpdated": "2024-03-02T11:30:00.000Z"
  }
}`

func TestReadAll_MissingFile(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	docs, err := s.ReadAll(context.Background(), storage.Conversations)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestReadAll_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.json"), []byte("  \n"), 0644))
	s, err := New(dir)
	require.NoError(t, err)

	docs, err := s.ReadAll(context.Background(), storage.Items)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestReadAll_LegacyLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "knowledge.json"), []byte(legacyKnowledge), 0644))
	s, err := New(dir)
	require.NoError(t, err)

	docs, err := s.ReadAll(context.Background(), storage.Knowledge)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "deploy-notes", docs[0].Key)
	assert.Equal(t, "api-shape", docs[1].Key)

	record, err := storage.UnmarshalKnowledge(docs[1])
	require.NoError(t, err)
	assert.Equal(t, "api-shape", record.Key)
	data, ok := record.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/v1/items", data["endpoint"])
}

func TestReadAll_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"array", `[1, 2]`},
		{"truncated", `{"a": {"x": 1}`},
		{"trailing", `{"a": 1} {"b": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "conversations.json"), []byte(tt.content), 0644))
			s, err := New(dir)
			require.NoError(t, err)

			_, err = s.ReadAll(context.Background(), storage.Conversations)
			assert.ErrorIs(t, err, storage.ErrCorruptDocument)
		})
	}
}

func TestWriteAll_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	docs := []storage.Document{
		{Key: "zeta", Body: []byte(`{"id":"zeta","messages":[]}`)},
		{Key: "alpha", Body: []byte(`{"id":"alpha","messages":[{"role":"user","content":"hi"}]}`)},
		{Key: "mid \"quoted\"", Body: []byte(`{"id":"mid"}`)},
	}
	require.NoError(t, s.WriteAll(ctx, storage.Conversations, docs))

	got, err := s.ReadAll(ctx, storage.Conversations)
	require.NoError(t, err)
	require.Len(t, got, len(docs))
	for i := range docs {
		assert.Equal(t, docs[i].Key, got[i].Key)
		assert.JSONEq(t, string(docs[i].Body), string(got[i].Body))
	}

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "conversations.json", entries[0].Name())
}

func TestWriteAll_Indented(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	docs := []storage.Document{{Key: "k", Body: []byte(`{"data":"v"}`)}}
	require.NoError(t, s.WriteAll(context.Background(), storage.Knowledge, docs))

	raw, err := os.ReadFile(s.Path(storage.Knowledge))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"k\": {\n    \"data\": \"v\"\n  }\n}\n", string(raw))
}

func TestWriteAll_InvalidBody(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	err = s.WriteAll(context.Background(), storage.Items, []storage.Document{{Key: "x", Body: []byte("{not json")}})
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestWriteAll_Empty(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.WriteAll(ctx, storage.Items, nil))
	raw, err := os.ReadFile(s.Path(storage.Items))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(raw))

	docs, err := s.ReadAll(ctx, storage.Items)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestClose(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.ReadAll(context.Background(), storage.Items)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	err = s.WriteAll(context.Background(), storage.Items, nil)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestUnknownCollection(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.ReadAll(context.Background(), storage.Collection("other"))
	assert.ErrorIs(t, err, storage.ErrUnknownCollection)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
