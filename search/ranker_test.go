package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/index"
	"github.com/poiesic/memctx/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(nil)
	require.NoError(t, err)
	return s
}

func newTestRanker(t *testing.T, source Source, opts ...Option) *Ranker {
	t.Helper()
	r, err := NewRanker(source, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func exchange(question, answer string) []core.Message {
	return []core.Message{
		{Role: core.RoleUser, Content: question},
		{Role: core.RoleAssistant, Content: answer},
	}
}

func addConversation(t *testing.T, s *store.Store, id, question, answer string) {
	t.Helper()
	_, err := s.UpsertConversation(context.Background(), id, exchange(question, answer), nil)
	require.NoError(t, err)
}

func addKnowledge(t *testing.T, s *store.Store, key string, data any) {
	t.Helper()
	_, err := s.UpsertKnowledge(context.Background(), key, data, nil)
	require.NoError(t, err)
}

func ids(records []*core.ConversationRecord) []string {
	return conversationIDs(records)
}

func keys(records []*core.KnowledgeRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	return out
}

func TestNewRanker(t *testing.T) {
	s := newTestStore(t)

	t.Run("valid configuration", func(t *testing.T) {
		r, err := NewRanker(s)
		require.NoError(t, err)
		defer r.Close()
		assert.NotNil(t, r)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		r, err := NewRanker(s, WithLogger(nil))
		require.NoError(t, err)
		defer r.Close()
		assert.Equal(t, slog.Default(), r.logger)
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := NewRanker(nil)
		assert.Equal(t, ErrSourceRequired, err)
	})

	t.Run("invalid cache size", func(t *testing.T) {
		_, err := NewRanker(s, WithCacheSize(0))
		assert.Error(t, err)
	})
}

func TestRank_Validation(t *testing.T) {
	r := newTestRanker(t, newTestStore(t))
	ctx := context.Background()

	_, err := r.Rank(ctx, "", 5)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = r.Rank(ctx, "   ", 5)
	assert.ErrorIs(t, err, core.ErrValidation)

	for _, n := range []int{0, -1} {
		_, err = r.Rank(ctx, "query", n)
		assert.ErrorIs(t, err, core.ErrValidation, "maxResults %d", n)
		assert.ErrorIs(t, err, ErrInvalidMaxResults, "maxResults %d", n)
	}
}

func TestRank_Promises(t *testing.T) {
	s := newTestStore(t)
	addConversation(t, s, "B", "How do I center a div?", "Use flexbox in CSS.")
	addConversation(t, s, "A", "Explain promises", "promises promises promises promises are values in the future")
	addConversation(t, s, "C", "Favourite python libraries?", "requests and numpy.")
	r := newTestRanker(t, s)

	result, err := r.Rank(context.Background(), "promises in JavaScript", 5)
	require.NoError(t, err)
	require.NotEmpty(t, result.Conversations)
	assert.Equal(t, "A", result.Conversations[0].ID)
	assert.NotContains(t, ids(result.Conversations), "C")
}

func TestRank_StableTies(t *testing.T) {
	s := newTestStore(t)
	addConversation(t, s, "first", "deploy the service", "done")
	addConversation(t, s, "unrelated", "lunch plans", "tacos")
	addConversation(t, s, "second", "deploy the service", "done")
	addConversation(t, s, "third", "deploy the service", "done")
	r := newTestRanker(t, s)

	result, err := r.Rank(context.Background(), "deploy", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids(result.Conversations))
}

func TestRank_DescendingScores(t *testing.T) {
	s := newTestStore(t)
	addConversation(t, s, "low", "cache", "nothing else")
	addConversation(t, s, "high", "cache cache cache", "cache misses")
	addConversation(t, s, "mid", "cache cache", "hits")
	addConversation(t, s, "none", "weather", "sunny")
	r := newTestRanker(t, s)

	result, err := r.Rank(context.Background(), "cache", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "mid", "low"}, ids(result.Conversations))
}

func TestRank_MaxResults(t *testing.T) {
	s := newTestStore(t)
	for i := range 8 {
		addConversation(t, s, fmt.Sprintf("conv-%d", i), "golang channels", "buffered")
		addKnowledge(t, s, fmt.Sprintf("golang-note-%d", i), "note")
	}
	addConversation(t, s, "other", "rust", "borrow checker")
	r := newTestRanker(t, s)
	ctx := context.Background()

	result, err := r.Rank(ctx, "golang", DefaultMaxResults)
	require.NoError(t, err)
	assert.Len(t, result.Conversations, DefaultMaxResults)
	assert.Len(t, result.Knowledge, DefaultMaxResults)

	result, err = r.Rank(ctx, "golang", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-0", "conv-1"}, ids(result.Conversations))
	assert.Equal(t, []string{"golang-note-0", "golang-note-1"}, keys(result.Knowledge))
}

func TestRank_KnowledgeMatching(t *testing.T) {
	s := newTestStore(t)
	addKnowledge(t, s, "Deploy-Checklist", "run migrations first")
	addKnowledge(t, s, "api", map[string]any{"endpoint": "/v1/Deploy", "auth": "token"})
	addKnowledge(t, s, "compare", "use a < b && b > c")
	addKnowledge(t, s, "unrelated", "coffee")
	r := newTestRanker(t, s)
	ctx := context.Background()

	result, err := r.Rank(ctx, "DEPLOY", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deploy-Checklist", "api"}, keys(result.Knowledge))

	result, err = r.Rank(ctx, "a < b &&", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"compare"}, keys(result.Knowledge))

	result, err = r.Rank(ctx, `"auth":"token"`, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, keys(result.Knowledge))
}

func TestRank_NoMatches(t *testing.T) {
	s := newTestStore(t)
	addConversation(t, s, "c", "hello", "world")
	addKnowledge(t, s, "k", "value")
	r := newTestRanker(t, s)

	result, err := r.Rank(context.Background(), "zebra", 5)
	require.NoError(t, err)
	assert.NotNil(t, result.Conversations)
	assert.NotNil(t, result.Knowledge)
	assert.Empty(t, result.Conversations)
	assert.Empty(t, result.Knowledge)
}

func TestRank_CachesKnowledgeText(t *testing.T) {
	s := newTestStore(t)
	addKnowledge(t, s, "k", map[string]any{"Lang": "Go"})
	r := newTestRanker(t, s)

	_, err := r.Rank(context.Background(), "go", 5)
	require.NoError(t, err)
	r.cache.Wait()

	data := `{"Lang":"Go"}`
	cached, ok := r.cache.Get("k@" + strconv.FormatUint(uint64(core.FingerprintOf([]byte(data))), 16))
	require.True(t, ok)
	assert.Equal(t, `{"lang":"go"}`, cached)
}

func TestRank_KnowledgeUpdatedWithSameTimestamp(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := store.New(nil, store.WithClock(func() time.Time { return stamp }))
	require.NoError(t, err)
	addKnowledge(t, s, "k", map[string]any{"lang": "alpha"})
	r := newTestRanker(t, s)
	ctx := context.Background()

	result, err := r.Rank(ctx, "alpha", DefaultMaxResults)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys(result.Knowledge))
	r.cache.Wait()

	addKnowledge(t, s, "k", map[string]any{"lang": "beta"})

	result, err = r.Rank(ctx, "beta", DefaultMaxResults)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys(result.Knowledge))

	result, err = r.Rank(ctx, "alpha", DefaultMaxResults)
	require.NoError(t, err)
	assert.Empty(t, result.Knowledge)

	hits, err := r.Search(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "k", hits[0].ID)
}

func TestRank_KnowledgeOverwrittenByImport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addKnowledge(t, s, "k", map[string]any{"lang": "alpha"})
	r := newTestRanker(t, s)

	_, err := r.Rank(ctx, "alpha", DefaultMaxResults)
	require.NoError(t, err)
	r.cache.Wait()

	old, err := s.GetKnowledge(ctx, "k")
	require.NoError(t, err)
	batch := store.Batch{Knowledge: []*core.KnowledgeRecord{{
		Key:         "k",
		Data:        map[string]any{"lang": "beta"},
		LastUpdated: old.LastUpdated,
	}}}
	require.Equal(t, 1, s.Import(ctx, batch, true).Imported)

	result, err := r.Rank(ctx, "beta", DefaultMaxResults)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys(result.Knowledge))

	result, err = r.Rank(ctx, "alpha", DefaultMaxResults)
	require.NoError(t, err)
	assert.Empty(t, result.Knowledge)
}

type recordingMonitor struct {
	calls  []string
	scored []index.Result
	keys   []string
	result *Result
}

func (m *recordingMonitor) Start(query string, maxResults int) {
	m.calls = append(m.calls, fmt.Sprintf("start:%s:%d", query, maxResults))
}

func (m *recordingMonitor) AfterScoring(scored []index.Result) {
	m.calls = append(m.calls, "scoring")
	m.scored = scored
}

func (m *recordingMonitor) AfterKnowledgeMatch(keys []string) {
	m.calls = append(m.calls, "knowledge")
	m.keys = keys
}

func (m *recordingMonitor) Finish(result *Result) {
	m.calls = append(m.calls, "finish")
	m.result = result
}

func TestRank_Monitor(t *testing.T) {
	s := newTestStore(t)
	addConversation(t, s, "c1", "tracing spans", "use otel")
	addConversation(t, s, "c2", "logging", "use slog")
	addKnowledge(t, s, "tracing", "sampling at 10%")
	monitor := &recordingMonitor{}
	r := newTestRanker(t, s, WithMonitor(monitor))

	result, err := r.Rank(context.Background(), "tracing", DefaultMaxResults)
	require.NoError(t, err)

	assert.Equal(t, []string{"start:tracing:5", "scoring", "knowledge", "finish"}, monitor.calls)
	require.Len(t, monitor.scored, 1)
	assert.Equal(t, "c1", monitor.scored[0].ID)
	assert.Equal(t, []string{"tracing"}, monitor.keys)
	assert.Same(t, result, monitor.result)
}

func TestLogMonitor(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := newTestStore(t)
	addConversation(t, s, "c1", "tracing", "spans")
	r := newTestRanker(t, s, WithMonitor(&LogMonitor{Logger: logger}))

	_, err := r.Rank(context.Background(), "tracing", 1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "rank started")
	assert.Contains(t, buf.String(), "rank finished")
}

func TestParseMaxResults(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", DefaultMaxResults, false},
		{"  ", DefaultMaxResults, false},
		{"3", 3, false},
		{" 12 ", 12, false},
		{"0", 0, true},
		{"-4", 0, true},
		{"five", 0, true},
		{"2.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMaxResults(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
