package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/index"
)

// DefaultMaxResults is the result count used when none is given.
const DefaultMaxResults = 5

// Source supplies snapshots of the stored memory.
// store.Store satisfies it.
type Source interface {
	Conversations(ctx context.Context) []*core.ConversationRecord
	Knowledge(ctx context.Context) []*core.KnowledgeRecord
}

// Result is the outcome of Rank.
type Result struct {
	Conversations []*core.ConversationRecord `json:"conversations"`
	Knowledge     []*core.KnowledgeRecord    `json:"knowledge"`
}

// Ranker ranks conversations and knowledge against a query.
type Ranker struct {
	source    Source
	logger    *slog.Logger
	monitor   RankMonitor
	cacheCost int64
	// lowercase JSON of knowledge data keyed by key@fingerprint
	cache *ristretto.Cache[string, string]
}

// Option configures a Ranker.
type Option func(*Ranker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithMonitor sets the monitor called during every Rank.
func WithMonitor(monitor RankMonitor) Option {
	return func(r *Ranker) error {
		r.monitor = monitor
		return nil
	}
}

// WithCacheSize sets the byte budget of the knowledge text cache.
// Default is 16MiB.
func WithCacheSize(bytes int64) Option {
	return func(r *Ranker) error {
		if bytes <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", bytes)
		}
		r.cacheCost = bytes
		return nil
	}
}

// NewRanker creates a ranker reading from source.
// Close the ranker to release its cache.
func NewRanker(source Source, opts ...Option) (*Ranker, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}

	r := &Ranker{
		source:    source,
		logger:    slog.Default(),
		monitor:   &noopMonitor{},
		cacheCost: 16 << 20,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.monitor == nil {
		r.monitor = &noopMonitor{}
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 10 * r.cacheCost / 256,
		MaxCost:     r.cacheCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// Close releases the knowledge text cache.
func (r *Ranker) Close() {
	r.cache.Close()
}

// ParseMaxResults converts a textual result count. An empty string selects
// DefaultMaxResults.
func ParseMaxResults(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultMaxResults, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %w: %q", core.ErrValidation, ErrInvalidMaxResults, s)
	}
	return n, nil
}

// Rank returns up to maxResults conversations ordered by descending TF-IDF
// score and up to maxResults knowledge records matching the query.
// maxResults must be positive; callers without a count pass DefaultMaxResults.
func (r *Ranker) Rank(ctx context.Context, query string, maxResults int) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrEmptyQuery)
	}
	if maxResults < 1 {
		return nil, fmt.Errorf("%w: %w: %d", core.ErrValidation, ErrInvalidMaxResults, maxResults)
	}

	r.monitor.Start(query, maxResults)

	// 1. Score conversations
	conversations := r.source.Conversations(ctx)
	byID := make(map[string]*core.ConversationRecord, len(conversations))
	corpus := make([]index.Document, len(conversations))
	for i, conv := range conversations {
		corpus[i] = index.Document{ID: conv.ID, Text: conv.Text()}
		byID[conv.ID] = conv
	}
	scored := index.Score(query, corpus)
	slices.SortStableFunc(scored, func(a, b index.Result) int {
		return cmp.Compare(b.Score, a.Score)
	})
	r.monitor.AfterScoring(scored)

	result := &Result{
		Conversations: make([]*core.ConversationRecord, 0, min(maxResults, len(scored))),
		Knowledge:     []*core.KnowledgeRecord{},
	}
	for _, s := range scored[:min(maxResults, len(scored))] {
		result.Conversations = append(result.Conversations, byID[s.ID])
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Match knowledge
	needle := strings.ToLower(query)
	var keys []string
	for _, k := range r.source.Knowledge(ctx) {
		if len(result.Knowledge) == maxResults {
			break
		}
		if r.matchesKnowledge(k, needle) {
			result.Knowledge = append(result.Knowledge, k)
			keys = append(keys, k.Key)
		}
	}
	r.monitor.AfterKnowledgeMatch(keys)

	r.logger.Debug("ranked memory",
		"query", query,
		"conversations", len(result.Conversations),
		"knowledge", len(result.Knowledge))
	r.monitor.Finish(result)
	return result, nil
}

// matchesKnowledge reports whether needle, already lowercased, occurs in the
// record's key or data.
func (r *Ranker) matchesKnowledge(k *core.KnowledgeRecord, needle string) bool {
	if strings.Contains(strings.ToLower(k.Key), needle) {
		return true
	}
	text, ok := r.knowledgeText(k)
	return ok && strings.Contains(text, needle)
}

// knowledgeText returns the lowercase JSON form of the record's data.
func (r *Ranker) knowledgeText(k *core.KnowledgeRecord) (string, bool) {
	data, err := k.DataJSON()
	if err != nil {
		r.logger.Warn("knowledge data is not serializable", "key", k.Key, "err", err)
		return "", false
	}
	// Timestamps repeat across overwrites, the content digest does not.
	cacheKey := k.Key + "@" + strconv.FormatUint(uint64(core.FingerprintOf([]byte(data))), 16)
	if text, ok := r.cache.Get(cacheKey); ok {
		return text, true
	}
	text := strings.ToLower(data)
	r.cache.Set(cacheKey, text, int64(len(cacheKey)+len(text)))
	return text, true
}
