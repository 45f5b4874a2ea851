package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/memctx/core"
)

// HitType tells which collection a Hit comes from.
type HitType string

const (
	HitConversation HitType = "conversation"
	HitKnowledge    HitType = "knowledge"
)

// Hit is one result of Search. ID holds the conversation id or the knowledge key.
type Hit struct {
	Type        HitType   `json:"type"`
	ID          string    `json:"id"`
	Preview     string    `json:"preview"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Search returns every conversation whose JSON form contains query, ignoring
// case, followed by every matching knowledge record. Conversation previews are
// the last message; knowledge previews are the start of the data.
func (r *Ranker) Search(ctx context.Context, query string) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrEmptyQuery)
	}
	needle := strings.ToLower(query)

	hits := []Hit{}
	for _, conv := range r.source.Conversations(ctx) {
		text, err := core.JSONString(conv)
		if err != nil {
			r.logger.Warn("conversation is not serializable", "id", conv.ID, "err", err)
			continue
		}
		if !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		preview := ""
		if n := len(conv.Messages); n > 0 {
			preview = conv.Messages[n-1].Content
		}
		hits = append(hits, Hit{
			Type:        HitConversation,
			ID:          conv.ID,
			Preview:     preview,
			LastUpdated: conv.LastUpdated,
		})
	}

	for _, k := range r.source.Knowledge(ctx) {
		if !r.matchesKnowledge(k, needle) {
			continue
		}
		hits = append(hits, Hit{
			Type:        HitKnowledge,
			ID:          k.Key,
			Preview:     core.Preview(k.Data),
			LastUpdated: k.LastUpdated,
		})
	}
	return hits, nil
}
