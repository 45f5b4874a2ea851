package search

import (
	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/index"
)

// RankMonitor provides hooks to observe the ranking process.
// Implement this interface to track intermediate steps and results of Rank.
type RankMonitor interface {
	Start(query string, maxResults int)
	AfterScoring(scored []index.Result)
	AfterKnowledgeMatch(keys []string)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of RankMonitor
type noopMonitor struct{}

var _ RankMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)          {}
func (n *noopMonitor) AfterScoring(_ []index.Result)  {}
func (n *noopMonitor) AfterKnowledgeMatch(_ []string) {}
func (n *noopMonitor) Finish(_ *Result)               {}

// LogMonitor reports every stage to a logger at debug level.
type LogMonitor struct {
	Logger interface {
		Debug(msg string, args ...any)
	}
}

var _ RankMonitor = (*LogMonitor)(nil)

func (m *LogMonitor) Start(query string, maxResults int) {
	m.Logger.Debug("rank started", "query", query, "max_results", maxResults)
}

func (m *LogMonitor) AfterScoring(scored []index.Result) {
	m.Logger.Debug("conversations scored", "matches", len(scored))
}

func (m *LogMonitor) AfterKnowledgeMatch(keys []string) {
	m.Logger.Debug("knowledge matched", "keys", keys)
}

func (m *LogMonitor) Finish(result *Result) {
	m.Logger.Debug("rank finished",
		"conversations", conversationIDs(result.Conversations),
		"knowledge", len(result.Knowledge))
}

func conversationIDs(records []*core.ConversationRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
