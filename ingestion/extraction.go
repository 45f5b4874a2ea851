package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/poiesic/memctx/ai"
	"github.com/poiesic/memctx/core"
)

const (
	// ExtractedKeyPrefix starts the key of every automatically extracted record.
	ExtractedKeyPrefix = "auto-extracted"

	// fallbackSummaryLength is how many characters of the answer a summary
	// keeps when no summarizer is available.
	fallbackSummaryLength = 100

	summarizeTimeout = 30 * time.Second
)

// knowledgeExtractor stores long assistant answers as knowledge records.
type knowledgeExtractor struct {
	writer     Writer
	summarizer ai.Summarizer
	threshold  int
	now        func() time.Time
	seq        atomic.Uint64
	logger     *slog.Logger
}

var _ processor = (*knowledgeExtractor)(nil)

func newKnowledgeExtractor(writer Writer, summarizer ai.Summarizer, threshold int, now func() time.Time, logger *slog.Logger) *knowledgeExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &knowledgeExtractor{
		writer:     writer,
		summarizer: summarizer,
		threshold:  threshold,
		now:        now,
		logger:     logger.With("processor", "knowledge"),
	}
}

// eligible reports whether a message is long enough to keep as knowledge.
func (e *knowledgeExtractor) eligible(m core.Message) bool {
	return m.Role == core.RoleAssistant && utf8.RuneCountInString(m.Content) > e.threshold
}

func (e *knowledgeExtractor) wants(messages []core.Message) bool {
	for _, m := range messages {
		if e.eligible(m) {
			return true
		}
	}
	return false
}

// process upserts one knowledge record per eligible message.
func (e *knowledgeExtractor) process(ctx context.Context, id string, messages []core.Message) error {
	for _, m := range messages {
		if !e.eligible(m) {
			continue
		}
		now := e.now().UTC()
		key := fmt.Sprintf("%s-%d-%d", ExtractedKeyPrefix, now.UnixMilli(), e.seq.Add(1))
		metadata := core.Metadata{
			"source":        id,
			"autoExtracted": true,
			"summary":       e.summarize(ctx, m.Content),
			"timestamp":     now.Format(time.RFC3339),
		}
		if _, err := e.writer.UpsertKnowledge(ctx, key, m.Content, metadata); err != nil {
			return fmt.Errorf("storing %s: %w", key, err)
		}
		e.logger.Info("extracted knowledge", "key", key, "source", id)
	}
	return nil
}

// summarize asks the summarizer for a summary and falls back to the start
// of the text.
func (e *knowledgeExtractor) summarize(ctx context.Context, text string) string {
	if e.summarizer != nil {
		ctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
		defer cancel()
		summary, err := e.summarizer.Summarize(ctx, text)
		if err == nil && summary != "" {
			return summary
		}
		e.logger.Warn("summarizer failed, truncating instead", "err", err)
	}
	return fallbackSummary(text)
}

// fallbackSummary keeps the first characters of text with runs of
// whitespace collapsed, followed by an ellipsis.
func fallbackSummary(text string) string {
	head := core.Truncate(text, fallbackSummaryLength)
	return strings.Join(strings.Fields(head), " ") + "..."
}
