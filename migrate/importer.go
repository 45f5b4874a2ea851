package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/storage"
	"github.com/poiesic/memctx/store"
)

// Config holds configuration for an import.
type Config struct {
	// BatchSize is the number of records merged and persisted at a time
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each read and persist
	MaxRetries int

	// RetryDelay is the wait after the first failed attempt; it doubles
	// after each further failure, up to 30s
	RetryDelay time.Duration

	// Overwrite replaces records that already exist in the target
	Overwrite bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Target is the store an import writes into. *store.Store satisfies it.
type Target interface {
	Import(ctx context.Context, batch store.Batch, overwrite bool) store.ImportResult
	Persist(ctx context.Context) error
}

// Summary describes a finished import.
type Summary struct {
	store.ImportResult

	// Corrupt counts source documents that could not be decoded.
	Corrupt int

	Conversations int
	Knowledge     int
	Items         int
	Elapsed       time.Duration
}

// Importer copies every collection of a source storage into a target store.
type Importer struct {
	source   storage.Storage
	target   Target
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewImporter creates an importer. A nil config selects DefaultConfig and a
// nil progress writer discards progress output.
func NewImporter(source storage.Storage, target Target, config *Config, progress io.Writer, logger *slog.Logger) (*Importer, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if target == nil {
		return nil, ErrTargetRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		source:   source,
		target:   target,
		config:   config,
		progress: progress,
		logger:   logger.With("component", "importer"),
	}, nil
}

// Run reads the source and imports it batch by batch. A batch whose
// persist still fails after all retries stops the import; batches already
// persisted stay in the target.
func (im *Importer) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	var all []any
	for _, c := range storage.Collections {
		records, corrupt, err := im.read(ctx, c)
		if err != nil {
			return summary, err
		}
		summary.Corrupt += corrupt
		switch c {
		case storage.Conversations:
			summary.Conversations = len(records)
		case storage.Knowledge:
			summary.Knowledge = len(records)
		case storage.Items:
			summary.Items = len(records)
		}
		all = append(all, records...)
	}

	if len(all) == 0 {
		fmt.Fprintf(im.progress, "No records found in source (0 records)\n")
		return summary, nil
	}

	fmt.Fprintf(im.progress, "Importing %d records (batch size: %d)\n", len(all), im.config.BatchSize)

	tracker := NewProgressTracker(im.progress, len(all), im.config.ReportInterval)
	tracker.Start()

	err := forEachBatch(ctx, all, im.config.BatchSize, func(records []any) error {
		batch := toBatch(records)
		summary.Add(im.target.Import(ctx, batch, im.config.Overwrite))

		if err := im.retry(ctx, "persist batch", im.target.Persist); err != nil {
			return err
		}

		tracker.Increment(len(records))
		return nil
	})
	summary.Elapsed = tracker.Elapsed()
	if err != nil {
		fmt.Fprintln(im.progress)
		return summary, err
	}

	tracker.Finish()
	fmt.Fprintf(im.progress, "Import complete. %d imported, %d skipped, %d invalid, %d corrupt in %v\n",
		summary.Imported, summary.Skipped, summary.Invalid, summary.Corrupt, summary.Elapsed.Round(time.Millisecond))

	im.logger.Info("import finished",
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"invalid", summary.Invalid,
		"corrupt", summary.Corrupt)
	return summary, nil
}

// read loads and decodes one collection of the source. Documents that fail
// to decode are logged and counted.
func (im *Importer) read(ctx context.Context, c storage.Collection) ([]any, int, error) {
	var docs []storage.Document
	err := im.retry(ctx, "read "+string(c), func(ctx context.Context) error {
		var err error
		docs, err = im.source.ReadAll(ctx, c)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading %s: %w", core.ErrIO, c, err)
	}

	records := make([]any, 0, len(docs))
	corrupt := 0
	for _, doc := range docs {
		record, err := decode(c, doc)
		if err != nil {
			im.logger.Warn("skipping corrupt document", "collection", c, "key", doc.Key, "err", err)
			corrupt++
			continue
		}
		records = append(records, record)
	}
	return records, corrupt, nil
}

func decode(c storage.Collection, doc storage.Document) (any, error) {
	switch c {
	case storage.Conversations:
		return storage.UnmarshalConversation(doc)
	case storage.Knowledge:
		return storage.UnmarshalKnowledge(doc)
	case storage.Items:
		return storage.UnmarshalItem(doc)
	}
	return nil, fmt.Errorf("%w: %q", storage.ErrUnknownCollection, c)
}

func toBatch(records []any) store.Batch {
	var batch store.Batch
	for _, r := range records {
		switch v := r.(type) {
		case *core.ConversationRecord:
			batch.Conversations = append(batch.Conversations, v)
		case *core.KnowledgeRecord:
			batch.Knowledge = append(batch.Knowledge, v)
		case *core.MemoryItem:
			batch.Items = append(batch.Items, v)
		}
	}
	return batch
}
