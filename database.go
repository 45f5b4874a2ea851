// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/memctx/ai"
	"github.com/poiesic/memctx/ai/openai"
	"github.com/poiesic/memctx/config"
	"github.com/poiesic/memctx/ingestion"
	"github.com/poiesic/memctx/migrate"
	"github.com/poiesic/memctx/prompt"
	"github.com/poiesic/memctx/search"
	"github.com/poiesic/memctx/storage"
	"github.com/poiesic/memctx/storage/badger"
	"github.com/poiesic/memctx/storage/jsonfile"
	"github.com/poiesic/memctx/store"
)

// Database wires a durable backend to the memory store and the components
// that read and write it.
type Database struct {
	backend   storage.Storage
	store     *store.Store
	ranker    *search.Ranker
	assembler *prompt.Assembler
	provider  ai.Provider
	capture   captureDefaults
	logger    *slog.Logger
}

type captureDefaults struct {
	idleTimeout      time.Duration
	sweepInterval    time.Duration
	extractThreshold int
	poolSize         int
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	driver   string
	backend  storage.Storage
	aiConfig *ai.Config
	logger   *slog.Logger
	maxItems int
	maxChars int
	capture  captureDefaults
}

// WithDriver selects the storage driver: config.DriverBadger (default),
// config.DriverJSON or config.DriverMemory.
func WithDriver(driver string) DatabaseOption {
	return func(o *databaseOptions) {
		o.driver = driver
	}
}

// WithStorage uses an already opened backend instead of opening one.
// The database closes it on Close.
func WithStorage(backend storage.Storage) DatabaseOption {
	return func(o *databaseOptions) {
		o.backend = backend
	}
}

// WithAIConfig enables summaries of extracted knowledge through an
// OpenAI-compatible model.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithContextLimits sets the default item count of assembled context and the
// character budget of the whole rendered block, header included. Items that
// would overflow the budget are left out. Zero keeps the assembler defaults.
func WithContextLimits(maxItems, maxChars int) DatabaseOption {
	return func(o *databaseOptions) {
		o.maxItems = maxItems
		o.maxChars = maxChars
	}
}

// WithConfig applies an application config file.
func WithConfig(cfg *config.AppConfig) DatabaseOption {
	return func(o *databaseOptions) {
		o.driver = cfg.Storage.Driver
		o.maxItems = cfg.Context.MaxItems
		o.maxChars = cfg.Context.MaxChars
		o.capture = captureDefaults{
			idleTimeout:      cfg.Capture.IdleTimeout,
			sweepInterval:    cfg.Capture.SweepInterval,
			extractThreshold: cfg.Capture.ExtractThreshold,
			poolSize:         cfg.Capture.PoolSize,
		}
		if cfg.AI.Enabled {
			o.aiConfig = ai.NewConfig(ai.WithHost(cfg.AI.Host), ai.WithModel(cfg.AI.Model))
		}
	}
}

// OpenBackend opens the storage driver at path.
func OpenBackend(driver, path string, logger *slog.Logger) (storage.Storage, error) {
	switch driver {
	case "", config.DriverBadger:
		return badger.NewStorage(path)
	case config.DriverJSON:
		return jsonfile.New(path, jsonfile.WithLogger(logger))
	case config.DriverMemory:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}

// NewDatabase opens the backend at filePath, loads the stored memory and
// builds the ranker and assembler on top of it.
func NewDatabase(ctx context.Context, filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	backend := options.backend
	if backend == nil {
		var err error
		backend, err = OpenBackend(options.driver, filePath, logger)
		if err != nil {
			return nil, err
		}
	}

	db := &Database{
		backend: backend,
		capture: options.capture,
		logger:  logger,
	}

	var err error
	db.store, err = store.New(backend, store.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, err
	}
	if err = db.store.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.ranker, err = search.NewRanker(db.store, search.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, err
	}

	assemblerOpts := []prompt.Option{prompt.WithLogger(logger)}
	if options.maxItems > 0 {
		assemblerOpts = append(assemblerOpts, prompt.WithMaxItems(options.maxItems))
	}
	if options.maxChars > 0 {
		assemblerOpts = append(assemblerOpts, prompt.WithMaxChars(options.maxChars))
	}
	db.assembler, err = prompt.NewAssembler(db.ranker, assemblerOpts...)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Create AI provider only when summaries are wanted
	if options.aiConfig != nil {
		db.provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close releases the ranker cache, the AI provider and the backend.
func (db *Database) Close() error {
	var errs []error
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if db.ranker != nil {
		db.ranker.Close()
	}
	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (db *Database) Store() *store.Store {
	return db.store
}

func (db *Database) Ranker() *search.Ranker {
	return db.ranker
}

func (db *Database) Assembler() *prompt.Assembler {
	return db.assembler
}

// NewCapture creates a capture policy writing to the store. Settings from
// the config come first so opts can override them; the summarizer is
// attached when an AI provider is configured. Call Release when done.
func (db *Database) NewCapture(opts ...ingestion.Option) (*ingestion.Capture, error) {
	base := []ingestion.Option{ingestion.WithLogger(db.logger)}
	if db.capture.idleTimeout > 0 {
		base = append(base, ingestion.WithIdleTimeout(db.capture.idleTimeout))
	}
	if db.capture.sweepInterval > 0 {
		base = append(base, ingestion.WithSweepInterval(db.capture.sweepInterval))
	}
	if db.capture.extractThreshold > 0 {
		base = append(base, ingestion.WithExtractThreshold(db.capture.extractThreshold))
	}
	if db.capture.poolSize > 0 {
		base = append(base, ingestion.WithPoolSize(db.capture.poolSize))
	}
	if db.provider != nil {
		base = append(base, ingestion.WithSummarizer(db.provider.Summarizer()))
	}
	return ingestion.NewCapture(db.store, append(base, opts...)...)
}

// NewImporter creates an importer copying source into this database.
func (db *Database) NewImporter(source storage.Storage, cfg *migrate.Config, progress io.Writer) (*migrate.Importer, error) {
	return migrate.NewImporter(source, db.store, cfg, progress, db.logger)
}
