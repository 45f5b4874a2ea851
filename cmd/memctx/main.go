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

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/memctx"
	"github.com/poiesic/memctx/config"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := newApp(os.Stdin, os.Stdout)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(in io.Reader, out io.Writer) *cli.App {
	return &cli.App{
		Name:      "memctx",
		Usage:     "Relevance-ranked memory for conversational context",
		Reader:    in,
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "memctx.yaml",
				EnvVars: []string{"MEMCTX_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the memory directory (overrides config and " + config.EnvDatabase + ")",
			},
			&cli.StringFlag{
				Name:  "storage",
				Usage: "Storage driver: badger, json or memory (overrides config and " + config.EnvStorage + ")",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			conversationCommand(),
			knowledgeCommand(),
			itemCommand(),
			{
				Name:      "search",
				Usage:     "Find conversations and knowledge containing the query text",
				ArgsUsage: "<query>",
				Action:    searchAction,
			},
			{
				Name:      "rank",
				Usage:     "Show the most relevant conversations and knowledge for a query",
				ArgsUsage: "<query>",
				Action:    rankAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "max-results",
						Usage: "Maximum results per kind",
						Value: "5",
					},
				},
			},
			{
				Name:      "context",
				Usage:     "Print the context block assembled for a query",
				ArgsUsage: "<query>",
				Action:    contextAction,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-items",
						Usage: "Maximum items of each kind to include (default: the configured count)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the prompt and its sources as JSON",
					},
				},
			},
			{
				Name:      "enhance",
				Usage:     "Prefix a prompt with relevant prior knowledge",
				ArgsUsage: "<prompt>",
				Action:    enhanceAction,
			},
			{
				Name:   "capture",
				Usage:  "Feed JSON-lines conversation batches from stdin through the capture policy",
				Action: captureAction,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "idle-timeout",
						Usage: "Idle time after which a conversation is flushed or discarded (0 uses config)",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Import a legacy memory directory of JSON files",
				ArgsUsage: "<dir>",
				Action:    importAction,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to import in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed writes",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Replace records that already exist",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Count stored records",
				Action: statsAction,
			},
		},
	}
}

// openDatabase resolves the configuration from file, environment and flags
// and opens the database it describes.
func openDatabase(c *cli.Context) (*memctx.Database, *config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("storage") {
		cfg.Storage.Driver = c.String("storage")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := memctx.NewDatabase(c.Context, cfg.Storage.Path,
		memctx.WithConfig(cfg),
		memctx.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
