package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/ingestion"
	"github.com/poiesic/memctx/migrate"
	"github.com/poiesic/memctx/search"
	"github.com/poiesic/memctx/storage/jsonfile"
	"github.com/urfave/cli/v2"
)

var errMissingArgument = errors.New("missing argument")

func conversationCommand() *cli.Command {
	return &cli.Command{
		Name:    "conversation",
		Aliases: []string{"conv"},
		Usage:   "Manage stored conversations",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     `Save a conversation read from stdin as {"messages": [...], "metadata": {...}}`,
				ArgsUsage: "<id>",
				Action:    conversationSaveAction,
			},
			{
				Name:      "append",
				Usage:     "Append one message to a conversation",
				ArgsUsage: "<id> <content>",
				Action:    conversationAppendAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "role",
						Usage: "Message role",
						Value: string(core.RoleUser),
					},
				},
			},
			{
				Name:      "get",
				Usage:     "Print a conversation",
				ArgsUsage: "<id>",
				Action:    conversationGetAction,
			},
			{
				Name:   "list",
				Usage:  "List conversations, most recently updated first",
				Action: conversationListAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: 1, Usage: "Page number, starting at 1"},
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "Conversations per page"},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a conversation",
				ArgsUsage: "<id>",
				Action:    conversationDeleteAction,
			},
		},
	}
}

func knowledgeCommand() *cli.Command {
	return &cli.Command{
		Name:  "knowledge",
		Usage: "Manage knowledge records",
		Subcommands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "Create or replace a knowledge record",
				ArgsUsage: "<key> <data>",
				Action:    knowledgePutAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Parse data as a JSON value"},
					&cli.StringFlag{Name: "metadata", Usage: "Metadata as a JSON object"},
				},
			},
			{
				Name:      "get",
				Usage:     "Print a knowledge record",
				ArgsUsage: "<key>",
				Action:    knowledgeGetAction,
			},
			{
				Name:   "list",
				Usage:  "List knowledge records with previews",
				Action: knowledgeListAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a knowledge record",
				ArgsUsage: "<key>",
				Action:    knowledgeDeleteAction,
			},
		},
	}
}

func itemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "Manage free-form memory items",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a memory item",
				ArgsUsage: "<content>",
				Action:    itemAddAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Item id (generated when empty)"},
					&cli.StringFlag{Name: "type", Usage: "Item type", Value: core.DefaultItemType},
					&cli.StringFlag{Name: "metadata", Usage: "Metadata as a JSON object"},
				},
			},
			{
				Name:      "update",
				Usage:     "Replace the content of a memory item",
				ArgsUsage: "<id> <content>",
				Action:    itemUpdateAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "New item type (kept when empty)"},
				},
			},
			{
				Name:      "get",
				Usage:     "Print a memory item",
				ArgsUsage: "<id>",
				Action:    itemGetAction,
			},
			{
				Name:   "list",
				Usage:  "List memory items",
				Action: itemListAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a memory item",
				ArgsUsage: "<id>",
				Action:    itemDeleteAction,
			},
		},
	}
}

// args returns the first n positional arguments or an error naming them.
func args(c *cli.Context, names ...string) ([]string, error) {
	if c.NArg() < len(names) {
		return nil, fmt.Errorf("%w: usage: %s %s", errMissingArgument, c.Command.FullName(), strings.Join(names, " "))
	}
	out := make([]string, len(names))
	for i := range names {
		out[i] = c.Args().Get(i)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseMetadata(s string) (core.Metadata, error) {
	if s == "" {
		return nil, nil
	}
	var m core.Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("metadata must be a JSON object: %w", err)
	}
	return m, nil
}

func conversationSaveAction(c *cli.Context) error {
	a, err := args(c, "<id>")
	if err != nil {
		return err
	}
	var body struct {
		Messages []core.Message `json:"messages"`
		Metadata core.Metadata  `json:"metadata"`
	}
	if err := json.NewDecoder(c.App.Reader).Decode(&body); err != nil {
		return fmt.Errorf("failed to read conversation from stdin: %w", err)
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.Store().UpsertConversation(c.Context, a[0], body.Messages, body.Metadata)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, map[string]string{"id": id})
}

func conversationAppendAction(c *cli.Context) error {
	a, err := args(c, "<id>", "<content>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Store().AppendMessage(c.Context, a[0], core.Role(c.String("role")), a[1])
}

func conversationGetAction(c *cli.Context) error {
	a, err := args(c, "<id>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	conv, err := db.Store().GetConversation(c.Context, a[0])
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, conv)
}

func conversationListAction(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	page, err := db.Store().ListConversations(c.Context, c.Int("page"), c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, page)
}

func conversationDeleteAction(c *cli.Context) error {
	a, err := args(c, "<id>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Store().DeleteConversation(c.Context, a[0])
}

func knowledgePutAction(c *cli.Context) error {
	a, err := args(c, "<key>", "<data>")
	if err != nil {
		return err
	}
	var data any = a[1]
	if c.Bool("json") {
		if err := json.Unmarshal([]byte(a[1]), &data); err != nil {
			return fmt.Errorf("data is not valid JSON: %w", err)
		}
	}
	metadata, err := parseMetadata(c.String("metadata"))
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	key, err := db.Store().UpsertKnowledge(c.Context, a[0], data, metadata)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, map[string]string{"key": key})
}

func knowledgeGetAction(c *cli.Context) error {
	a, err := args(c, "<key>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	record, err := db.Store().GetKnowledge(c.Context, a[0])
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, record)
}

func knowledgeListAction(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return printJSON(c.App.Writer, db.Store().ListKnowledge(c.Context))
}

func knowledgeDeleteAction(c *cli.Context) error {
	a, err := args(c, "<key>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Store().DeleteKnowledge(c.Context, a[0])
}

func itemAddAction(c *cli.Context) error {
	a, err := args(c, "<content>")
	if err != nil {
		return err
	}
	metadata, err := parseMetadata(c.String("metadata"))
	if err != nil {
		return err
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	item, err := db.Store().CreateItem(c.Context, &core.MemoryItem{
		ID:       c.String("id"),
		Content:  a[0],
		Type:     c.String("type"),
		Metadata: metadata,
	})
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, item)
}

func itemUpdateAction(c *cli.Context) error {
	a, err := args(c, "<id>", "<content>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	item, err := db.Store().UpdateItem(c.Context, a[0], a[1], c.String("type"), nil)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, item)
}

func itemGetAction(c *cli.Context) error {
	a, err := args(c, "<id>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	item, err := db.Store().GetItem(c.Context, a[0])
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, item)
}

func itemListAction(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return printJSON(c.App.Writer, db.Store().ListItems(c.Context))
}

func itemDeleteAction(c *cli.Context) error {
	a, err := args(c, "<id>")
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Store().DeleteItem(c.Context, a[0])
}

func searchAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	hits, err := db.Ranker().Search(c.Context, query)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, hits)
}

func rankAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	maxResults, err := search.ParseMaxResults(c.String("max-results"))
	if err != nil {
		return err
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.Ranker().Rank(c.Context, query, maxResults)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, result)
}

func contextAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	maxItems := db.Assembler().MaxItems()
	if c.IsSet("max-items") {
		maxItems = c.Int("max-items")
	}
	block, err := db.Assembler().BuildContext(c.Context, query, maxItems)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(c.App.Writer, block)
	}
	_, err = fmt.Fprintln(c.App.Writer, block.Prompt)
	return err
}

func enhanceAction(c *cli.Context) error {
	original := strings.Join(c.Args().Slice(), " ")
	if original == "" {
		return fmt.Errorf("%w: usage: %s <prompt>", errMissingArgument, c.Command.FullName())
	}
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = fmt.Fprintln(c.App.Writer, db.Assembler().EnhancePrompt(c.Context, original))
	return err
}

// captureAction reads one ingestion.Batch per line. Complete exchanges still
// buffered at end of input are written; incomplete ones are dropped.
func captureAction(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []ingestion.Option
	if d := c.Duration("idle-timeout"); d > 0 {
		opts = append(opts, ingestion.WithIdleTimeout(d))
	}
	capture, err := db.NewCapture(opts...)
	if err != nil {
		return err
	}
	defer capture.Release()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	go capture.Run(ctx)

	scanner := bufio.NewScanner(c.App.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lines := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines++
		var batch ingestion.Batch
		if err := json.Unmarshal([]byte(line), &batch); err != nil {
			return fmt.Errorf("line %d: invalid batch: %w", lines, err)
		}
		capture.Observe(ctx, batch)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	flushed := capture.FlushReady(ctx)
	dropped := capture.Pending()
	capture.Wait()
	fmt.Fprintf(c.App.ErrWriter, "Read %d batches, flushed %d at end of input, dropped %d incomplete\n", lines, flushed, dropped)
	return nil
}

func importAction(c *cli.Context) error {
	a, err := args(c, "<dir>")
	if err != nil {
		return err
	}
	if _, err := os.Stat(a[0]); err != nil {
		return fmt.Errorf("cannot read legacy directory: %w", err)
	}

	importConfig := &migrate.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Overwrite:      c.Bool("overwrite"),
	}
	if importConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if importConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if importConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	source, err := jsonfile.New(a[0])
	if err != nil {
		return err
	}
	defer source.Close()

	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(c.App.ErrWriter, "Source: %s\n", a[0])
	fmt.Fprintf(c.App.ErrWriter, "Target: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Driver)
	fmt.Fprintln(c.App.ErrWriter)

	importer, err := db.NewImporter(source, importConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}
	summary, err := importer.Run(c.Context)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return printJSON(c.App.Writer, summary)
}

func statsAction(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return printJSON(c.App.Writer, db.Store().Stats(c.Context))
}
