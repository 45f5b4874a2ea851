package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/memctx"
	"github.com/poiesic/memctx/config"
	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/ingestion"
)

// exchange is one question and its answer.
type exchange struct {
	question string
	answer   string
}

var exchanges = []exchange{
	{"How do promises work in JavaScript?", "A promise stands for a value that arrives later. Chain then() for results and catch() for failures."},
	{"What does async/await add on top of promises?", "await pauses an async function until a promise settles, so promise chains read like sequential code."},
	{"How should I structure a Go service?", "Keep main small, put domain packages under internal/, and pass dependencies in through constructors."},
	{"When do I need a mutex in Go?", "Whenever two goroutines touch the same memory and at least one of them writes."},
	{"What is the difference between a slice and an array?", "An array has a fixed length that is part of its type; a slice is a view onto an array with a length and capacity."},
	{"How do I roll back a failed database migration?", "Run the down migration for the failed version, fix the script, and apply it again."},
	{"Why is my Docker image so large?", "Use a multi-stage build and copy only the compiled binary into a slim final image."},
	{"What does TF-IDF measure?", "How often a term appears in one document, discounted by how many documents contain it."},
	{"How do I cancel a long running request in Go?", "Derive a context with a deadline or cancel function and check ctx.Done() in the work loop."},
	{"What is a good commit message?", "A short summary line in the imperative, a blank line, then the why in a few wrapped sentences."},
}

var (
	seedFileName = flag.String("src", "", "file of seed exchanges, one \"question<TAB>answer\" per line")
	dbPath       = flag.String("db", "./memory", "memory directory")
	driver       = flag.String("storage", config.DriverJSON, "storage driver: badger, json or memory")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// exchangesFromFile returns an iterator over tab separated exchanges in a file.
// Lines without a tab are skipped.
func exchangesFromFile(filename string) (iter.Seq[exchange], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(exchange) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			question, answer, ok := strings.Cut(scanner.Text(), "\t")
			if !ok {
				continue
			}
			if !yield(exchange{question: question, answer: answer}) {
				return
			}
		}
	}, nil
}

// exchangesFromSlice returns an iterator over a slice of exchanges.
func exchangesFromSlice(list []exchange) iter.Seq[exchange] {
	return func(yield func(exchange) bool) {
		for _, e := range list {
			if !yield(e) {
				return
			}
		}
	}
}

// seed replays each exchange as a request batch followed by a response
// batch, the way a proxy would observe it.
func seed(ctx context.Context, capture *ingestion.Capture, source iter.Seq[exchange]) int {
	n := 0
	for e := range source {
		n++
		id := fmt.Sprintf("seed-%03d", n)
		capture.Observe(ctx, ingestion.Batch{
			ConversationID: id,
			Kind:           ingestion.Request,
			Messages:       []core.Message{{Role: core.RoleUser, Content: e.question}},
			Metadata:       core.Metadata{"source": "seeder"},
		})
		capture.Observe(ctx, ingestion.Batch{
			ConversationID: id,
			Kind:           ingestion.Response,
			Messages:       []core.Message{{Role: core.RoleAssistant, Content: e.answer}},
		})
	}
	return n
}

func main() {
	ctx := context.Background()

	db, err := memctx.NewDatabase(ctx, *dbPath, memctx.WithDriver(*driver))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	capture, err := db.NewCapture()
	if err != nil {
		panic(err)
	}
	defer capture.Release()

	// Determine source of seed data
	var source iter.Seq[exchange]
	if seedFileName != nil && *seedFileName != "" {
		source, err = exchangesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = exchangesFromSlice(exchanges)
	}

	n := seed(ctx, capture, source)
	capture.Wait()
	slog.Info("seeded memory", "exchanges", n, "stats", db.Store().Stats(ctx))
}
