package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/memctx/core"
	"github.com/poiesic/memctx/search"
)

// Header opens every context block.
const Header = "Relevant prior knowledge:"

// enhanceNote closes an enhanced prompt.
const enhanceNote = "Note: the context above comes from earlier conversations. " +
	"Use it to give a better informed answer, but focus on answering the current question."

// ErrRankerRequired is returned when an assembler is created without a ranker.
var ErrRankerRequired = errors.New("ranker required")

// Ranker produces ranked memory for a query.
// search.Ranker satisfies it.
type Ranker interface {
	Rank(ctx context.Context, query string, maxResults int) (*search.Result, error)
}

// Sources lists the ids and keys rendered into a context block.
type Sources struct {
	Conversations []string `json:"conversations"`
	Knowledge     []string `json:"knowledge"`
}

// Context is a rendered context block.
type Context struct {
	Prompt  string  `json:"contextPrompt"`
	Sources Sources `json:"sources"`
}

// Assembler renders ranked memory.
type Assembler struct {
	ranker   Ranker
	logger   *slog.Logger
	maxChars int
	maxItems int
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// WithMaxChars caps the rendered prompt at n characters. Items that would
// push the prompt past the cap are left out. Zero means no cap.
func WithMaxChars(n int) Option {
	return func(a *Assembler) error {
		if n < 0 {
			return fmt.Errorf("max chars cannot be negative, got %d", n)
		}
		a.maxChars = n
		return nil
	}
}

// WithMaxItems sets how many items of each kind EnhancePrompt retrieves.
// Default is search.DefaultMaxResults.
func WithMaxItems(n int) Option {
	return func(a *Assembler) error {
		if n < 1 {
			return fmt.Errorf("max items must be positive, got %d", n)
		}
		a.maxItems = n
		return nil
	}
}

// NewAssembler creates an assembler over ranker.
func NewAssembler(ranker Ranker, opts ...Option) (*Assembler, error) {
	if ranker == nil {
		return nil, ErrRankerRequired
	}
	a := &Assembler{
		ranker:   ranker,
		logger:   slog.Default(),
		maxItems: search.DefaultMaxResults,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// MaxItems returns the item count EnhancePrompt retrieves.
func (a *Assembler) MaxItems() int {
	return a.maxItems
}

// BuildContext ranks memory for query and renders up to maxItems
// conversations and maxItems knowledge records. maxItems must be positive.
// When nothing matches, the prompt is the header alone and both source lists
// are empty.
func (a *Assembler) BuildContext(ctx context.Context, query string, maxItems int) (*Context, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, search.ErrEmptyQuery)
	}
	if maxItems < 1 {
		return nil, fmt.Errorf("%w: %w: %d", core.ErrValidation, search.ErrInvalidMaxResults, maxItems)
	}

	ranked, err := a.ranker.Rank(ctx, query, maxItems)
	if err != nil {
		return nil, fmt.Errorf("%w: ranking memory: %w", core.ErrUpstream, err)
	}

	out := &Context{
		Sources: Sources{
			Conversations: []string{},
			Knowledge:     []string{},
		},
	}

	var b strings.Builder
	b.WriteString(Header)
	used := utf8.RuneCountInString(Header)
	n := 0
	// fits reports whether section can be appended and appends it.
	fits := func(section string) bool {
		size := 2 + utf8.RuneCountInString(section)
		if a.maxChars > 0 && used+size > a.maxChars {
			return false
		}
		b.WriteString("\n\n")
		b.WriteString(section)
		used += size
		n++
		return true
	}

	for _, conv := range ranked.Conversations {
		if fits(renderConversation(n+1, conv)) {
			out.Sources.Conversations = append(out.Sources.Conversations, conv.ID)
		} else {
			a.logger.Debug("conversation exceeds context budget", "id", conv.ID)
		}
	}
	for _, k := range ranked.Knowledge {
		section, err := renderKnowledge(k)
		if err != nil {
			a.logger.Warn("skipping unrenderable knowledge", "key", k.Key, "err", err)
			continue
		}
		if fits(section) {
			out.Sources.Knowledge = append(out.Sources.Knowledge, k.Key)
		} else {
			a.logger.Debug("knowledge exceeds context budget", "key", k.Key)
		}
	}

	out.Prompt = b.String()
	return out, nil
}

// EnhancePrompt prefixes original with the context block built for it.
// It returns original unchanged only when the context cannot be built.
func (a *Assembler) EnhancePrompt(ctx context.Context, original string) string {
	c, err := a.BuildContext(ctx, original, a.maxItems)
	if err != nil {
		a.logger.Warn("context unavailable, using original prompt", "err", err)
		return original
	}
	return c.Prompt + "\n\nCurrent question: " + original + "\n\n" + enhanceNote
}

func renderConversation(n int, conv *core.ConversationRecord) string {
	var b strings.Builder
	b.WriteString("Conversation ")
	b.WriteString(strconv.Itoa(n))
	b.WriteString(":")
	for _, m := range conv.Messages {
		b.WriteString("\n")
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func renderKnowledge(k *core.KnowledgeRecord) (string, error) {
	body, ok := k.Data.(string)
	if !ok {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(k.Data); err != nil {
			return "", err
		}
		body = strings.TrimSuffix(buf.String(), "\n")
	}
	return "Knowledge: " + k.Key + "\n" + body, nil
}
