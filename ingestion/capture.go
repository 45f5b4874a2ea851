package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/memctx/ai"
	"github.com/poiesic/memctx/core"
)

// Defaults for Capture.
const (
	DefaultIdleTimeout      = 5 * time.Minute
	DefaultSweepInterval    = time.Minute
	DefaultExtractThreshold = 500
	DefaultReleaseTimeout   = 30 * time.Second
)

// IDPrefix prefixes conversation ids generated for batches without one.
const IDPrefix = "capture"

// Kind tells whether a batch went to the model or came back from it.
type Kind string

const (
	Request  Kind = "request"
	Response Kind = "response"
)

// Batch is a group of messages observed for one conversation.
type Batch struct {
	ConversationID string         `json:"conversationId"`
	Kind           Kind           `json:"kind"`
	Messages       []core.Message `json:"messages"`
	Metadata       core.Metadata  `json:"metadata,omitempty"`
}

// Writer is the part of the document store the capture policy writes to.
// store.Store satisfies it.
type Writer interface {
	AppendMessages(ctx context.Context, id string, messages []core.Message, metadata core.Metadata) (int, error)
	UpsertKnowledge(ctx context.Context, key string, data any, metadata core.Metadata) (string, error)
}

// buffer is the in-flight state of one conversation.
type buffer struct {
	messages     []core.Message
	metadata     core.Metadata
	hasUser      bool
	hasAssistant bool
	lastActivity time.Time

	// set when the buffer is taken for flushing
	after <-chan struct{}
	done  chan struct{}
}

// ready reports whether the buffer holds a complete exchange.
func (b *buffer) ready() bool {
	return b.hasUser && b.hasAssistant
}

func (b *buffer) add(messages []core.Message, metadata core.Metadata) {
	for _, m := range messages {
		switch m.Role {
		case core.RoleUser:
			b.hasUser = true
		case core.RoleAssistant:
			b.hasAssistant = true
		}
		b.messages = append(b.messages, m)
	}
	if len(metadata) > 0 {
		if b.metadata == nil {
			b.metadata = make(core.Metadata, len(metadata))
		}
		maps.Copy(b.metadata, metadata)
	}
}

// Capture buffers conversations and writes completed exchanges.
type Capture struct {
	writer           Writer
	summarizer       ai.Summarizer
	pool             *ants.Pool
	processors       []processor
	idleTimeout      time.Duration
	sweepInterval    time.Duration
	extractThreshold int
	releaseTimeout   time.Duration
	now              func() time.Time
	logger           *slog.Logger

	mu      sync.Mutex
	buffers map[string]*buffer
	// last flush started per conversation, closed when its write ends
	flushes map[string]chan struct{}

	inflight sync.WaitGroup
}

// Option configures a Capture.
type Option func(*Capture) error

// WithPoolSize sets the worker pool size for knowledge extraction.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Capture) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if c.pool != nil {
			c.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Capture) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithIdleTimeout sets how long a buffer may stay untouched before Sweep
// flushes or discards it. Default is DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Capture) error {
		if d <= 0 {
			return fmt.Errorf("idle timeout must be positive, got %s", d)
		}
		c.idleTimeout = d
		return nil
	}
}

// WithSweepInterval sets how often Run calls Sweep. Default is DefaultSweepInterval.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Capture) error {
		if d <= 0 {
			return fmt.Errorf("sweep interval must be positive, got %s", d)
		}
		c.sweepInterval = d
		return nil
	}
}

// WithExtractThreshold sets the length an assistant message must exceed to
// become knowledge. Zero disables extraction. Default is DefaultExtractThreshold.
func WithExtractThreshold(chars int) Option {
	return func(c *Capture) error {
		if chars < 0 {
			return fmt.Errorf("extract threshold cannot be negative, got %d", chars)
		}
		c.extractThreshold = chars
		return nil
	}
}

// WithSummarizer sets the summarizer used for extracted knowledge.
// Without one, summaries are the start of the answer.
func WithSummarizer(summarizer ai.Summarizer) Option {
	return func(c *Capture) error {
		c.summarizer = summarizer
		return nil
	}
}

// WithReleaseTimeout bounds how long Release waits for extraction in flight.
func WithReleaseTimeout(d time.Duration) Option {
	return func(c *Capture) error {
		c.releaseTimeout = d
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Capture) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		c.now = now
		return nil
	}
}

// NewCapture creates a capture policy writing to writer.
// Call Release when done.
func NewCapture(writer Writer, opts ...Option) (*Capture, error) {
	if writer == nil {
		return nil, ErrWriterRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Capture{
		writer:           writer,
		pool:             pool,
		idleTimeout:      DefaultIdleTimeout,
		sweepInterval:    DefaultSweepInterval,
		extractThreshold: DefaultExtractThreshold,
		releaseTimeout:   DefaultReleaseTimeout,
		now:              time.Now,
		logger:           slog.Default(),
		buffers:          make(map[string]*buffer),
		flushes:          make(map[string]chan struct{}),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}

	c.logger = c.logger.With("component", "capture")
	if c.extractThreshold > 0 {
		c.processors = append(c.processors,
			newKnowledgeExtractor(writer, c.summarizer, c.extractThreshold, c.now, c.logger))
	}
	return c, nil
}

// Observe feeds a batch to the policy. A response batch that completes an
// exchange is written before Observe returns. Errors are logged, not returned.
func (c *Capture) Observe(ctx context.Context, batch Batch) {
	id := batch.ConversationID
	if id == "" {
		id = core.NewID(IDPrefix)
		c.logger.Info("batch without conversation id, generated one", "id", id)
	}

	now := c.now().UTC().Round(0)
	messages := make([]core.Message, 0, len(batch.Messages))
	for _, m := range batch.Messages {
		if err := core.ValidateMessage(m.Role, m.Content); err != nil {
			c.logger.Warn("dropping invalid message", "id", id, "err", err)
			continue
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		messages = append(messages, m)
	}

	c.mu.Lock()
	buf, ok := c.buffers[id]
	if !ok {
		buf = &buffer{}
		c.buffers[id] = buf
	}
	buf.add(messages, batch.Metadata)
	buf.lastActivity = now

	flush := false
	switch batch.Kind {
	case Request:
	case Response:
		flush = buf.ready()
	default:
		c.logger.Warn("unknown batch kind, buffering only", "id", id, "kind", batch.Kind)
	}
	if flush {
		c.takeLocked(id, buf)
	}
	c.mu.Unlock()

	if flush {
		c.flush(ctx, id, buf)
	}
}

// Sweep flushes complete buffers and discards incomplete ones that have been
// idle for at least the idle timeout as of now.
func (c *Capture) Sweep(ctx context.Context, now time.Time) (flushed, discarded int) {
	type pending struct {
		id  string
		buf *buffer
	}
	var toFlush []pending

	c.mu.Lock()
	for id, buf := range c.buffers {
		if now.Sub(buf.lastActivity) < c.idleTimeout {
			continue
		}
		if buf.ready() {
			c.takeLocked(id, buf)
			toFlush = append(toFlush, pending{id, buf})
			continue
		}
		delete(c.buffers, id)
		discarded++
		c.logger.Debug("discarding incomplete conversation",
			"id", id,
			"messages", len(buf.messages),
			"idle", now.Sub(buf.lastActivity))
	}
	c.mu.Unlock()

	for _, p := range toFlush {
		if c.flush(ctx, p.id, p.buf) {
			flushed++
		}
	}
	return flushed, discarded
}

// FlushReady writes every complete buffer regardless of idle time.
// Incomplete buffers are kept.
func (c *Capture) FlushReady(ctx context.Context) int {
	c.mu.Lock()
	ready := make(map[string]*buffer)
	for id, buf := range c.buffers {
		if buf.ready() {
			c.takeLocked(id, buf)
			ready[id] = buf
		}
	}
	c.mu.Unlock()

	flushed := 0
	for id, buf := range ready {
		if c.flush(ctx, id, buf) {
			flushed++
		}
	}
	return flushed
}

// Pending returns the number of conversations currently buffered.
func (c *Capture) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// Run sweeps on every tick of the sweep interval until ctx is done.
func (c *Capture) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flushed, discarded := c.Sweep(ctx, c.now())
			if flushed > 0 || discarded > 0 {
				c.logger.Info("idle sweep", "flushed", flushed, "discarded", discarded)
			}
		}
	}
}

// takeLocked removes buf from the pending set and queues its flush behind
// any flush of the same conversation still writing. Callers hold c.mu.
func (c *Capture) takeLocked(id string, buf *buffer) {
	delete(c.buffers, id)
	buf.after = c.flushes[id]
	buf.done = make(chan struct{})
	c.flushes[id] = buf.done
}

// flush appends a buffer to its stored conversation and schedules the
// post-write processors. Flushes of one conversation are written in the
// order their buffers were taken. It reports whether the write succeeded.
func (c *Capture) flush(ctx context.Context, id string, buf *buffer) bool {
	if buf.after != nil {
		<-buf.after
	}
	previous, err := c.writer.AppendMessages(ctx, id, buf.messages, buf.metadata)
	c.mu.Lock()
	close(buf.done)
	if c.flushes[id] == buf.done {
		delete(c.flushes, id)
	}
	c.mu.Unlock()
	if err != nil {
		c.logger.Error("error saving captured conversation", "id", id, "err", err)
		return false
	}
	c.logger.Info("captured conversation",
		"id", id,
		"messages", len(buf.messages),
		"previous", previous)

	for _, p := range c.processors {
		c.submit(p, id, buf.messages)
	}
	return true
}

func (c *Capture) submit(p processor, id string, messages []core.Message) {
	if !p.wants(messages) {
		return
	}

	c.inflight.Add(1)
	err := c.pool.Submit(func() {
		defer c.inflight.Done()
		if err := p.process(context.Background(), id, messages); err != nil {
			c.logger.Error("error processing captured conversation", "id", id, "err", err)
		}
	})
	if err != nil {
		c.inflight.Done()
		c.logger.Error("error submitting captured conversation", "id", id, "err", err)
	}
}

// Wait blocks until all submitted processing has finished.
func (c *Capture) Wait() {
	c.inflight.Wait()
}

// Release waits up to the release timeout for extraction in flight and
// releases the worker pool. The capture should not be used after Release.
func (c *Capture) Release() {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.releaseTimeout):
		c.logger.Warn("knowledge extraction still running at release")
	}
	if c.pool != nil {
		c.pool.Release()
	}
}
