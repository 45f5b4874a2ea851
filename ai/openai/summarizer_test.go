package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/poiesic/memctx/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel answers GenerateContent with queued responses.
type scriptedModel struct {
	responses []*llms.ContentResponse
	err       error
	calls     int
	messages  []llms.MessageContent
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func answer(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func newTestSummarizer(model llms.Model, maxChars int) *Summarizer {
	return &Summarizer{client: model, maxChars: maxChars, logger: slog.Default()}
}

func TestSummarize(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{answer("  \"Explains   how to\nrotate badger logs.\"  ")}}
	s := newTestSummarizer(model, 100)

	got, err := s.Summarize(context.Background(), "long text about log rotation")
	require.NoError(t, err)
	assert.Equal(t, "Explains how to rotate badger logs.", got)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
}

func TestSummarize_RetriesEmptyAnswers(t *testing.T) {
	model := &scriptedModel{responses: []*llms.ContentResponse{
		{},
		answer("   "),
		answer("Third time lucky."),
	}}
	s := newTestSummarizer(model, 100)

	got, err := s.Summarize(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Third time lucky.", got)
	assert.Equal(t, 3, model.calls)
}

func TestSummarize_GivesUp(t *testing.T) {
	model := &scriptedModel{}
	s := newTestSummarizer(model, 100)

	_, err := s.Summarize(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmptySummary)
	assert.Equal(t, 3, model.calls)
}

func TestSummarize_ModelError(t *testing.T) {
	model := &scriptedModel{err: errors.New("connection refused")}
	s := newTestSummarizer(model, 100)

	_, err := s.Summarize(context.Background(), "text")
	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 1, model.calls)
}

func TestCleanSummary(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		maxChars int
		want     string
	}{
		{"plain", "A summary.", 100, "A summary."},
		{"fenced", "```text\nFenced summary\n```", 100, "Fenced summary"},
		{"quoted", "'Quoted'", 100, "Quoted"},
		{"truncated", strings.Repeat("ä", 30), 10, strings.Repeat("ä", 10)},
		{"blank", " \n\t ", 100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanSummary(tt.in, tt.maxChars))
		})
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(&ai.Config{})
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
	require.NoError(t, err)
	defer provider.Close()
	assert.NotNil(t, provider.Summarizer())
}

func TestBuildSystemPrompt(t *testing.T) {
	assert.Contains(t, buildSystemPrompt(80), "at most 80 characters")
}
