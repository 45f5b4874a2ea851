package ai

import "context"

type Summarizer interface {
	// Summarize returns a short single-line description of text.
	// Returns an error if the model fails or produces no summary.
	Summarize(ctx context.Context, text string) (string, error)
}

type Provider interface {
	// Summarizer returns the summarization service.
	// The returned Summarizer is safe for concurrent use.
	Summarizer() Summarizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
