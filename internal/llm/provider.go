// Package llm holds the ranking-answer provider boundary. Providers are
// explicitly constructed and injected; there is no package-level client.
package llm

import "context"

// Completion is one raw provider answer plus whatever source URLs the
// provider surfaced while answering. Sources are unfiltered here; the
// query executor deduplicates and caps them.
type Completion struct {
	Text    string
	Sources []string
}

// Provider is a single-shot request/response ranking-answer client.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the backing model for attempt logging.
	Name() string

	// Complete sends one prompt and returns the raw answer. webSearch asks
	// the provider to ground the answer with a web search when it can.
	// Transport-level failures are returned as errors; content-level
	// validity is the caller's concern.
	Complete(ctx context.Context, prompt string, webSearch bool) (Completion, error)
}
