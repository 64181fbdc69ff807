package evaluation

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/goaiso/brandrank/internal/llm"
	"github.com/goaiso/brandrank/internal/toon"
)

const (
	// DefaultMaxRetries bounds re-asks after an invalid answer: at most
	// maxRetries+1 provider calls per query.
	DefaultMaxRetries = 2
	// MaxSources caps the source URL list kept per run.
	MaxSources = 10

	defaultBackoff = time.Second
)

// AttemptSink receives one row per provider attempt, valid or not.
type AttemptSink interface {
	AppendAttempt(ctx context.Context, attempt Attempt) error
}

// QueryContext tags attempt log rows with where in the run a query sits.
type QueryContext struct {
	Phase        Phase
	Criterion    string
	EvaluationID string
}

// QueryResult is a validated provider answer.
type QueryResult struct {
	Text     string
	Sources  []string
	Decoded  map[string]any
	Attempts int
}

// Executor sends prompts to the ranking-answer provider and retries until
// the answer decodes to a 5-entry ranking line or the budget runs out. A
// failed budget surfaces as an upstream_format error carrying the last raw
// answer, so callers never need to re-validate a returned result.
type Executor struct {
	provider   llm.Provider
	sink       AttemptSink
	maxRetries int
	backoff    time.Duration
}

func NewExecutor(provider llm.Provider, sink AttemptSink) *Executor {
	return &Executor{
		provider:   provider,
		sink:       sink,
		maxRetries: DefaultMaxRetries,
		backoff:    defaultBackoff,
	}
}

// WithRetryPolicy overrides the retry budget and inter-attempt backoff.
func (e *Executor) WithRetryPolicy(maxRetries int, backoff time.Duration) *Executor {
	e.maxRetries = maxRetries
	e.backoff = backoff
	return e
}

func (e *Executor) Execute(ctx context.Context, prompt string, qc QueryContext) (QueryResult, error) {
	var lastText string
	var lastSources []string
	var lastErr error

	total := e.maxRetries + 1
	for attempt := 1; attempt <= total; attempt++ {
		if ctx.Err() != nil {
			return QueryResult{}, ctx.Err()
		}

		start := time.Now()
		completion, err := e.provider.Complete(ctx, prompt, true)
		elapsed := roundSeconds(time.Since(start))
		if err != nil {
			return QueryResult{}, fmt.Errorf("provider call (attempt %d): %w", attempt, err)
		}

		text := cleanOutput(completion.Text)
		sources := dedupSources(completion.Sources, MaxSources)
		decoded, validErr := validateRanking(text)
		valid := validErr == nil

		if e.sink != nil {
			row := Attempt{
				Timestamp:    time.Now(),
				Model:        e.provider.Name(),
				Phase:        qc.Phase,
				Criterion:    qc.Criterion,
				EvaluationID: qc.EvaluationID,
				Attempt:      attempt,
				Elapsed:      elapsed,
				Valid:        valid,
				Prompt:       prompt,
				Output:       text,
				Sources:      strings.Join(sources, " | "),
			}
			if err := e.sink.AppendAttempt(ctx, row); err != nil {
				return QueryResult{}, fmt.Errorf("append attempt log: %w", err)
			}
		}

		if valid {
			return QueryResult{Text: text, Sources: sources, Decoded: decoded, Attempts: attempt}, nil
		}

		lastText, lastSources, lastErr = text, sources, validErr
		log.Printf("[executor] invalid answer on attempt %d/%d (eval=%s phase=%s): %v",
			attempt, total, qc.EvaluationID, qc.Phase, validErr)
		if attempt < total {
			time.Sleep(e.backoff)
		}
	}

	return QueryResult{}, NewUpstreamFormatError(
		fmt.Sprintf("no valid ranking after %d attempts", total),
		map[string]any{
			"prompt":       prompt,
			"output":       lastText,
			"sources":      lastSources,
			"decode_error": lastErr.Error(),
		},
	)
}

// validateRanking is the pure validity predicate: the cleaned text must
// decode as TOON and carry a ranking list of exactly RankingSize entries.
func validateRanking(text string) (map[string]any, error) {
	decoded, err := toon.Decode(text)
	if err != nil {
		return nil, err
	}
	list, ok := decoded["ranking"].([]string)
	if !ok {
		return nil, ErrNoRanking
	}
	if len(list) != RankingSize {
		return nil, fmt.Errorf("%w: got %d", ErrWrongLength, len(list))
	}
	return decoded, nil
}

// cleanOutput trims, collapses newlines and strips code-fence markers, so a
// fenced or wrapped one-liner still validates.
func cleanOutput(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// dedupSources keeps first-seen order and caps the list.
func dedupSources(urls []string, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
