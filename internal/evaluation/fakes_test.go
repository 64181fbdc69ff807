package evaluation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goaiso/brandrank/internal/llm"
)

// memStore is an in-memory Store for pipeline tests. It mirrors the sqlite
// store's filter semantics: a nil criterion ID matches only rows whose
// criterion ID is NULL.
type memStore struct {
	mu         sync.Mutex
	evals      map[string]*Evaluation
	runs       []PromptRun
	items      map[int64][]RankingItem
	summaries  []RankingSummary
	attempts   []Attempt
	nextRunID  int64
	nextCritID int64
}

func newMemStore() *memStore {
	return &memStore{
		evals: map[string]*Evaluation{},
		items: map[int64][]RankingItem{},
	}
}

func critMatch(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memStore) CreateEvaluation(_ context.Context, ev *Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	cp.Criteria = make([]Criterion, len(ev.Criteria))
	for i, c := range ev.Criteria {
		m.nextCritID++
		c.ID = m.nextCritID
		cp.Criteria[i] = c
		ev.Criteria[i].ID = c.ID
	}
	m.evals[ev.ID] = &cp
	return nil
}

func (m *memStore) GetEvaluation(_ context.Context, id string) (*Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.evals[id]
	if !ok {
		return nil, NewNotFoundError(id)
	}
	cp := *ev
	cp.Criteria = append([]Criterion(nil), ev.Criteria...)
	return &cp, nil
}

func (m *memStore) ListEvaluations(_ context.Context) ([]Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Evaluation, 0, len(m.evals))
	for _, ev := range m.evals {
		out = append(out, *ev)
	}
	return out, nil
}

func (m *memStore) BeginProcessing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.evals[id]
	if !ok {
		return NewNotFoundError(id)
	}
	if ev.Status == StatusProcessing {
		return NewConflictError(id)
	}
	ev.Status = StatusProcessing
	ev.CompletedAt = nil

	kept := m.runs[:0]
	for _, run := range m.runs {
		if run.EvaluationID == id {
			delete(m.items, run.ID)
			continue
		}
		kept = append(kept, run)
	}
	m.runs = kept

	keptSum := m.summaries[:0]
	for _, s := range m.summaries {
		if s.EvaluationID != id {
			keptSum = append(keptSum, s)
		}
	}
	m.summaries = keptSum
	return nil
}

func (m *memStore) FinishProcessing(_ context.Context, id string, status Status, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.evals[id]
	if !ok {
		return NewNotFoundError(id)
	}
	ev.Status = status
	ev.CompletedAt = completedAt
	return nil
}

func (m *memStore) CreateRun(_ context.Context, run *PromptRun, items []ParsedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRunID++
	run.ID = m.nextRunID
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs = append(m.runs, *run)
	rows := make([]RankingItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, RankingItem{
			RunID:    run.ID,
			Position: it.Position,
			Brand:    it.Brand,
			Model:    it.Model,
			RawText:  it.RawText,
		})
	}
	m.items[run.ID] = rows
	return nil
}

func (m *memStore) ListRuns(_ context.Context, evaluationID string, phase Phase, criterionID *int64) ([]PromptRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PromptRun
	for _, run := range m.runs {
		if run.EvaluationID == evaluationID && run.Phase == phase && critMatch(run.CriterionID, criterionID) {
			out = append(out, run)
		}
	}
	return out, nil
}

func (m *memStore) ListRunItems(_ context.Context, runID int64) ([]RankingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RankingItem(nil), m.items[runID]...), nil
}

func (m *memStore) ListItems(_ context.Context, evaluationID string, phase Phase, criterionID *int64) ([]RankingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RankingItem
	for _, run := range m.runs {
		if run.EvaluationID != evaluationID || run.Phase != phase || !critMatch(run.CriterionID, criterionID) {
			continue
		}
		out = append(out, m.items[run.ID]...)
	}
	return out, nil
}

func (m *memStore) ReplaceSummaries(_ context.Context, evaluationID string, phase Phase, criterionID *int64, rows []RankingSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.summaries[:0]
	for _, s := range m.summaries {
		if s.EvaluationID == evaluationID && s.Phase == phase && critMatch(s.CriterionID, criterionID) {
			continue
		}
		kept = append(kept, s)
	}
	m.summaries = append(kept, rows...)
	return nil
}

func (m *memStore) ListSummaries(_ context.Context, evaluationID string, phase Phase, criterionID *int64) ([]RankingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RankingSummary
	for _, s := range m.summaries {
		if s.EvaluationID == evaluationID && s.Phase == phase && critMatch(s.CriterionID, criterionID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) AppendAttempt(_ context.Context, attempt Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

var _ Store = (*memStore)(nil)
var _ AttemptSink = (*memStore)(nil)

// scriptedProvider answers each call through respond, passing the 1-based
// call number.
type scriptedProvider struct {
	mu      sync.Mutex
	calls   int
	respond func(prompt string, call int) (llm.Completion, error)
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, prompt string, _ bool) (llm.Completion, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return p.respond(prompt, call)
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// constantProvider always answers the same valid five-entry ranking line.
func constantProvider(entries ...string) *scriptedProvider {
	line := "ranking[5]: " + strings.Join(entries, ",")
	return &scriptedProvider{respond: func(string, int) (llm.Completion, error) {
		return llm.Completion{Text: line}, nil
	}}
}

type attemptRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
	err      error
}

func (r *attemptRecorder) AppendAttempt(_ context.Context, attempt Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func int64p(v int64) *int64 { return &v }

// seedEvaluation inserts an evaluation with criteria and returns it with
// assigned criterion IDs.
func seedEvaluation(store *memStore, id, productType string, criteria ...string) *Evaluation {
	ev := &Evaluation{
		ID:          id,
		ProductType: productType,
		Status:      StatusPending,
		CreatedAt:   time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC),
	}
	for i, name := range criteria {
		ev.Criteria = append(ev.Criteria, Criterion{EvaluationID: id, Name: name, OrderIndex: i + 1})
	}
	store.CreateEvaluation(context.Background(), ev)
	return ev
}

// seedRun persists a run whose items come from splitting each entry on the
// first space, the same way ParseRanking does.
func seedRun(store *memStore, evaluationID string, phase Phase, criterionID *int64, entries ...string) {
	items := make([]ParsedItem, 0, len(entries))
	for i, entry := range entries {
		brand, model, _ := strings.Cut(entry, " ")
		items = append(items, ParsedItem{Position: i + 1, Brand: brand, Model: model, RawText: entry})
	}
	run := &PromptRun{EvaluationID: evaluationID, Phase: phase, CriterionID: criterionID}
	store.CreateRun(context.Background(), run, items)
}
