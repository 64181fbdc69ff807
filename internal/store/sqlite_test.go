package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/goaiso/brandrank/internal/evaluation"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testClock(offset time.Duration) time.Time {
	return time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC).Add(offset)
}

func seedEval(t *testing.T, s *SQLite, id string, criteria ...string) *evaluation.Evaluation {
	t.Helper()
	ev := &evaluation.Evaluation{
		ID:          id,
		ProductType: "running shoes",
		Status:      evaluation.StatusPending,
		Country:     "Spain",
		Location:    "Madrid",
		CreatedAt:   testClock(0),
	}
	for i, name := range criteria {
		ev.Criteria = append(ev.Criteria, evaluation.Criterion{Name: name, OrderIndex: i + 1})
	}
	if err := s.CreateEvaluation(context.Background(), ev); err != nil {
		t.Fatalf("create evaluation: %v", err)
	}
	return ev
}

func TestCreateAndGetEvaluation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ev := seedEval(t, s, "ev-1", "comfort", "price")

	for i, c := range ev.Criteria {
		if c.ID == 0 {
			t.Fatalf("criterion %d has no id", i)
		}
		if c.EvaluationID != "ev-1" {
			t.Fatalf("criterion %d evaluation id = %q", i, c.EvaluationID)
		}
	}

	got, err := s.GetEvaluation(ctx, "ev-1")
	if err != nil {
		t.Fatalf("get evaluation: %v", err)
	}
	if got.ProductType != "running shoes" || got.Country != "Spain" || got.Location != "Madrid" {
		t.Fatalf("unexpected evaluation: %+v", got)
	}
	if got.Status != evaluation.StatusPending {
		t.Fatalf("status = %s", got.Status)
	}
	if !got.CreatedAt.Equal(testClock(0)) {
		t.Fatalf("created_at = %v", got.CreatedAt)
	}
	if got.CompletedAt != nil {
		t.Fatalf("completed_at = %v, want nil", got.CompletedAt)
	}
	names := []string{got.Criteria[0].Name, got.Criteria[1].Name}
	if !reflect.DeepEqual(names, []string{"comfort", "price"}) {
		t.Fatalf("criteria = %v", names)
	}
}

func TestGetEvaluationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEvaluation(context.Background(), "missing")
	if evaluation.ErrorCode(err) != evaluation.CodeNotFound {
		t.Fatalf("code = %q, want not_found", evaluation.ErrorCode(err))
	}
}

func TestListEvaluationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := &evaluation.Evaluation{ID: "ev-old", ProductType: "laptops", Status: evaluation.StatusPending, CreatedAt: testClock(0)}
	newer := &evaluation.Evaluation{ID: "ev-new", ProductType: "laptops", Status: evaluation.StatusPending, CreatedAt: testClock(time.Hour)}
	for _, ev := range []*evaluation.Evaluation{older, newer} {
		if err := s.CreateEvaluation(ctx, ev); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	evs, err := s.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 2 || evs[0].ID != "ev-new" || evs[1].ID != "ev-old" {
		t.Fatalf("order = %v, %v", evs[0].ID, evs[1].ID)
	}
}

func TestBeginProcessingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ev := seedEval(t, s, "ev-1", "comfort", "price")

	// Leftovers from a previous run.
	run := &evaluation.PromptRun{EvaluationID: ev.ID, Phase: evaluation.Phase1, PromptText: "p", CreatedAt: testClock(0)}
	items := []evaluation.ParsedItem{{Position: 1, Brand: "Nike", Model: "Air", RawText: "Nike Air"}}
	if err := s.CreateRun(ctx, run, items); err != nil {
		t.Fatalf("create run: %v", err)
	}
	rows := []evaluation.RankingSummary{{Brand: "Nike", Score: 5, Share: 100}}
	if err := s.ReplaceSummaries(ctx, ev.ID, evaluation.Phase1, nil, rows); err != nil {
		t.Fatalf("replace summaries: %v", err)
	}

	if err := s.BeginProcessing(ctx, ev.ID); err != nil {
		t.Fatalf("begin processing: %v", err)
	}

	got, _ := s.GetEvaluation(ctx, ev.ID)
	if got.Status != evaluation.StatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", got.Status)
	}
	if runs, _ := s.ListRuns(ctx, ev.ID, evaluation.Phase1, nil); len(runs) != 0 {
		t.Fatalf("runs survived reset: %d", len(runs))
	}
	// Items cascade with their runs.
	if its, _ := s.ListRunItems(ctx, run.ID); len(its) != 0 {
		t.Fatalf("items survived reset: %d", len(its))
	}
	if sums, _ := s.ListSummaries(ctx, ev.ID, evaluation.Phase1, nil); len(sums) != 0 {
		t.Fatalf("summaries survived reset: %d", len(sums))
	}

	// A second begin while processing is a conflict and changes nothing.
	err := s.BeginProcessing(ctx, ev.ID)
	if evaluation.ErrorCode(err) != evaluation.CodeConflict {
		t.Fatalf("code = %q, want conflict", evaluation.ErrorCode(err))
	}

	done := testClock(time.Minute)
	if err := s.FinishProcessing(ctx, ev.ID, evaluation.StatusSuccess, &done); err != nil {
		t.Fatalf("finish processing: %v", err)
	}
	got, _ = s.GetEvaluation(ctx, ev.ID)
	if got.Status != evaluation.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("completed_at = %v, want %v", got.CompletedAt, done)
	}

	// Finished evaluations can be re-run; the timestamp clears again.
	if err := s.BeginProcessing(ctx, ev.ID); err != nil {
		t.Fatalf("re-run begin: %v", err)
	}
	got, _ = s.GetEvaluation(ctx, ev.ID)
	if got.CompletedAt != nil {
		t.Fatalf("completed_at = %v after re-run begin, want nil", got.CompletedAt)
	}
}

func TestBeginProcessingNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.BeginProcessing(context.Background(), "missing")
	if evaluation.ErrorCode(err) != evaluation.CodeNotFound {
		t.Fatalf("code = %q, want not_found", evaluation.ErrorCode(err))
	}
}

func TestFinishProcessingNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.FinishProcessing(context.Background(), "missing", evaluation.StatusError, nil)
	if evaluation.ErrorCode(err) != evaluation.CodeNotFound {
		t.Fatalf("code = %q, want not_found", evaluation.ErrorCode(err))
	}
}

func TestCreateRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ev := seedEval(t, s, "ev-1", "comfort", "price")
	comfortID := ev.Criteria[0].ID

	run := &evaluation.PromptRun{
		EvaluationID: ev.ID,
		Phase:        evaluation.Phase2,
		CriterionID:  &comfortID,
		PromptText:   "rank by comfort",
		ResponseRaw:  "ranking[5]: ...",
		Sources:      []string{"https://a.example", "https://b.example"},
		CreatedAt:    testClock(0),
	}
	items := []evaluation.ParsedItem{
		{Position: 2, Brand: "Adidas", Model: "Ultraboost", RawText: "Adidas Ultraboost"},
		{Position: 1, Brand: "Nike", Model: "Air Max", RawText: "Nike Air Max"},
	}
	if err := s.CreateRun(ctx, run, items); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("run id not assigned")
	}

	runs, err := s.ListRuns(ctx, ev.ID, evaluation.Phase2, &comfortID)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.CriterionID == nil || *got.CriterionID != comfortID {
		t.Fatalf("criterion id = %v", got.CriterionID)
	}
	if !reflect.DeepEqual(got.Sources, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("sources = %v", got.Sources)
	}
	if got.ResponseRaw != "ranking[5]: ..." {
		t.Fatalf("response = %q", got.ResponseRaw)
	}

	// Other filters see nothing.
	if other, _ := s.ListRuns(ctx, ev.ID, evaluation.Phase1, nil); len(other) != 0 {
		t.Fatalf("phase1 runs = %d, want 0", len(other))
	}
	priceID := ev.Criteria[1].ID
	if other, _ := s.ListRuns(ctx, ev.ID, evaluation.Phase2, &priceID); len(other) != 0 {
		t.Fatalf("price runs = %d, want 0", len(other))
	}

	// Items come back ordered by position regardless of insert order.
	gotItems, err := s.ListRunItems(ctx, run.ID)
	if err != nil {
		t.Fatalf("list run items: %v", err)
	}
	if len(gotItems) != 2 || gotItems[0].Position != 1 || gotItems[0].Brand != "Nike" {
		t.Fatalf("items = %+v", gotItems)
	}

	joined, err := s.ListItems(ctx, ev.ID, evaluation.Phase2, &comfortID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(joined) != 2 {
		t.Fatalf("joined items = %d, want 2", len(joined))
	}
	if other, _ := s.ListItems(ctx, ev.ID, evaluation.Phase2, &priceID); len(other) != 0 {
		t.Fatalf("price items = %d, want 0", len(other))
	}
}

func TestReplaceSummariesScoping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ev := seedEval(t, s, "ev-1", "comfort", "price")
	comfortID := ev.Criteria[0].ID

	phase1Rows := []evaluation.RankingSummary{
		{Brand: "Nike", Score: 10, Share: 66.67},
		{Brand: "Adidas", Score: 5, Share: 33.33},
	}
	critRows := []evaluation.RankingSummary{{Brand: "Hoka", Score: 5, Share: 100}}
	if err := s.ReplaceSummaries(ctx, ev.ID, evaluation.Phase1, nil, phase1Rows); err != nil {
		t.Fatalf("replace phase1: %v", err)
	}
	if err := s.ReplaceSummaries(ctx, ev.ID, evaluation.Phase2, &comfortID, critRows); err != nil {
		t.Fatalf("replace phase2: %v", err)
	}

	// Replacing the phase-1 scope must not touch the criterion scope.
	if err := s.ReplaceSummaries(ctx, ev.ID, evaluation.Phase1, nil, phase1Rows[:1]); err != nil {
		t.Fatalf("re-replace phase1: %v", err)
	}

	p1, _ := s.ListSummaries(ctx, ev.ID, evaluation.Phase1, nil)
	if len(p1) != 1 || p1[0].Brand != "Nike" || p1[0].Share != 66.67 {
		t.Fatalf("phase1 rows = %+v", p1)
	}
	if p1[0].CriterionID != nil {
		t.Fatalf("phase1 criterion id = %v, want nil", p1[0].CriterionID)
	}
	p2, _ := s.ListSummaries(ctx, ev.ID, evaluation.Phase2, &comfortID)
	if len(p2) != 1 || p2[0].Brand != "Hoka" {
		t.Fatalf("phase2 rows = %+v", p2)
	}
}

func TestAttemptLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rows := []evaluation.Attempt{
		{Timestamp: testClock(0), Model: "gpt-4o-mini-search-preview", Phase: evaluation.Phase1, EvaluationID: "ev-1", Attempt: 1, Elapsed: 1.25, Valid: false, Prompt: "p", Output: "bad"},
		{Timestamp: testClock(time.Second), Model: "gpt-4o-mini-search-preview", Phase: evaluation.Phase1, EvaluationID: "ev-1", Attempt: 2, Elapsed: 0.75, Valid: true, Prompt: "p", Output: "ranking[5]: ...", Sources: "https://a.example"},
		{Timestamp: testClock(2 * time.Second), Model: "claude", Phase: evaluation.Phase2, Criterion: "price", EvaluationID: "ev-2", Attempt: 1, Valid: true},
	}
	for i, row := range rows {
		if err := s.AppendAttempt(ctx, row); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.ListAttempts(ctx, "ev-1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("attempts = %d, want 2", len(got))
	}
	if got[0].Valid || !got[1].Valid {
		t.Fatalf("validity = %v, %v", got[0].Valid, got[1].Valid)
	}
	if got[1].Elapsed != 0.75 || got[1].Sources != "https://a.example" {
		t.Fatalf("row = %+v", got[1])
	}

	all, err := s.ListAttempts(ctx, "")
	if err != nil {
		t.Fatalf("list all attempts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all attempts = %d, want 3", len(all))
	}
}
