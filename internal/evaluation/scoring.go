package evaluation

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// positionPoints maps a 1-based rank position to the points it earns. Any
// other position earns nothing and is excluded from the total.
var positionPoints = map[int]int{1: 5, 2: 4, 3: 3, 4: 2, 5: 1}

// PointsForPosition exposes the scoring table.
func PointsForPosition(pos int) int {
	return positionPoints[pos]
}

// ShareOf is score as a percentage of total, rounded to two decimals.
func ShareOf(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*10000) / 100
}

// brandTally accumulates per-key points while remembering the first display
// form and first-appearance order for each key. First-appearance order is
// the deterministic tie-break for equal scores.
type brandTally struct {
	scores  map[string]int
	display map[string]string
	seq     map[string]int
	total   int
}

func newBrandTally() *brandTally {
	return &brandTally{
		scores:  map[string]int{},
		display: map[string]string{},
		seq:     map[string]int{},
	}
}

func (t *brandTally) add(key, display string, pts int) {
	if key == "" {
		return
	}
	if _, ok := t.seq[key]; !ok {
		t.seq[key] = len(t.seq)
	}
	t.scores[key] += pts
	if _, ok := t.display[key]; !ok && display != "" {
		t.display[key] = display
	}
}

// learnDisplay records a display form for a key without touching scores.
func (t *brandTally) learnDisplay(key, display string) {
	if key == "" || display == "" {
		return
	}
	if _, ok := t.display[key]; !ok {
		t.display[key] = display
	}
}

func (t *brandTally) displayFor(key string) string {
	if d := t.display[key]; d != "" {
		return d
	}
	if d := NormalizeBrandDisplay(key); d != "" {
		return d
	}
	return key
}

type tallyEntry struct {
	Key     string
	Display string
	Score   int
}

// sorted returns entries by descending score, ties broken by first
// appearance.
func (t *brandTally) sorted() []tallyEntry {
	entries := make([]tallyEntry, 0, len(t.scores))
	for key, score := range t.scores {
		entries = append(entries, tallyEntry{Key: key, Display: t.displayFor(key), Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return t.seq[entries[i].Key] < t.seq[entries[j].Key]
	})
	return entries
}

// ComputeBrandSummary aggregates ranking items for (evaluation, phase,
// criterion) into per-brand summary rows and fully replaces any previous
// rows for that key. Shares are computed over the real point total of the
// selected items; a zero total is floored to one so shares degrade to zero
// instead of dividing by zero.
func ComputeBrandSummary(ctx context.Context, store Store, evaluationID string, phase Phase, criterionID *int64) error {
	items, err := store.ListItems(ctx, evaluationID, phase, criterionID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	tally := newBrandTally()
	for _, item := range items {
		pts := PointsForPosition(item.Position)
		if pts <= 0 {
			continue
		}
		// Empty-brand items still count toward the distributed total even
		// though they produce no summary row.
		tally.total += pts
		key := NormalizeBrandKey(item.Brand)
		if key == "" {
			continue
		}
		tally.add(key, NormalizeBrandDisplay(item.Brand), pts)
	}

	total := tally.total
	if total == 0 {
		total = 1
	}

	entries := tally.sorted()
	rows := make([]RankingSummary, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, RankingSummary{
			EvaluationID: evaluationID,
			Phase:        phase,
			CriterionID:  criterionID,
			Brand:        e.Display,
			Score:        e.Score,
			Share:        ShareOf(e.Score, total),
		})
	}
	if err := store.ReplaceSummaries(ctx, evaluationID, phase, criterionID, rows); err != nil {
		return fmt.Errorf("replace summaries: %w", err)
	}
	return nil
}
