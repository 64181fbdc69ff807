package evaluation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// TopN caps the brand and model leaderboards in summary views. The matrix
// is exhaustive and never truncated.
const TopN = 10

type ScoredName struct {
	Name  string  `json:"name"`
	Score int     `json:"score"`
	Share float64 `json:"share"`
}

type ReportMetrics struct {
	TotalEvaluations int     `json:"totalEvaluations"`
	TopBrand         string  `json:"topBrand"`
	TopShare         float64 `json:"topShare"`
	UniqueBrands     int     `json:"uniqueBrands"`
}

// RawRanking maps 1-based positions (as strings) to raw answer text. A run
// that stored fewer than five items leaves the missing positions out.
type RawRanking map[string]string

type CriterionResults struct {
	Criterion string       `json:"criterion"`
	Results   []RawRanking `json:"results"`
}

type CriterionSummary struct {
	Criterion string       `json:"criterion"`
	TopBrands []ScoredName `json:"topBrands"`
}

// Matrix is the cross-criterion ranking table: one row per brand in the
// global brand set, one column per criterion, nil where a brand scored
// nothing for that criterion.
type Matrix struct {
	Brands   []string                   `json:"brands"`
	Criteria []string                   `json:"criteria"`
	Ranks    map[string]map[string]*int `json:"ranks"`
}

type Report struct {
	ID            string             `json:"uuid"`
	ProductType   string             `json:"product_type"`
	Timestamp     time.Time          `json:"timestamp"`
	Status        Status             `json:"status"`
	Metrics       ReportMetrics      `json:"metrics"`
	Phase1Results []RawRanking       `json:"phase1_results"`
	Phase2Results []CriterionResults `json:"phase2_results"`
	Phase1        Phase1Summary      `json:"phase1"`
	Phase2        []CriterionSummary `json:"phase2"`
	Matrix        Matrix             `json:"matrix"`
}

type Phase1Summary struct {
	TopBrands []ScoredName `json:"topBrands"`
	TopModels []ScoredName `json:"topModels"`
}

// BuildReport recomputes the presentation views from persisted runs and
// items. It is read-only: stored summaries are not consulted or mutated, so
// a report is always consistent with the items actually on disk.
func BuildReport(ctx context.Context, store Store, ev *Evaluation) (*Report, error) {
	report := &Report{
		ID:            ev.ID,
		ProductType:   ev.ProductType,
		Timestamp:     ev.CreatedAt,
		Status:        ev.Status,
		Phase1Results: []RawRanking{},
		Phase2Results: []CriterionResults{},
		Phase2:        []CriterionSummary{},
	}

	brands := newBrandTally()
	models := newBrandTally()

	phase1Runs, err := store.ListRuns(ctx, ev.ID, Phase1, nil)
	if err != nil {
		return nil, fmt.Errorf("list phase1 runs: %w", err)
	}
	for _, run := range phase1Runs {
		items, err := store.ListRunItems(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("list run items: %w", err)
		}
		ranking := RawRanking{}
		for _, item := range items {
			pts := PointsForPosition(item.Position)
			ranking[strconv.Itoa(item.Position)] = item.RawText
			if pts <= 0 {
				continue
			}
			brands.total += pts

			key := NormalizeBrandKey(item.Brand)
			display := NormalizeBrandDisplay(item.Brand)
			if key != "" {
				brands.add(key, display, pts)
			}

			model := NormalizeModel(item.Model)
			if model == "" {
				// An answer with no separable model still names a product.
				model = NormalizeModel(item.RawText)
			}
			if key != "" && model != "" {
				modelKey := key + "\x00" + model
				models.add(modelKey, fmt.Sprintf("%s %s", brands.displayFor(key), model), pts)
			}
		}
		report.Phase1Results = append(report.Phase1Results, ranking)
	}

	report.Phase1.TopBrands = topEntries(brands, brands.total, TopN)
	report.Phase1.TopModels = topEntries(models, brands.total, TopN)

	report.Metrics = ReportMetrics{
		TotalEvaluations: len(phase1Runs),
		TopBrand:         "N/A",
		UniqueBrands:     len(brands.scores),
	}
	if len(report.Phase1.TopBrands) > 0 {
		report.Metrics.TopBrand = report.Phase1.TopBrands[0].Name
		report.Metrics.TopShare = report.Phase1.TopBrands[0].Share
	}

	// Phase 2: independent tallies per criterion.
	criteriaNames := make([]string, 0, len(ev.Criteria))
	perCriterion := map[string]*brandTally{}
	for _, crit := range ev.Criteria {
		criteriaNames = append(criteriaNames, crit.Name)

		critID := crit.ID
		runs, err := store.ListRuns(ctx, ev.ID, Phase2, &critID)
		if err != nil {
			return nil, fmt.Errorf("list phase2 runs for %q: %w", crit.Name, err)
		}

		tally := newBrandTally()
		results := []RawRanking{}
		for _, run := range runs {
			items, err := store.ListRunItems(ctx, run.ID)
			if err != nil {
				return nil, fmt.Errorf("list run items: %w", err)
			}
			ranking := RawRanking{}
			for _, item := range items {
				pts := PointsForPosition(item.Position)
				ranking[strconv.Itoa(item.Position)] = item.RawText
				if pts <= 0 {
					continue
				}
				tally.total += pts
				key := NormalizeBrandKey(item.Brand)
				if key == "" {
					continue
				}
				display := NormalizeBrandDisplay(item.Brand)
				tally.add(key, display, pts)
				// A brand first seen in phase 2 still gets a global display.
				brands.learnDisplay(key, display)
			}
			results = append(results, ranking)
		}
		perCriterion[crit.Name] = tally

		report.Phase2Results = append(report.Phase2Results, CriterionResults{
			Criterion: crit.Name,
			Results:   results,
		})
		report.Phase2 = append(report.Phase2, CriterionSummary{
			Criterion: crit.Name,
			TopBrands: topEntries(tally, tally.total, TopN),
		})
	}

	report.Matrix = buildMatrix(criteriaNames, perCriterion, brands)
	return report, nil
}

func topEntries(t *brandTally, total, limit int) []ScoredName {
	if total == 0 {
		total = 1
	}
	entries := t.sorted()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]ScoredName, 0, len(entries))
	for _, e := range entries {
		out = append(out, ScoredName{Name: e.Display, Score: e.Score, Share: ShareOf(e.Score, total)})
	}
	return out
}

// buildMatrix ranks every brand that scored in any criterion's phase-2
// aggregation (falling back to the phase-1 brand set when phase 2 produced
// nothing). Ordering is by summed phase-2 score, a zero sum falling back to
// the phase-1 score, with the normalized key as the deterministic tie-break.
func buildMatrix(criteria []string, perCriterion map[string]*brandTally, phase1 *brandTally) Matrix {
	keySet := map[string]bool{}
	for _, name := range criteria {
		for key := range perCriterion[name].scores {
			keySet[key] = true
		}
	}
	if len(keySet) == 0 {
		for key := range phase1.scores {
			keySet[key] = true
		}
	}

	totalFor := func(key string) int {
		sum := 0
		for _, name := range criteria {
			sum += perCriterion[name].scores[key]
		}
		if sum == 0 {
			sum = phase1.scores[key]
		}
		return sum
	}

	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, tj := totalFor(keys[i]), totalFor(keys[j])
		if ti != tj {
			return ti > tj
		}
		return keys[i] < keys[j]
	})

	displays := make([]string, 0, len(keys))
	for _, key := range keys {
		displays = append(displays, phase1.displayFor(key))
	}

	ranks := map[string]map[string]*int{}
	for _, name := range criteria {
		tally := perCriterion[name]
		rankByKey := map[string]int{}
		r := 1
		for _, e := range tally.sorted() {
			if e.Score <= 0 {
				continue
			}
			rankByKey[e.Key] = r
			r++
		}
		row := map[string]*int{}
		for _, key := range keys {
			if rank, ok := rankByKey[key]; ok {
				v := rank
				row[phase1.displayFor(key)] = &v
			} else {
				row[phase1.displayFor(key)] = nil
			}
		}
		ranks[name] = row
	}

	return Matrix{Brands: displays, Criteria: criteria, Ranks: ranks}
}
