// Package render turns a ranking report into markdown, HTML and PDF for
// download endpoints.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goaiso/brandrank/internal/evaluation"
)

func BuildReportMarkdown(report *evaluation.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Brand Ranking Report\n\n")
	fmt.Fprintf(&b, "- Product: %s\n", report.ProductType)
	fmt.Fprintf(&b, "- Evaluation: %s\n", report.ID)
	fmt.Fprintf(&b, "- Status: %s\n", report.Status)
	fmt.Fprintf(&b, "- Date: %s\n\n", report.Timestamp.Format(time.RFC3339))

	fmt.Fprintf(&b, "## Overview\n\n")
	fmt.Fprintf(&b, "- Queries in phase 1: %d\n", report.Metrics.TotalEvaluations)
	fmt.Fprintf(&b, "- Unique brands: %d\n", report.Metrics.UniqueBrands)
	fmt.Fprintf(&b, "- Leading brand: %s (%.2f%%)\n\n", report.Metrics.TopBrand, report.Metrics.TopShare)

	buildLeaderboard(&b, "Top Brands (all criteria combined)", report.Phase1.TopBrands)
	buildLeaderboard(&b, "Top Models", report.Phase1.TopModels)

	for _, crit := range report.Phase2 {
		buildLeaderboard(&b, fmt.Sprintf("Top Brands — %s", crit.Criterion), crit.TopBrands)
	}

	buildMatrixTable(&b, report.Matrix)

	buildRawSection(&b, "Phase 1 Raw Rankings", report.Phase1Results)
	for _, crit := range report.Phase2Results {
		buildRawSection(&b, fmt.Sprintf("Phase 2 Raw Rankings — %s", crit.Criterion), crit.Results)
	}

	return b.String()
}

func buildLeaderboard(b *strings.Builder, title string, rows []evaluation.ScoredName) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(rows) == 0 {
		b.WriteString("_No data._\n\n")
		return
	}
	b.WriteString("| # | Name | Score | Share |\n|---|------|-------|-------|\n")
	for i, row := range rows {
		fmt.Fprintf(b, "| %d | %s | %d | %.2f%% |\n", i+1, row.Name, row.Score, row.Share)
	}
	b.WriteString("\n")
}

func buildMatrixTable(b *strings.Builder, m evaluation.Matrix) {
	fmt.Fprintf(b, "## Ranking Matrix\n\n")
	if len(m.Brands) == 0 {
		b.WriteString("_No data._\n\n")
		return
	}
	fmt.Fprintf(b, "| Brand | %s |\n", strings.Join(m.Criteria, " | "))
	b.WriteString("|---" + strings.Repeat("|---", len(m.Criteria)) + "|\n")
	for _, brand := range m.Brands {
		cells := make([]string, 0, len(m.Criteria))
		for _, crit := range m.Criteria {
			rank := m.Ranks[crit][brand]
			if rank == nil {
				cells = append(cells, "—")
			} else {
				cells = append(cells, strconv.Itoa(*rank))
			}
		}
		fmt.Fprintf(b, "| %s | %s |\n", brand, strings.Join(cells, " | "))
	}
	b.WriteString("\n")
}

func buildRawSection(b *strings.Builder, title string, runs []evaluation.RawRanking) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(runs) == 0 {
		b.WriteString("_No data._\n\n")
		return
	}
	for i, ranking := range runs {
		fmt.Fprintf(b, "### Query %d\n\n", i+1)
		for pos := 1; pos <= evaluation.RankingSize; pos++ {
			raw, ok := ranking[strconv.Itoa(pos)]
			if !ok {
				continue
			}
			fmt.Fprintf(b, "%d. %s\n", pos, raw)
		}
		b.WriteString("\n")
	}
}
