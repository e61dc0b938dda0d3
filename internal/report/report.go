// Package report renders analysis results as human-readable Markdown.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fieldscope/locus/internal/analysis"
)

// Markdown renders a full analysis report. Category rows are sorted by
// name so the output is stable across runs.
func Markdown(res *analysis.Result) string {
	var sb strings.Builder

	sb.WriteString("# Location Analysis Report\n\n")
	fmt.Fprintf(&sb, "**Address:** %s\n\n", res.Address)
	fmt.Fprintf(&sb, "**Search radius:** %.1f miles\n\n", res.RadiusMiles)
	fmt.Fprintf(&sb, "**Analyzed at:** %s\n\n", res.AnalyzedAt.UTC().Format(time.RFC3339))

	sb.WriteString("## Overall\n\n")
	fmt.Fprintf(&sb, "**Score:** %.1f / 100\n\n", res.OverallScore)
	fmt.Fprintf(&sb, "**Recommendation:** %s\n\n", res.Recommendation)
	fmt.Fprintf(&sb, "**Data points collected:** %d\n\n", res.DataPoints)
	if res.Cached {
		sb.WriteString("Served from cache.\n\n")
	}

	sb.WriteString("## Categories\n\n")
	sb.WriteString("| Category | Score | Confidence | Notes |\n")
	sb.WriteString("|----------|------:|------------|-------|\n")

	names := make([]string, 0, len(res.Categories))
	for name := range res.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cat := res.Categories[name]
		confidence := cat.Confidence
		if confidence == "" {
			confidence = "-"
		}
		notes := cat.Error
		if notes == "" {
			notes = "-"
		}
		fmt.Fprintf(&sb, "| %s | %.1f | %s | %s |\n", name, cat.Score, confidence, notes)
	}
	sb.WriteString("\n")

	if res.Timing != nil {
		sb.WriteString("## Timing\n\n")
		fmt.Fprintf(&sb, "Total %.0f ms across %d steps (%d failed).\n\n",
			res.Timing.TotalTimeMs, res.Timing.StepsTracked, res.Timing.FailedSteps)

		phases := make([]string, 0, len(res.Timing.Categories))
		for phase := range res.Timing.Categories {
			phases = append(phases, phase)
		}
		sort.Strings(phases)

		if len(phases) > 0 {
			sb.WriteString("| Phase | Steps | Total ms | Avg ms |\n")
			sb.WriteString("|-------|------:|---------:|-------:|\n")
			for _, phase := range phases {
				summary := res.Timing.Categories[phase]
				fmt.Fprintf(&sb, "| %s | %d | %.2f | %.2f |\n",
					phase, summary.Steps, summary.TotalMs, summary.AvgMs)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
