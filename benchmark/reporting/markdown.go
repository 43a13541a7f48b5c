// Package reporting renders simulation results as Markdown.
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mangoshelf/libcache/benchmark/analysis"
	"github.com/mangoshelf/libcache/benchmark/simulation"
)

// MarkdownReport generates simulation reports in Markdown format.
type MarkdownReport struct {
	w   io.Writer
	now func() time.Time
}

// NewMarkdownReport creates a new Markdown report writer.
func NewMarkdownReport(w io.Writer) *MarkdownReport {
	return &MarkdownReport{w: w, now: time.Now}
}

// WriteHeader writes the report header.
func (r *MarkdownReport) WriteHeader(title string) {
	fmt.Fprintf(r.w, "# %s\n\n", title)
	fmt.Fprintf(r.w, "Generated: %s\n\n", r.now().Format(time.RFC3339))
}

// WriteMethodology writes the methodology section.
func (r *MarkdownReport) WriteMethodology(w simulation.Workload) {
	fmt.Fprintln(r.w, "## Methodology")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Listings:** %d titles x %d users x %d sort orders\n", w.Titles, w.Users, w.Sorts)
	fmt.Fprintf(r.w, "- **Queries:** %d per round, %d rounds (Zipf s=%.2f)\n", w.Queries, w.Rounds, w.Skew)
	fmt.Fprintf(r.w, "- **Entry size:** %s\n", humanize.IBytes(uint64(w.EntrySize)))
	fmt.Fprintln(r.w, "- **Metric:** Hit rate per round (higher is better)")
	fmt.Fprintln(r.w, "- **Statistical tests:** Mann-Whitney U (non-parametric), Cohen's d effect size")
	fmt.Fprintln(r.w)
}

// WriteSummaryTable writes one row per budget, smallest first.
func (r *MarkdownReport) WriteSummaryTable(results map[int64]*simulation.AggregateResult) {
	fmt.Fprintln(r.w, "## Summary")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Budget | Hit Rate | Median | P10 | Evictions | Rejected | Unique Keys |")
	fmt.Fprintln(r.w, "|--------|----------|--------|-----|-----------|----------|-------------|")

	for _, b := range analysis.SortedBudgets(results) {
		m := simulation.ComputeMetrics(results[b])
		fmt.Fprintf(r.w, "| %s | %.1f%% | %.1f%% | %.1f%% | %s | %s | %d |\n",
			humanize.IBytes(uint64(b)), m.HitRate, m.MedianHitRate, m.P10HitRate,
			humanize.Comma(int64(m.TotalEvictions)), humanize.Comma(int64(m.TotalRejected)),
			m.UniqueKeys)
	}
	fmt.Fprintln(r.w)
}

// WriteComparison writes a detailed comparison section.
func (r *MarkdownReport) WriteComparison(comp *analysis.BudgetComparison) {
	name1 := humanize.IBytes(uint64(comp.Budget1))
	name2 := humanize.IBytes(uint64(comp.Budget2))
	fmt.Fprintf(r.w, "## %s vs %s\n\n", name1, name2)

	fmt.Fprintln(r.w, "### Descriptive Statistics")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Metric | "+name1+" | "+name2+" |")
	fmt.Fprintln(r.w, "|--------|"+strings.Repeat("-", len(name1)+2)+"|"+strings.Repeat("-", len(name2)+2)+"|")
	fmt.Fprintf(r.w, "| Mean | %.2f | %.2f |\n", comp.Stats1.Mean, comp.Stats2.Mean)
	fmt.Fprintf(r.w, "| Median | %.2f | %.2f |\n", comp.Stats1.Median, comp.Stats2.Median)
	fmt.Fprintf(r.w, "| Std Dev | %.2f | %.2f |\n", comp.Stats1.StdDev, comp.Stats2.StdDev)
	fmt.Fprintf(r.w, "| Min | %.2f | %.2f |\n", comp.Stats1.Min, comp.Stats2.Min)
	fmt.Fprintf(r.w, "| Max | %.2f | %.2f |\n", comp.Stats1.Max, comp.Stats2.Max)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Statistical Analysis")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Mann-Whitney U:** %.2f (z=%.2f, p=%.4f)\n",
		comp.MannWhitney.U, comp.MannWhitney.Z, comp.MannWhitney.PValue)
	fmt.Fprintf(r.w, "- **Effect size (Cohen's d):** %.2f (%s)\n",
		comp.EffectSize.CohensD, comp.EffectSize.Interpretation)
	fmt.Fprintf(r.w, "- **%.0f%% CI for mean difference:** [%.2f, %.2f]\n",
		comp.BootstrapCI.Confidence*100, comp.BootstrapCI.LowerBound, comp.BootstrapCI.UpperBound)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Conclusion")
	fmt.Fprintln(r.w)
	if comp.WinnerConfident {
		fmt.Fprintf(r.w, "**%s** hits significantly more often than %s ",
			humanize.IBytes(uint64(comp.Winner)), otherBudget(comp))
		fmt.Fprintf(r.w, "(p < 0.05, effect size: %s).\n", comp.EffectSize.Interpretation)
	} else {
		fmt.Fprintln(r.w, "No statistically significant difference detected between budgets (p >= 0.05).")
	}
	fmt.Fprintln(r.w)
}

func otherBudget(comp *analysis.BudgetComparison) string {
	if comp.Winner == comp.Budget1 {
		return humanize.IBytes(uint64(comp.Budget2))
	}
	return humanize.IBytes(uint64(comp.Budget1))
}

// WriteDistributionChart writes an ASCII histogram of per-round hit rates.
func (r *MarkdownReport) WriteDistributionChart(res *simulation.AggregateResult) {
	fmt.Fprintf(r.w, "### %s Hit Rate Distribution\n\n", humanize.IBytes(uint64(res.Budget)))
	fmt.Fprintln(r.w, "```")

	hist := makeHistogram(res.HitRatePerRound, 10)
	maxCount := 0
	for _, count := range hist {
		maxCount = max(maxCount, count)
	}

	width := 40
	for i, count := range hist {
		barLen := 0
		if maxCount > 0 {
			barLen = count * width / maxCount
		}
		fmt.Fprintf(r.w, "%3d-%3d%% │ %s %d\n", i*10, (i+1)*10, strings.Repeat("█", barLen), count)
	}

	fmt.Fprintln(r.w, "```")
	fmt.Fprintln(r.w)
}

// makeHistogram buckets percentages into fixed-width bins over [0, 100].
func makeHistogram(data []float64, buckets int) []int {
	hist := make([]int, buckets)
	width := 100 / float64(buckets)
	for _, v := range data {
		bucket := int(v / width)
		bucket = min(max(bucket, 0), buckets-1)
		hist[bucket]++
	}
	return hist
}

// WriteFooter writes the report footer.
func (r *MarkdownReport) WriteFooter() {
	fmt.Fprintln(r.w, "---")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "*Report generated by libcache simulate*")
}
