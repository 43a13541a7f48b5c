package analysis

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/mangoshelf/libcache/benchmark/simulation"
)

// BudgetComparison contains a statistical comparison of two cache budgets.
type BudgetComparison struct {
	Budget1         int64
	Budget2         int64
	Stats1          *DescriptiveStats // Per-round hit rates for Budget1.
	Stats2          *DescriptiveStats
	MannWhitney     *MannWhitneyResult
	EffectSize      *EffectSize
	BootstrapCI     *BootstrapResult
	Winner          int64 // Budget with the higher mean hit rate, or 0 for a tie.
	WinnerConfident bool  // True if statistically significant.
}

// CompareBudgets compares the per-round hit rates of two budgets.
func CompareBudgets(
	result1, result2 *simulation.AggregateResult,
	bootstrapIterations int,
	confidence float64,
) *BudgetComparison {
	sample1 := result1.HitRatePerRound
	sample2 := result2.HitRatePerRound

	mw := MannWhitneyU(sample1, sample2)
	stats1 := Describe(sample1)
	stats2 := Describe(sample2)

	var winner int64
	switch {
	case stats1.Mean > stats2.Mean:
		winner = result1.Budget
	case stats2.Mean > stats1.Mean:
		winner = result2.Budget
	}

	return &BudgetComparison{
		Budget1:         result1.Budget,
		Budget2:         result2.Budget,
		Stats1:          stats1,
		Stats2:          stats2,
		MannWhitney:     mw,
		EffectSize:      ComputeEffectSize(sample1, sample2),
		BootstrapCI:     BootstrapConfidenceInterval(sample1, sample2, bootstrapIterations, confidence, uint64(result1.Budget^result2.Budget)),
		Winner:          winner,
		WinnerConfident: winner != 0 && mw.Significant,
	}
}

// Summary returns a human-readable summary of the comparison.
func (c *BudgetComparison) Summary() string {
	sig := "not statistically significant"
	if c.MannWhitney.Significant {
		sig = fmt.Sprintf("statistically significant (p=%.4f)", c.MannWhitney.PValue)
	}
	winner := "tie"
	if c.Winner != 0 {
		winner = humanize.IBytes(uint64(c.Winner))
	}

	name1 := humanize.IBytes(uint64(c.Budget1))
	name2 := humanize.IBytes(uint64(c.Budget2))
	return fmt.Sprintf(
		"%s vs %s:\n"+
			"  %s: mean=%.2f%%, median=%.2f%%, std=%.2f\n"+
			"  %s: mean=%.2f%%, median=%.2f%%, std=%.2f\n"+
			"  Difference: %.2f points\n"+
			"  Effect size: %.2f (%s)\n"+
			"  Result: %s, %s",
		name1, name2,
		name1, c.Stats1.Mean, c.Stats1.Median, c.Stats1.StdDev,
		name2, c.Stats2.Mean, c.Stats2.Median, c.Stats2.StdDev,
		c.Stats1.Mean-c.Stats2.Mean,
		c.EffectSize.CohensD, c.EffectSize.Interpretation,
		winner, sig,
	)
}

// CompareAll compares every budget against the smallest one. Comparisons are
// ordered by budget.
func CompareAll(
	results map[int64]*simulation.AggregateResult,
	bootstrapIterations int,
	confidence float64,
) []*BudgetComparison {
	budgets := SortedBudgets(results)
	if len(budgets) < 2 {
		return nil
	}

	base := results[budgets[0]]
	comps := make([]*BudgetComparison, 0, len(budgets)-1)
	for _, b := range budgets[1:] {
		comps = append(comps, CompareBudgets(base, results[b], bootstrapIterations, confidence))
	}
	return comps
}

// SortedBudgets returns the budgets in results in ascending order.
func SortedBudgets(results map[int64]*simulation.AggregateResult) []int64 {
	budgets := make([]int64, 0, len(results))
	for b := range results {
		budgets = append(budgets, b)
	}
	sort.Slice(budgets, func(i, j int) bool { return budgets[i] < budgets[j] })
	return budgets
}
