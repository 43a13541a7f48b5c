package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mangoshelf/libcache/benchmark/analysis"
	"github.com/mangoshelf/libcache/benchmark/reporting"
	"github.com/mangoshelf/libcache/benchmark/simulation"
)

var (
	simBudgets   []string
	simWorkload  = simulation.DefaultWorkload()
	simEntrySize string
	simOutput    string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Compare query cache budgets on a synthetic workload",
	Long: `Replay a Zipf-distributed stream of listing queries against the query
cache at several byte budgets and write a Markdown report comparing their
hit rates.

Examples:
  libcache simulate --budget 1MiB --budget 8MiB --budget 50MiB
  libcache simulate --titles 5000 --users 20 -o report.md`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringSliceVar(&simBudgets, "budget", nil, "budget to compare, repeatable (default: configured budget and a quarter of it)")
	f.IntVar(&simWorkload.Titles, "titles", simWorkload.Titles, "distinct titles")
	f.IntVar(&simWorkload.Users, "users", simWorkload.Users, "distinct users")
	f.IntVar(&simWorkload.Sorts, "sorts", simWorkload.Sorts, "sort orders per listing")
	f.IntVar(&simWorkload.Queries, "queries", simWorkload.Queries, "queries per round")
	f.IntVar(&simWorkload.Rounds, "rounds", simWorkload.Rounds, "rounds per budget")
	f.Float64Var(&simWorkload.Skew, "skew", simWorkload.Skew, "Zipf exponent (> 1)")
	f.Uint64Var(&simWorkload.Seed, "seed", simWorkload.Seed, "random seed")
	f.StringVar(&simEntrySize, "entry-size", humanize.IBytes(uint64(simWorkload.EntrySize)), "bytes charged per cached listing")
	f.StringVarP(&simOutput, "output", "o", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	entrySize, err := humanize.ParseBytes(simEntrySize)
	if err != nil {
		return fmt.Errorf("parsing --entry-size: %w", err)
	}
	simWorkload.EntrySize = int64(entrySize)

	budgets, err := simulationBudgets()
	if err != nil {
		return err
	}

	sim, err := simulation.NewSimulator(simWorkload, budgets...)
	if err != nil {
		return err
	}
	log.Info("simulating",
		zap.Int("budgets", len(budgets)),
		zap.Int("rounds", simWorkload.Rounds),
		zap.Int("queries", simWorkload.Queries))

	results, err := sim.Run()
	if err != nil {
		return err
	}

	out := os.Stdout
	if simOutput != "" {
		f, err := os.Create(simOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	report := reporting.NewMarkdownReport(out)
	report.WriteHeader("Query Cache Budget Simulation")
	report.WriteMethodology(simWorkload)
	report.WriteSummaryTable(results)
	for _, comp := range analysis.CompareAll(results, 1000, 0.95) {
		report.WriteComparison(comp)
		log.Debug("comparison", zap.String("summary", comp.Summary()))
	}
	for _, b := range analysis.SortedBudgets(results) {
		report.WriteDistributionChart(results[b])
	}
	report.WriteFooter()

	if simOutput != "" {
		return out.Sync()
	}
	return nil
}

func simulationBudgets() ([]int64, error) {
	if len(simBudgets) == 0 {
		b, err := cfg.BudgetBytes()
		if err != nil {
			return nil, err
		}
		return []int64{max(b/4, 1), b}, nil
	}

	budgets := make([]int64, 0, len(simBudgets))
	for _, s := range simBudgets {
		b, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("parsing --budget %q: %w", s, err)
		}
		budgets = append(budgets, int64(b))
	}
	return budgets, nil
}
