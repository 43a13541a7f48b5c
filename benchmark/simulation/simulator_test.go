package simulation

import (
	"slices"
	"testing"
)

func smallWorkload() Workload {
	return Workload{
		Titles:    50,
		Users:     4,
		Sorts:     2,
		Queries:   2000,
		Rounds:    5,
		Skew:      1.2,
		EntrySize: 100,
		Seed:      7,
	}
}

func TestNewSimulator_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Workload)
		budgets []int64
	}{
		{name: "no titles", mutate: func(w *Workload) { w.Titles = 0 }, budgets: []int64{1000}},
		{name: "no queries", mutate: func(w *Workload) { w.Queries = 0 }, budgets: []int64{1000}},
		{name: "flat skew", mutate: func(w *Workload) { w.Skew = 1 }, budgets: []int64{1000}},
		{name: "zero entry size", mutate: func(w *Workload) { w.EntrySize = 0 }, budgets: []int64{1000}},
		{name: "no budgets", mutate: func(*Workload) {}},
		{name: "negative budget", mutate: func(*Workload) {}, budgets: []int64{-1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := smallWorkload()
			tt.mutate(&w)
			if _, err := NewSimulator(w, tt.budgets...); err == nil {
				t.Error("NewSimulator() error = nil, want error")
			}
		})
	}
}

func TestSimulator_SameSequenceAcrossBudgets(t *testing.T) {
	sim, err := NewSimulator(smallWorkload(), 1000, 10000)
	if err != nil {
		t.Fatalf("NewSimulator() error = %v", err)
	}

	small, err := sim.SimulateRound(1000, 3)
	if err != nil {
		t.Fatalf("SimulateRound() error = %v", err)
	}
	large, err := sim.SimulateRound(10000, 3)
	if err != nil {
		t.Fatalf("SimulateRound() error = %v", err)
	}

	if !slices.Equal(small.KeyAccess, large.KeyAccess) {
		t.Error("rounds with the same index drew different query sequences")
	}
	if len(small.KeyAccess) != 2000 {
		t.Errorf("KeyAccess length = %d, want 2000", len(small.KeyAccess))
	}
}

func TestSimulator_LargerBudgetNeverHitsLess(t *testing.T) {
	sim, err := NewSimulator(smallWorkload(), 500, 2000, 8000)
	if err != nil {
		t.Fatalf("NewSimulator() error = %v", err)
	}

	results, err := sim.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Equal-sized entries make the byte budget an entry count, and LRU hits
	// are monotonic in capacity.
	for round := 0; round < 5; round++ {
		a := results[500].HitRatePerRound[round]
		b := results[2000].HitRatePerRound[round]
		c := results[8000].HitRatePerRound[round]
		if a > b || b > c {
			t.Errorf("round %d hit rates = %.2f, %.2f, %.2f, want non-decreasing", round, a, b, c)
		}
	}
}

func TestSimulator_BudgetBelowEntrySize(t *testing.T) {
	w := smallWorkload()
	sim, err := NewSimulator(w, w.EntrySize-1)
	if err != nil {
		t.Fatalf("NewSimulator() error = %v", err)
	}

	rr, err := sim.SimulateRound(w.EntrySize-1, 0)
	if err != nil {
		t.Fatalf("SimulateRound() error = %v", err)
	}
	if rr.Hits != 0 {
		t.Errorf("Hits = %d, want 0", rr.Hits)
	}
	if rr.Rejected != uint64(w.Queries) {
		t.Errorf("Rejected = %d, want %d", rr.Rejected, w.Queries)
	}
	if rr.PeakEntries != 0 {
		t.Errorf("PeakEntries = %d, want 0", rr.PeakEntries)
	}
}

func TestSimulator_UnboundedBudgetMissesOncePerKey(t *testing.T) {
	w := smallWorkload()
	budget := int64(w.keySpace()) * w.EntrySize
	sim, err := NewSimulator(w, budget)
	if err != nil {
		t.Fatalf("NewSimulator() error = %v", err)
	}

	rr, err := sim.SimulateRound(budget, 1)
	if err != nil {
		t.Fatalf("SimulateRound() error = %v", err)
	}

	unique := make(map[int]struct{})
	for _, k := range rr.KeyAccess {
		unique[k] = struct{}{}
	}
	if rr.Misses != uint64(len(unique)) {
		t.Errorf("Misses = %d, want %d", rr.Misses, len(unique))
	}
	if rr.Evictions != 0 {
		t.Errorf("Evictions = %d, want 0", rr.Evictions)
	}
}

func TestComputeMetrics(t *testing.T) {
	sim, err := NewSimulator(smallWorkload(), 2000)
	if err != nil {
		t.Fatalf("NewSimulator() error = %v", err)
	}
	results, err := sim.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	m := ComputeMetrics(results[2000])
	if m.TotalLookups != 5*2000 {
		t.Errorf("TotalLookups = %d, want %d", m.TotalLookups, 5*2000)
	}
	if m.MinHitRate > m.MedianHitRate || m.MedianHitRate > m.MaxHitRate {
		t.Errorf("hit rate distribution out of order: min=%.2f median=%.2f max=%.2f",
			m.MinHitRate, m.MedianHitRate, m.MaxHitRate)
	}
	// A skewed workload concentrates on few keys.
	if m.KeyConcentration <= 0 {
		t.Errorf("KeyConcentration = %.3f, want > 0", m.KeyConcentration)
	}
	if m.TopKeyPct <= 10 {
		t.Errorf("TopKeyPct = %.1f, want > 10", m.TopKeyPct)
	}
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(&AggregateResult{KeyHits: map[int]int{}})
	if m.HitRate != 0 || m.KeyConcentration != 0 {
		t.Errorf("ComputeMetrics(empty) = %+v, want zero rates", m)
	}
}
