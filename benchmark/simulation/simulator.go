// Package simulation replays synthetic query workloads against the query cache
// to compare byte budgets.
package simulation

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/mangoshelf/libcache/internal/cachekey"
	"github.com/mangoshelf/libcache/internal/querycache"
)

// Workload describes a synthetic stream of library queries.
//
// Queries are drawn from a Zipf distribution over (title, user, sort) triples,
// so a small set of popular listings dominates, as it does for a real reader
// population.
type Workload struct {
	Titles    int     // Distinct titles in the library.
	Users     int     // Distinct users issuing queries.
	Sorts     int     // Distinct sort orders per listing.
	Queries   int     // Queries per round.
	Rounds    int     // Independent rounds, each against a fresh cache.
	Skew      float64 // Zipf exponent; must be > 1.
	EntrySize int64   // Bytes charged per cached listing.
	Seed      uint64
}

// DefaultWorkload returns a modest workload that runs in well under a second.
func DefaultWorkload() Workload {
	return Workload{
		Titles:    500,
		Users:     8,
		Sorts:     3,
		Queries:   20000,
		Rounds:    20,
		Skew:      1.1,
		EntrySize: 4 << 10,
		Seed:      1,
	}
}

// Validate reports whether the workload can be simulated.
func (w Workload) Validate() error {
	switch {
	case w.Titles <= 0 || w.Users <= 0 || w.Sorts <= 0:
		return fmt.Errorf("workload needs at least one title, user and sort order")
	case w.Queries <= 0 || w.Rounds <= 0:
		return fmt.Errorf("workload needs at least one query and round")
	case w.Skew <= 1:
		return fmt.Errorf("zipf skew must be > 1, got %v", w.Skew)
	case w.EntrySize <= 0:
		return fmt.Errorf("entry size must be positive, got %d", w.EntrySize)
	}
	return nil
}

func (w Workload) keySpace() int {
	return w.Titles * w.Users * w.Sorts
}

// Simulator replays one workload against several cache budgets.
type Simulator struct {
	workload Workload
	budgets  []int64
	keys     []cachekey.Key
}

// NewSimulator creates a Simulator for the given workload and budgets.
func NewSimulator(w Workload, budgets ...int64) (*Simulator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return nil, fmt.Errorf("no budgets to simulate")
	}
	for _, b := range budgets {
		if b <= 0 {
			return nil, fmt.Errorf("budget must be positive, got %d", b)
		}
	}
	return &Simulator{
		workload: w,
		budgets:  budgets,
		keys:     buildKeys(w),
	}, nil
}

// buildKeys lays out the key space so that low ranks are the popular listings.
func buildKeys(w Workload) []cachekey.Key {
	keys := make([]cachekey.Key, 0, w.keySpace())
	for t := 0; t < w.Titles; t++ {
		for u := 0; u < w.Users; u++ {
			for s := 0; s < w.Sorts; s++ {
				keys = append(keys, cachekey.Key{
					Namespace:   cachekey.SortedEntries,
					Item:        "t" + strconv.Itoa(t),
					User:        "u" + strconv.Itoa(u),
					Fingerprint: strconv.Itoa(t),
					SortField:   "f" + strconv.Itoa(s),
					Ascending:   true,
				})
			}
		}
	}
	return keys
}

// SimulateRound runs one round against a fresh cache with the given budget.
// Rounds with the same index draw the same query sequence for every budget.
func (s *Simulator) SimulateRound(budget int64, round int) (*RoundResult, error) {
	c, err := querycache.New(budget, querycache.Options{})
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(s.workload.Seed, uint64(round)))
	zipf := rand.NewZipf(rng, s.workload.Skew, 1, uint64(len(s.keys)-1))

	result := &RoundResult{
		Budget:    budget,
		KeyAccess: make([]int, 0, s.workload.Queries),
	}
	for i := 0; i < s.workload.Queries; i++ {
		idx := int(zipf.Uint64())
		result.KeyAccess = append(result.KeyAccess, idx)

		key := s.keys[idx]
		if _, ok := c.Get(key); ok {
			continue
		}
		c.Put(key, idx, s.workload.EntrySize)
	}

	st := c.Stats()
	result.Hits = st.Hits
	result.Misses = st.Misses
	result.Evictions = st.Evictions
	result.Rejected = st.Rejected
	result.PeakEntries = st.Entries
	return result, nil
}

// Run simulates every round for every budget and aggregates the results,
// keyed by budget.
func (s *Simulator) Run() (map[int64]*AggregateResult, error) {
	results := make(map[int64]*AggregateResult, len(s.budgets))
	for _, budget := range s.budgets {
		agg := &AggregateResult{
			Budget:            budget,
			KeyHits:           make(map[int]int),
			HitRatePerRound:   make([]float64, 0, s.workload.Rounds),
			EvictionsPerRound: make([]uint64, 0, s.workload.Rounds),
		}
		for round := 0; round < s.workload.Rounds; round++ {
			rr, err := s.SimulateRound(budget, round)
			if err != nil {
				return nil, err
			}
			agg.add(rr)
		}
		agg.UniqueKeys = len(agg.KeyHits)
		results[budget] = agg
	}
	return results, nil
}

// Workload returns the simulated workload.
func (s *Simulator) Workload() Workload {
	return s.workload
}

// RoundResult contains the outcome of a single round.
type RoundResult struct {
	Budget      int64
	KeyAccess   []int // Key ranks accessed in order.
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Rejected    uint64
	PeakEntries int // Entries resident at the end of the round.
}

// HitRate returns the round's hit rate as a percentage.
func (r *RoundResult) HitRate() float64 {
	total := r.Hits + r.Misses
	if total == 0 {
		return 0
	}
	return float64(r.Hits) / float64(total) * 100
}

// AggregateResult contains results aggregated across rounds for one budget.
type AggregateResult struct {
	Budget            int64
	TotalLookups      int
	TotalHits         uint64
	TotalEvictions    uint64
	TotalRejected     uint64
	UniqueKeys        int
	KeyHits           map[int]int // Key rank -> access count.
	HitRatePerRound   []float64   // Hit rate percentage per round.
	EvictionsPerRound []uint64
}

func (a *AggregateResult) add(rr *RoundResult) {
	a.TotalLookups += len(rr.KeyAccess)
	a.TotalHits += rr.Hits
	a.TotalEvictions += rr.Evictions
	a.TotalRejected += rr.Rejected
	a.HitRatePerRound = append(a.HitRatePerRound, rr.HitRate())
	a.EvictionsPerRound = append(a.EvictionsPerRound, rr.Evictions)
	for _, k := range rr.KeyAccess {
		a.KeyHits[k]++
	}
}

// HitRate returns the overall hit rate as a percentage.
func (a *AggregateResult) HitRate() float64 {
	if a.TotalLookups == 0 {
		return 0
	}
	return float64(a.TotalHits) / float64(a.TotalLookups) * 100
}
