package simulation

import (
	"sort"
)

// Metrics contains computed metrics from simulation results.
type Metrics struct {
	// Core metrics.
	TotalLookups   int
	HitRate        float64
	UniqueKeys     int
	TotalEvictions uint64
	TotalRejected  uint64

	// Distribution of per-round hit rates.
	MedianHitRate float64
	P10HitRate    float64
	MinHitRate    float64
	MaxHitRate    float64

	// Locality metrics.
	KeyConcentration float64 // Gini coefficient of key usage.
	TopKeyPct        float64 // Percentage of lookups on the top 10% of keys.
}

// ComputeMetrics computes detailed metrics from aggregate results.
func ComputeMetrics(result *AggregateResult) *Metrics {
	m := &Metrics{
		TotalLookups:   result.TotalLookups,
		HitRate:        result.HitRate(),
		UniqueKeys:     result.UniqueKeys,
		TotalEvictions: result.TotalEvictions,
		TotalRejected:  result.TotalRejected,
	}

	if len(result.HitRatePerRound) > 0 {
		sorted := make([]float64, len(result.HitRatePerRound))
		copy(sorted, result.HitRatePerRound)
		sort.Float64s(sorted)

		m.MinHitRate = sorted[0]
		m.MaxHitRate = sorted[len(sorted)-1]
		m.MedianHitRate = percentile(sorted, 50)
		m.P10HitRate = percentile(sorted, 10)
	}

	if len(result.KeyHits) > 0 {
		m.KeyConcentration = computeGini(result.KeyHits)
		m.TopKeyPct = computeTopKeyPct(result.KeyHits, result.TotalLookups, 0.1)
	}

	return m
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p / 100)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func computeGini(hits map[int]int) float64 {
	values := make([]int, 0, len(hits))
	for _, v := range hits {
		values = append(values, v)
	}
	sort.Ints(values)

	n := float64(len(values))
	var sum, cumulativeSum float64
	for i, v := range values {
		sum += float64(v)
		cumulativeSum += float64(i+1) * float64(v)
	}
	if sum == 0 {
		return 0
	}
	return (2*cumulativeSum)/(n*sum) - (n+1)/n
}

func computeTopKeyPct(hits map[int]int, total int, topFraction float64) float64 {
	if total == 0 || len(hits) == 0 {
		return 0
	}

	counts := make([]int, 0, len(hits))
	for _, h := range hits {
		counts = append(counts, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	topCount := max(int(float64(len(counts))*topFraction), 1)
	var topHits int
	for _, h := range counts[:min(topCount, len(counts))] {
		topHits += h
	}
	return float64(topHits) / float64(total) * 100
}
