package metrics

import (
	"math"
	"sort"
	"time"
)

// DurationSummary aggregates a duration sample, in seconds.
type DurationSummary struct {
	Avg float64 `json:"avg" yaml:"avg"`
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
	P95 float64 `json:"p95" yaml:"p95"`

	// Histogram-backed quantiles, filled by the Aggregator.
	P50 float64 `json:"p50,omitempty" yaml:"p50,omitempty"`
	P90 float64 `json:"p90,omitempty" yaml:"p90,omitempty"`
	P99 float64 `json:"p99,omitempty" yaml:"p99,omitempty"`
}

// Percentile returns the nearest-rank percentile of samples for p in [0,1]:
// sorted[floor(n*p)], with the index clamped to n-1. The input is not modified.
// ok is false when samples is empty.
func Percentile(samples []float64, p float64) (value float64, ok bool) {
	if len(samples) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return nearestRank(sorted, p), true
}

func nearestRank(sorted []float64, p float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Summarize computes avg/min/max/p95 over samples. ok is false when samples is empty.
func Summarize(samples []float64) (summary DurationSummary, ok bool) {
	if len(samples) == 0 {
		return DurationSummary{}, false
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return DurationSummary{
		Avg: sum / float64(len(sorted)),
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		P95: nearestRank(sorted, 0.95),
	}, true
}

// SuccessRate returns successes/total, or 0 when total is 0.
func SuccessRate(successes, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

// Throughput returns total/elapsed in requests per second, or 0 when elapsed <= 0.
func Throughput(total int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(total) / elapsed.Seconds()
}
