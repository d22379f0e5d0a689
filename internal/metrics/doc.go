// Package metrics records classified request outcomes and derives the run report.
//
// # Outcomes
//
// Every dispatched payment yields exactly one [Outcome] with a [Status]:
// success, failed (business rejection), timeout, or error (transport fault).
//
// # Aggregator
//
// The [Aggregator] keeps running counters, the settled amount, and the ordered
// duration sample of a run:
//
//	agg := metrics.NewAggregator()
//	for _, o := range outcomes {
//		agg.Record(o)
//	}
//	report := agg.Report(elapsed)
//
// The Aggregator has no internal locking. It is owned by the single goroutine
// that receives completed batches and must not be shared.
//
// # Summaries
//
// [Percentile] and [Summarize] are pure functions over an explicit sample.
// P95 uses nearest-rank indexing (sorted[floor(n*0.95)], clamped to n-1) and
// never interpolates. P50/P90/P99 in the report come from an HDR histogram and
// are approximate.
package metrics
