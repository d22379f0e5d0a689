package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/paysim/internal/payload"
)

// Aggregator accumulates outcomes into the run statistics.
// It is not safe for concurrent use.
type Aggregator struct {
	counts           map[Status]int64
	totalAmount      float64
	amountByCurrency map[payload.Currency]float64
	samples          []float64 // seconds, in record order
	hist             *hdrhistogram.Histogram
	errorsByType     map[string]int64
	buckets          map[bucketKey]int
}

func NewAggregator() *Aggregator {
	// Track durations from 1µs up to 120s with 3 significant figures.
	return &Aggregator{
		counts:           make(map[Status]int64, len(Statuses)),
		amountByCurrency: make(map[payload.Currency]float64),
		hist:             hdrhistogram.New(1, 120_000_000, 3),
		errorsByType:     make(map[string]int64),
		buckets:          make(map[bucketKey]int),
	}
}

// Record adds one outcome.
func (a *Aggregator) Record(o Outcome) {
	a.counts[o.Status]++
	a.buckets[bucketKey{status: o.Status, code: o.StatusCode}]++

	seconds := o.DurationSeconds()
	if seconds < 0 {
		seconds = 0
	}
	a.samples = append(a.samples, seconds)

	us := o.Duration.Microseconds()
	if us < a.hist.LowestTrackableValue() {
		us = a.hist.LowestTrackableValue()
	}
	if us > a.hist.HighestTrackableValue() {
		us = a.hist.HighestTrackableValue()
	}
	_ = a.hist.RecordValue(us)

	if o.Status == StatusSuccess {
		a.totalAmount += o.SettledAmount
		a.amountByCurrency[o.Payment.Currency] += o.SettledAmount
		return
	}
	if o.Err != nil {
		a.errorsByType[ErrorLabel(o.Err)]++
	}
}

// Count returns the number of recorded outcomes.
func (a *Aggregator) Count() int64 {
	return int64(len(a.samples))
}

// CountOf returns the number of outcomes recorded with status s.
func (a *Aggregator) CountOf(s Status) int64 {
	return a.counts[s]
}

// TotalAmount returns the sum of settled amounts over successful outcomes.
func (a *Aggregator) TotalAmount() float64 {
	return a.totalAmount
}

// Samples returns a copy of the duration sample in seconds, in record order.
func (a *Aggregator) Samples() []float64 {
	return append([]float64(nil), a.samples...)
}

// Report derives the run report for the given wall-clock elapsed time.
func (a *Aggregator) Report(elapsed time.Duration) Report {
	total := a.Count()
	r := Report{
		TotalRequests:       total,
		SuccessCount:        a.counts[StatusSuccess],
		FailedCount:         a.counts[StatusFailed],
		TimeoutCount:        a.counts[StatusTimeout],
		ErrorCount:          a.counts[StatusError],
		TotalAmount:         RoundAmount(a.totalAmount),
		SuccessRate:         SuccessRate(a.counts[StatusSuccess], total),
		ThroughputPerSecond: Throughput(total, elapsed),
		Elapsed:             elapsed,
		ElapsedSeconds:      elapsed.Seconds(),
		StatusBuckets:       flattenStatusBuckets(a.buckets),
	}

	if len(a.amountByCurrency) > 0 {
		r.AmountByCurrency = make(map[string]float64, len(a.amountByCurrency))
		for currency, amount := range a.amountByCurrency {
			r.AmountByCurrency[string(currency)] = RoundAmount(amount)
		}
	}

	if summary, ok := Summarize(a.samples); ok {
		summary.P50 = a.quantileSeconds(50)
		summary.P90 = a.quantileSeconds(90)
		summary.P99 = a.quantileSeconds(99)
		r.Durations = &summary
	}

	if len(a.errorsByType) > 0 {
		r.Errors = make(map[string]int, len(a.errorsByType))
		for k, v := range a.errorsByType {
			r.Errors[k] = int(v)
		}
	}
	return r
}

func (a *Aggregator) quantileSeconds(q float64) float64 {
	if a.hist.TotalCount() == 0 {
		return 0
	}
	return float64(a.hist.ValueAtQuantile(q)) / 1e6
}
