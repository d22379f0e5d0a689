package metrics

import (
	"math"
	"time"
)

// Report is the end-of-run summary. Run-level fields (RunID, Mode, Seed,
// Cycles, Aborted, Interrupted) are filled in by the scheduler.
type Report struct {
	RunID string `json:"runId" yaml:"runId"`
	Mode  string `json:"mode" yaml:"mode"`
	Seed  int64  `json:"seed" yaml:"seed"`

	TotalRequests int64 `json:"totalRequests" yaml:"totalRequests"`
	SuccessCount  int64 `json:"successCount" yaml:"successCount"`
	FailedCount   int64 `json:"failedCount" yaml:"failedCount"`
	TimeoutCount  int64 `json:"timeoutCount" yaml:"timeoutCount"`
	ErrorCount    int64 `json:"errorCount" yaml:"errorCount"`

	TotalAmount      float64            `json:"totalAmount" yaml:"totalAmount"`
	AmountByCurrency map[string]float64 `json:"amountByCurrency,omitempty" yaml:"amountByCurrency,omitempty"`

	SuccessRate         float64       `json:"successRate" yaml:"successRate"`
	ThroughputPerSecond float64       `json:"throughputPerSecond" yaml:"throughputPerSecond"`
	Elapsed             time.Duration `json:"-" yaml:"-"`
	ElapsedSeconds      float64       `json:"elapsedSeconds" yaml:"elapsedSeconds"`

	// Durations is nil when nothing was recorded.
	Durations *DurationSummary `json:"durationSeconds,omitempty" yaml:"durationSeconds,omitempty"`

	StatusBuckets []StatusBucket `json:"statusBuckets,omitempty" yaml:"statusBuckets,omitempty"`
	Errors        map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
	Cycles        []int          `json:"cycles,omitempty" yaml:"cycles,omitempty"`

	Aborted     bool   `json:"aborted" yaml:"aborted"`
	AbortReason string `json:"abortReason,omitempty" yaml:"abortReason,omitempty"`
	Interrupted bool   `json:"interrupted" yaml:"interrupted"`
}

// Unsuccessful returns failed + timeout + error counts.
func (r Report) Unsuccessful() int64 {
	return r.FailedCount + r.TimeoutCount + r.ErrorCount
}

// RoundAmount rounds a monetary sum to cents.
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
