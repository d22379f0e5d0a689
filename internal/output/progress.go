package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/paysim/internal/metrics"
	"github.com/torosent/paysim/internal/runner"
)

const maxErrorMessage = 50

// OutcomePrinter writes one line per outcome and announces batches.
type OutcomePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewOutcomePrinter(w io.Writer) *OutcomePrinter {
	if w == nil {
		w = io.Discard
	}
	return &OutcomePrinter{w: w}
}

func (p *OutcomePrinter) Observe(e runner.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case runner.EventCycleStarted:
		if e.Size > 1 {
			fmt.Fprintf(p.w, "[batch of %d]\n", e.Size)
		}
	case runner.EventOutcome:
		fmt.Fprintln(p.w, FormatOutcome(e.Outcome))
	}
}

// FormatOutcome renders a single progress line.
func FormatOutcome(o metrics.Outcome) string {
	pay := o.Payment
	secs := o.DurationSeconds()
	switch o.Status {
	case metrics.StatusSuccess:
		id := o.PaymentID
		if id == "" {
			id = "N/A"
		}
		return fmt.Sprintf("[%d] OK %s | %.2f %s | Customer: %s | %.3fs", o.Seq, id, o.SettledAmount, pay.Currency, pay.CustomerID, secs)
	case metrics.StatusFailed:
		return fmt.Sprintf("[%d] FAIL HTTP %d | %.2f %s | Customer: %s | %.3fs", o.Seq, o.StatusCode, pay.Amount, pay.Currency, pay.CustomerID, secs)
	case metrics.StatusTimeout:
		return fmt.Sprintf("[%d] TIMEOUT | %.2f %s | %.3fs", o.Seq, pay.Amount, pay.Currency, secs)
	default:
		msg := "unknown error"
		if o.Err != nil {
			msg = o.Err.Error()
		}
		if r := []rune(msg); len(r) > maxErrorMessage {
			msg = string(r[:maxErrorMessage])
		}
		return fmt.Sprintf("[%d] ERROR: %s | %.3fs", o.Seq, msg, secs)
	}
}

// ProgressReporter displays a periodically refreshed status line. It counts
// outcomes as a runner.Observer.
type ProgressReporter struct {
	total     int
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
	completed atomic.Int64
	successes atomic.Int64
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(total int, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		total:    total,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

func (p *ProgressReporter) Observe(e runner.Event) {
	if e.Kind != runner.EventOutcome {
		return
	}
	p.completed.Add(1)
	if e.Outcome.Succeeded() {
		p.successes.Add(1)
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return
	}
	go p.run()
}

// Stop halts progress updates and terminates the status line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line())
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	completed := p.completed.Load()
	successes := p.successes.Load()
	rps := 0.0
	if elapsed := time.Since(p.start).Seconds(); elapsed > 0 {
		rps = float64(completed) / elapsed
	}
	return fmt.Sprintf("\rPayments: %d/%d | OK: %d | Failed: %d | RPS: %.1f",
		completed, p.total, successes, completed-successes, rps)
}
