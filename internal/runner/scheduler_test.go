package runner

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/torosent/paysim/internal/metrics"
	"github.com/torosent/paysim/internal/payload"
)

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func fixedAmountClient(amount float64) *fakeClient {
	return &fakeClient{submit: func(context.Context, payload.Payment) (Receipt, error) {
		return Receipt{StatusCode: 200, Amount: amount, HasAmount: true, PaymentID: "pay_x"}, nil
	}}
}

func TestSchedulerNormalModeAllSucceed(t *testing.T) {
	sleeps := &recordedSleeps{}
	s := New(Options{
		Mode:           ModeNormal,
		TotalRequests:  5,
		MaxConcurrency: 3,
		Client:         fixedAmountClient(100),
		Rand:           rand.New(rand.NewSource(1)),
		Sleep:          sleeps.sleep,
	})
	res := s.Run(context.Background())
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	r := res.Report
	if r.SuccessCount != 5 || r.FailedCount != 0 || r.SuccessRate != 1.0 || r.TotalAmount != 500 {
		t.Fatalf("unexpected report: %+v", r)
	}
	if len(r.Cycles) != 5 {
		t.Fatalf("expected 5 single-request cycles, got %v", r.Cycles)
	}
	if len(sleeps.delays) != 4 {
		t.Fatalf("expected 4 delays (none after last cycle), got %d", len(sleeps.delays))
	}
	for _, d := range sleeps.delays {
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("normal delay %v out of range", d)
		}
	}
	if s.State() != StateDone {
		t.Fatalf("expected done state, got %s", s.State())
	}
}

func TestSchedulerPeakCycles(t *testing.T) {
	sleeps := &recordedSleeps{}
	log := &eventLog{}
	res := New(Options{
		Mode:           ModePeak,
		TotalRequests:  10,
		MaxConcurrency: 4,
		Client:         fixedAmountClient(1),
		Sleep:          sleeps.sleep,
		Observers:      []Observer{log},
	}).Run(context.Background())

	want := []int{4, 4, 2}
	if len(res.Report.Cycles) != len(want) {
		t.Fatalf("cycles = %v, want %v", res.Report.Cycles, want)
	}
	for i := range want {
		if res.Report.Cycles[i] != want[i] {
			t.Fatalf("cycles = %v, want %v", res.Report.Cycles, want)
		}
	}
	if len(sleeps.delays) != 2 || sleeps.delays[0] != 500*time.Millisecond || sleeps.delays[1] != 500*time.Millisecond {
		t.Fatalf("expected two 500ms delays, got %v", sleeps.delays)
	}

	started := log.kinds(EventCycleStarted)
	if len(started) != 3 || started[0].Size != 4 || started[2].Size != 2 {
		t.Fatalf("unexpected cycle events: %+v", started)
	}
	finished := log.kinds(EventCycleFinished)
	if last := finished[len(finished)-1]; last.Delay != 0 {
		t.Fatalf("final cycle must not announce a delay, got %v", last.Delay)
	}
	if got := len(log.kinds(EventOutcome)); got != 10 {
		t.Fatalf("expected 10 outcome events, got %d", got)
	}
}

func TestSchedulerDispatchesEverySequenceOnce(t *testing.T) {
	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			log := &eventLog{}
			client := fixedAmountClient(1)
			res := New(Options{
				Mode:           mode,
				TotalRequests:  23,
				MaxConcurrency: 5,
				Client:         client,
				Seed:           11,
				Sleep:          func(ctx context.Context, d time.Duration) error { return nil },
				Observers:      []Observer{log},
			}).Run(context.Background())

			if res.Report.TotalRequests != 23 {
				t.Fatalf("expected 23 outcomes, got %d", res.Report.TotalRequests)
			}
			seen := make(map[int]bool)
			for _, e := range log.kinds(EventOutcome) {
				if seen[e.Outcome.Seq] {
					t.Fatalf("sequence %d dispatched twice", e.Outcome.Seq)
				}
				seen[e.Outcome.Seq] = true
			}
			for i := 1; i <= 23; i++ {
				if !seen[i] {
					t.Fatalf("sequence %d skipped", i)
				}
			}
			if peak := atomic.LoadInt64(&client.peak); peak > 5 {
				t.Fatalf("in-flight peak %d exceeds 5", peak)
			}
		})
	}
}

func TestSchedulerHealthFailureAborts(t *testing.T) {
	client := &fakeClient{healthErr: errors.New("connection refused")}
	log := &eventLog{}
	res := New(Options{
		Mode:           ModeStress,
		TotalRequests:  10,
		MaxConcurrency: 2,
		Client:         client,
		Observers:      []Observer{log},
	}).Run(context.Background())

	if !errors.Is(res.Err, ErrHealthCheckFailed) {
		t.Fatalf("expected ErrHealthCheckFailed, got %v", res.Err)
	}
	if !res.Report.Aborted || res.Report.AbortReason == "" {
		t.Fatalf("report must be marked aborted: %+v", res.Report)
	}
	if res.Report.TotalRequests != 0 || atomic.LoadInt64(&client.calls) != 0 {
		t.Fatal("no payment may be dispatched after a failed health probe")
	}
	if got := len(log.kinds(EventCycleStarted)); got != 0 {
		t.Fatalf("expected no cycles, got %d", got)
	}
	states := log.kinds(EventStateChanged)
	if len(states) != 1 || states[0].State != StateDone || states[0].Reason == "" {
		t.Fatalf("expected a single Done transition with reason, got %+v", states)
	}
}

func TestSchedulerInterruptStopsNewCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int64
	client := &fakeClient{submit: func(reqCtx context.Context, p payload.Payment) (Receipt, error) {
		if atomic.AddInt64(&calls, 1) == 2 {
			cancel()
		}
		time.Sleep(2 * time.Millisecond)
		if reqCtx.Err() != nil {
			return Receipt{}, reqCtx.Err()
		}
		return Receipt{StatusCode: 200}, nil
	}}

	res := New(Options{
		Mode:           ModeBurst,
		TotalRequests:  50,
		MaxConcurrency: 1,
		Client:         client,
		Sleep:          sleepContext,
	}).Run(ctx)

	if !res.Report.Interrupted {
		t.Fatal("expected interrupted report")
	}
	if res.Err != nil {
		t.Fatalf("interrupt is not an error, got %v", res.Err)
	}
	if res.Report.TotalRequests != 2 {
		t.Fatalf("expected 2 recorded outcomes, got %d", res.Report.TotalRequests)
	}
	if res.Report.SuccessCount != 2 {
		t.Fatalf("in-flight request should finish after interrupt, got %+v", res.Report)
	}
}

func TestSchedulerReproducibleUnderSeed(t *testing.T) {
	run := func() []payload.Payment {
		client := fixedAmountClient(1)
		New(Options{
			Mode:           ModeRealistic,
			TotalRequests:  30,
			MaxConcurrency: 3,
			Client:         client,
			Seed:           99,
			Sleep:          func(context.Context, time.Duration) error { return nil },
		}).Run(context.Background())
		client.mu.Lock()
		defer client.mu.Unlock()
		seen := append([]payload.Payment(nil), client.seen...)
		return seen
	}
	a, b := run(), run()
	totalA, totalB := 0.0, 0.0
	for i := range a {
		totalA += a[i].Amount
		totalB += b[i].Amount
	}
	if len(a) != 30 || len(b) != 30 || totalA != totalB {
		t.Fatalf("runs with the same seed differ: %v vs %v", totalA, totalB)
	}
}

func TestSchedulerRateLimiterWaitsPerCycle(t *testing.T) {
	var waited []int
	res := New(Options{
		Mode:           ModePeak,
		TotalRequests:  6,
		MaxConcurrency: 3,
		RatePerSecond:  1000,
		Client:         fixedAmountClient(1),
		Sleep:          func(context.Context, time.Duration) error { return nil },
		LimiterFactory: func(rps, burst int) *rate.Limiter {
			if rps != 1000 || burst != 3 {
				t.Errorf("unexpected limiter args rps=%d burst=%d", rps, burst)
			}
			waited = append(waited, burst)
			return rate.NewLimiter(rate.Inf, burst)
		},
	}).Run(context.Background())
	if res.Report.TotalRequests != 6 || len(waited) != 1 {
		t.Fatalf("unexpected run: total=%d limiter builds=%d", res.Report.TotalRequests, len(waited))
	}
}

func TestSchedulerLogsRunAndOutcomes(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	client := &fakeClient{submit: func(context.Context, payload.Payment) (Receipt, error) {
		return Receipt{}, &HTTPError{StatusCode: 402}
	}}
	res := New(Options{
		RunID:          "01TEST",
		Mode:           ModeBurst,
		TotalRequests:  2,
		MaxConcurrency: 1,
		Client:         client,
		Logger:         zap.New(core),
		Sleep:          func(context.Context, time.Duration) error { return nil },
	}).Run(context.Background())

	if res.Report.FailedCount != 2 || res.Report.RunID != "01TEST" || res.Report.Mode != "burst" {
		t.Fatalf("unexpected report: %+v", res.Report)
	}
	if logs.FilterMessage("health probe passed").Len() != 1 {
		t.Fatal("expected health probe log")
	}
	unsettled := logs.FilterMessage("payment not settled").All()
	if len(unsettled) != 2 {
		t.Fatalf("expected 2 unsettled logs, got %d", len(unsettled))
	}
	if unsettled[0].ContextMap()["run_id"] != "01TEST" {
		t.Fatalf("outcome log missing run id: %v", unsettled[0].ContextMap())
	}
	for _, entry := range logs.FilterMessage("state changed").All() {
		if entry.ContextMap()["run_id"] != "01TEST" {
			t.Fatalf("state log missing run id: %v", entry.ContextMap())
		}
	}
	if res.Report.StatusBuckets[0].Status != metrics.StatusFailed || res.Report.StatusBuckets[0].Code != 402 {
		t.Fatalf("unexpected buckets: %+v", res.Report.StatusBuckets)
	}
}
