package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/paysim/internal/metrics"
	"github.com/torosent/paysim/internal/payload"
)

var errNoClient = errors.New("runner: client is required")

// Result captures the run summary.
type Result struct {
	Report   metrics.Report
	Duration time.Duration
	// Err is non-nil only when the run aborted before dispatching, wrapping
	// ErrHealthCheckFailed for a failed probe.
	Err error
}

// Scheduler drives mode cycles against the Client and aggregates outcomes.
// Run must not be called concurrently.
type Scheduler struct {
	opt     Options
	exec    *executor
	gen     *payload.Generator
	limiter *rate.Limiter
	logger  *zap.Logger
	state   State
}

func New(opt Options) *Scheduler {
	opt.normalize()
	opt.Logger = opt.Logger.With(zap.String("run_id", opt.RunID), zap.String("mode", string(opt.Mode)))
	return &Scheduler{
		opt:     opt,
		exec:    newExecutor(opt),
		gen:     opt.newGenerator(),
		limiter: opt.LimiterFactory(opt.RatePerSecond, opt.MaxConcurrency),
		logger:  opt.Logger,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

func (s *Scheduler) Run(ctx context.Context) Result {
	agg := metrics.NewAggregator()
	if s.opt.Client == nil {
		return s.abort(agg, errNoClient)
	}

	if err := s.probe(ctx); err != nil {
		s.logger.Error("health probe failed, no payments dispatched", zap.Error(err))
		return s.abort(agg, err)
	}
	s.logger.Info("health probe passed")

	start := time.Now()
	s.transition(StateDispatching, "")

	// In-flight payments finish or time out on their own after an interrupt.
	dispatchCtx := context.WithoutCancel(ctx)

	var (
		cycles      []int
		seq         int
		interrupted bool
	)
	remaining := s.opt.TotalRequests
	for remaining > 0 {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		size := planCycle(s.opt.Mode, remaining, s.opt.MaxConcurrency, s.opt.Rand)
		if s.limiter != nil {
			if err := s.limiter.WaitN(ctx, size); err != nil {
				if ctx.Err() != nil {
					interrupted = true
					break
				}
				s.logger.Warn("rate limiter wait failed", zap.Int("size", size), zap.Error(err))
			}
		}

		batch := make([]dispatch, size)
		for i := range batch {
			seq++
			batch[i] = dispatch{seq: seq, payment: s.gen.Generate()}
		}
		remaining -= size
		cycles = append(cycles, size)
		cycle := len(cycles)

		s.publish(Event{Kind: EventCycleStarted, Cycle: cycle, Size: size})
		for _, o := range s.exec.run(dispatchCtx, batch) {
			agg.Record(o)
			s.publish(Event{Kind: EventOutcome, Cycle: cycle, Outcome: o})
		}

		var delay time.Duration
		if remaining > 0 {
			delay = cycleDelay(s.opt.Mode, s.opt.Rand)
		}
		s.publish(Event{Kind: EventCycleFinished, Cycle: cycle, Size: size, Delay: delay})

		if delay > 0 {
			if err := s.opt.Sleep(ctx, delay); err != nil {
				interrupted = true
				break
			}
		}
	}

	if interrupted {
		s.logger.Warn("interrupted, no further cycles will start",
			zap.Int("dispatched", seq),
			zap.Int("total", s.opt.TotalRequests),
		)
	}

	s.transition(StateDraining, "")
	s.transition(StateDone, "")

	elapsed := time.Since(start)
	report := s.fill(agg.Report(elapsed))
	report.Cycles = cycles
	report.Interrupted = interrupted
	return Result{Report: report, Duration: elapsed}
}

func (s *Scheduler) probe(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, s.opt.HealthTimeout)
	defer cancel()

	if err := s.opt.Client.Health(healthCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrHealthCheckFailed, err)
	}
	return nil
}

func (s *Scheduler) abort(agg *metrics.Aggregator, err error) Result {
	s.transition(StateDone, err.Error())
	report := s.fill(agg.Report(0))
	report.Aborted = true
	report.AbortReason = err.Error()
	return Result{Report: report, Err: err}
}

func (s *Scheduler) fill(r metrics.Report) metrics.Report {
	r.RunID = s.opt.RunID
	r.Mode = string(s.opt.Mode)
	r.Seed = s.opt.Seed
	return r
}

func (s *Scheduler) transition(to State, reason string) {
	s.state = to
	s.logger.Debug("state changed", zap.Stringer("state", to), zap.String("reason", reason))
	s.publish(Event{Kind: EventStateChanged, State: to, Reason: reason})
}

func (s *Scheduler) publish(e Event) {
	if len(s.opt.Observers) == 0 {
		return
	}
	e.Time = time.Now()
	e.Mode = s.opt.Mode
	if e.Kind != EventStateChanged {
		e.State = s.state
	}
	for _, o := range s.opt.Observers {
		o.Observe(e)
	}
}
