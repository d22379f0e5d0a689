package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/paysim/internal/metrics"
	"github.com/torosent/paysim/internal/payload"
	"github.com/torosent/paysim/internal/tracing"
)

// dispatch is one sequence number paired with its pre-generated payment.
type dispatch struct {
	seq     int
	payment payload.Payment
}

// executor runs a batch of dispatches concurrently and waits for all of them.
type executor struct {
	client  Client
	timeout time.Duration
	limit   int
	tracer  trace.Tracer
	logger  *zap.Logger
}

func newExecutor(opt Options) *executor {
	return &executor{
		client:  opt.Client,
		timeout: opt.Timeout,
		limit:   opt.MaxConcurrency,
		tracer:  opt.Tracer,
		logger:  opt.Logger,
	}
}

// run returns exactly one outcome per dispatch, in completion order.
// A failing member never cancels the others.
func (e *executor) run(ctx context.Context, batch []dispatch) []metrics.Outcome {
	results := make(chan metrics.Outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(e.limit)
	for _, d := range batch {
		g.Go(func() error {
			results <- e.submit(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	outcomes := make([]metrics.Outcome, 0, len(batch))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (e *executor) submit(ctx context.Context, d dispatch) metrics.Outcome {
	ctx, span := tracing.StartPaymentSpan(ctx, e.tracer, d.seq, d.payment)

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	receipt, err := e.client.SubmitPayment(reqCtx, d.payment)
	elapsed := time.Since(start)

	status, code := classify(err)
	o := metrics.Outcome{
		Seq:        d.seq,
		Status:     status,
		Duration:   elapsed,
		Payment:    d.payment,
		StatusCode: code,
		Err:        err,
	}
	if status == metrics.StatusSuccess {
		o.StatusCode = receipt.StatusCode
		o.PaymentID = receipt.PaymentID
		o.SettledAmount = d.payment.Amount
		if receipt.HasAmount {
			o.SettledAmount = receipt.Amount
		}
	} else {
		e.logger.Debug("payment not settled",
			zap.Int("seq", d.seq),
			zap.String("status", string(status)),
			zap.Int("http_status", code),
			zap.Error(err),
		)
	}

	tracing.EndPaymentSpan(span, string(status), o.SettledAmount, err)
	return o
}
