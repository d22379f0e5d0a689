// Package runner drives synthetic payment traffic against an endpoint.
//
// The [Scheduler] is a small state machine (idle, dispatching, draining, done).
// After a successful health probe it repeatedly plans a cycle for the configured
// [Mode], hands the cycle's sequence numbers to the batch executor, records the
// outcomes, and pauses for the mode's inter-cycle delay:
//
//	mode       cycle size                              delay
//	normal     1                                       uniform 1-3s
//	burst      1                                       0.1s
//	peak       min(concurrency, remaining)             0.5s
//	stress     min(concurrency, remaining)             0.01s
//	realistic  3 with p=0.30 when >=3 remain, else 1   uniform 0.5-5s
//
// The delay is never applied after the final cycle.
//
// # Basic Usage
//
//	s := runner.New(runner.Options{
//		Mode:           runner.ModePeak,
//		TotalRequests:  100,
//		MaxConcurrency: 5,
//		Client:         client,
//	})
//	result := s.Run(ctx)
//
// Cancelling ctx stops new cycles; a batch already in flight runs to completion
// or to its per-request timeout, and the report covers what was recorded.
//
// # Events
//
// Progress is published as [Event] records to every configured [Observer] from
// the scheduler goroutine. Observers must return quickly.
//
// # Client
//
// The [Client] contract is what the engine needs from the endpoint: a health
// probe and a payment submission. A business rejection is reported as an
// [*HTTPError]; any other error is a timeout or transport fault.
package runner
