// Package httpclient is the payment endpoint client used by the scheduler.
//
// [NewClient] builds a pooled *http.Client tuned for load generation; one
// instance is shared by every concurrent dispatch. [PaymentClient] implements
// the runner's Client contract on top of it:
//
//   - Health issues GET /health and treats anything but 200 as unhealthy.
//   - SubmitPayment POSTs the payment as JSON to /api/payments with a fresh
//     Idempotency-Key. A 200 reply yields a receipt whose amount and payment
//     id are read with gjson (paymentId, payment_id or id). Any other status
//     is returned as *runner.HTTPError.
//
// Deadlines come from the caller's context, so timeouts surface as
// context.DeadlineExceeded wrapped in *url.Error.
//
//	client, err := httpclient.NewPaymentClient(httpclient.Options{
//		BaseURL:   "http://localhost:8081",
//		Propagate: provider.ShouldPropagate(),
//	})
package httpclient
