package metrics

import (
	"time"

	"github.com/torosent/paysim/internal/payload"
)

// Status classifies the result of one dispatched payment.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusSuccess, StatusFailed, StatusTimeout, StatusError}

// Outcome is the classified result of one dispatched request.
type Outcome struct {
	Seq      int
	Status   Status
	Duration time.Duration
	// SettledAmount is only meaningful when Status is StatusSuccess.
	SettledAmount float64
	Payment       payload.Payment
	PaymentID     string
	StatusCode    int
	Err           error
}

// DurationSeconds returns the measured duration in seconds.
func (o Outcome) DurationSeconds() float64 {
	return o.Duration.Seconds()
}

// Succeeded reports whether the endpoint confirmed the payment.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}
