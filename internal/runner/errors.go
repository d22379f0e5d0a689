package runner

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/torosent/paysim/internal/metrics"
)

// ErrHealthCheckFailed marks a run aborted by a failed initial health probe.
var ErrHealthCheckFailed = errors.New("health check failed")

// HTTPError represents a non-200 response from the endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// classify maps a SubmitPayment error to an outcome status and HTTP code.
func classify(err error) (metrics.Status, int) {
	if err == nil {
		return metrics.StatusSuccess, 0
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return metrics.StatusFailed, httpErr.StatusCode
	}
	if isTimeout(err) {
		return metrics.StatusTimeout, 0
	}
	return metrics.StatusError, 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
