package runner

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/paysim/internal/payload"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultHealthTimeout = 5 * time.Second
)

// Mode selects the dispatch policy.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeBurst     Mode = "burst"
	ModePeak      Mode = "peak"
	ModeStress    Mode = "stress"
	ModeRealistic Mode = "realistic"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeNormal, ModeBurst, ModePeak, ModeStress, ModeRealistic}

// ParseMode converts a case-insensitive name to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Receipt is what the endpoint confirmed for an accepted payment.
type Receipt struct {
	PaymentID  string
	Amount     float64
	HasAmount  bool // false when the response omitted the amount
	StatusCode int
}

// Client abstracts the payment endpoint. Implementations must be safe for
// concurrent use.
type Client interface {
	// Health returns nil when the endpoint is healthy.
	Health(ctx context.Context) error
	// SubmitPayment posts one payment. A non-200 response is returned as *HTTPError.
	SubmitPayment(ctx context.Context, p payload.Payment) (Receipt, error)
}

// Options configure the Scheduler.
type Options struct {
	RunID          string
	Mode           Mode
	TotalRequests  int           // requests to dispatch (>= 1)
	MaxConcurrency int           // upper bound on in-flight requests
	Timeout        time.Duration // per-request deadline
	HealthTimeout  time.Duration // health probe deadline
	RatePerSecond  int           // optional dispatch cap (0 means unlimited)
	Seed           int64         // seeds Rand when Rand is nil
	Rand           *rand.Rand    // drives cycle planning, delays and payloads
	Client         Client        // endpoint client (required)
	Observers      []Observer
	Logger         *zap.Logger
	Tracer         trace.Tracer

	Sleep          func(ctx context.Context, d time.Duration) error // optional injection for tests
	LimiterFactory func(rps, burst int) *rate.Limiter                // optional injection for tests
}

func (o *Options) normalize() {
	if o.Mode == "" {
		o.Mode = ModeNormal
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HealthTimeout <= 0 {
		o.HealthTimeout = DefaultHealthTimeout
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(o.Seed))
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("paysim")
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps, burst int) *rate.Limiter {
			if rps <= 0 {
				return nil
			}
			// Burst must cover the largest cycle or WaitN fails outright.
			if burst < rps {
				burst = rps
			}
			return rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newGenerator returns a payload generator sharing the scheduler's random source.
func (o *Options) newGenerator() *payload.Generator {
	return payload.NewGenerator(o.Rand)
}
