package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/torosent/paysim/internal/payload"
	"github.com/torosent/paysim/internal/runner"
	"github.com/torosent/paysim/internal/tracing"
)

const (
	healthPath   = "/health"
	paymentsPath = "/api/payments"

	maxResponseBytes = 64 << 10
	maxErrorBody     = 200
)

// paymentIDPaths lists the identifier fields accepted in a payment reply.
var paymentIDPaths = []string{"paymentId", "payment_id", "id"}

// Options configure a PaymentClient.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client      // nil uses NewClient(0); deadlines come from the context
	Headers    map[string]string // extra headers sent with every request
	Propagate  bool              // inject W3C trace context
	UserAgent  string
}

// PaymentClient talks to the payment endpoint. It is safe for concurrent use.
type PaymentClient struct {
	base      string
	http      *http.Client
	headers   http.Header
	propagate bool
	userAgent string
	newKey    func() string
}

var _ runner.Client = (*PaymentClient)(nil)

func NewPaymentClient(opt Options) (*PaymentClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opt.BaseURL), "/")
	if base == "" {
		return nil, errors.New("target URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported target scheme %q", u.Scheme)
	}

	headers, err := buildHeaders(opt.Headers)
	if err != nil {
		return nil, err
	}

	client := opt.HTTPClient
	if client == nil {
		client = NewClient(0)
	}
	userAgent := opt.UserAgent
	if userAgent == "" {
		userAgent = "paysim"
	}

	return &PaymentClient{
		base:      base,
		http:      client,
		headers:   headers,
		propagate: opt.Propagate,
		userAgent: userAgent,
		newKey:    uuid.NewString,
	}, nil
}

// Health returns nil when GET /health answers 200.
func (c *PaymentClient) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// SubmitPayment posts one payment. Non-200 replies are returned as *runner.HTTPError.
func (c *PaymentClient) SubmitPayment(ctx context.Context, p payload.Payment) (runner.Receipt, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return runner.Receipt{}, fmt.Errorf("encode payment: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, paymentsPath, body)
	if err != nil {
		return runner.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", c.newKey())

	resp, err := c.http.Do(req)
	if err != nil {
		return runner.Receipt{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil && resp.StatusCode == http.StatusOK {
		return runner.Receipt{StatusCode: resp.StatusCode}, fmt.Errorf("read payment response: %w", err)
	}

	// A rejection is a rejection even when its body cannot be read.
	if resp.StatusCode != http.StatusOK {
		return runner.Receipt{StatusCode: resp.StatusCode}, &runner.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       snippet(data),
		}
	}
	return parseReceipt(resp.StatusCode, data)
}

func (c *PaymentClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}
	return req, nil
}

// parseReceipt extracts the settled amount and payment id from a 200 reply.
// A body that is not JSON is a protocol fault.
func parseReceipt(status int, data []byte) (runner.Receipt, error) {
	receipt := runner.Receipt{StatusCode: status}
	if len(bytes.TrimSpace(data)) == 0 {
		return receipt, nil
	}
	if !gjson.ValidBytes(data) {
		return receipt, fmt.Errorf("malformed payment response: %s", snippet(data))
	}

	if amount := gjson.GetBytes(data, "amount"); amount.Type == gjson.Number {
		receipt.Amount = amount.Float()
		receipt.HasAmount = true
	}
	for _, path := range paymentIDPaths {
		if id := gjson.GetBytes(data, path); id.Exists() && id.String() != "" {
			receipt.PaymentID = id.String()
			break
		}
	}
	return receipt, nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if r := []rune(s); len(r) > maxErrorBody {
		s = string(r[:maxErrorBody]) + "..."
	}
	return s
}
