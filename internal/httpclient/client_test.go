package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/torosent/paysim/internal/payload"
	"github.com/torosent/paysim/internal/runner"
)

func testPayment() payload.Payment {
	return payload.Payment{
		Amount:     123.45,
		Currency:   payload.CurrencyEUR,
		CustomerID: "cust_00042",
		Type:       payload.PaymentTypeStandard,
	}
}

func newTestClient(t *testing.T, url string, opt Options) *PaymentClient {
	t.Helper()
	opt.BaseURL = url
	c, err := NewPaymentClient(opt)
	if err != nil {
		t.Fatalf("NewPaymentClient() error = %v", err)
	}
	return c
}

func TestSubmitPaymentSuccess(t *testing.T) {
	var got map[string]interface{}
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/payments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"paymentId":"pay_abc","amount":120.00,"currency":"EUR","status":"completed"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/", Options{Headers: map[string]string{"x-env": "test"}})
	receipt, err := c.SubmitPayment(context.Background(), testPayment())
	if err != nil {
		t.Fatalf("SubmitPayment() error = %v", err)
	}
	if receipt.PaymentID != "pay_abc" || !receipt.HasAmount || receipt.Amount != 120 || receipt.StatusCode != 200 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	want := map[string]interface{}{"amount": 123.45, "currency": "EUR", "customerId": "cust_00042", "type": "standard"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("body[%s] = %v, want %v", k, got[k], v)
		}
	}
	if headers.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", headers.Get("Content-Type"))
	}
	if headers.Get("X-Env") != "test" {
		t.Errorf("custom header missing: %v", headers)
	}
	if len(headers.Get("Idempotency-Key")) != 36 {
		t.Errorf("Idempotency-Key = %q, want a UUID", headers.Get("Idempotency-Key"))
	}
}

func TestSubmitPaymentIdentifierFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantID     string
		wantAmount bool
	}{
		{"snake case", `{"payment_id":"p1","amount":5}`, "p1", true},
		{"plain id", `{"id":"p2"}`, "p2", false},
		{"amount as string ignored", `{"paymentId":"p3","amount":"5.00"}`, "p3", false},
		{"empty body", ``, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			receipt, err := newTestClient(t, server.URL, Options{}).SubmitPayment(context.Background(), testPayment())
			if err != nil {
				t.Fatalf("SubmitPayment() error = %v", err)
			}
			if receipt.PaymentID != tt.wantID || receipt.HasAmount != tt.wantAmount {
				t.Fatalf("receipt = %+v", receipt)
			}
		})
	}
}

func TestSubmitPaymentMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, Options{}).SubmitPayment(context.Background(), testPayment())
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	var httpErr *runner.HTTPError
	if errors.As(err, &httpErr) {
		t.Fatal("malformed 200 body must not be reported as an HTTP failure")
	}
}

func TestSubmitPaymentNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":"Insufficient funds"}`+strings.Repeat(" ", 500))
	}))
	defer server.Close()

	receipt, err := newTestClient(t, server.URL, Options{}).SubmitPayment(context.Background(), testPayment())
	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *runner.HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusPaymentRequired || receipt.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("unexpected status: %d / %d", httpErr.StatusCode, receipt.StatusCode)
	}
	if httpErr.Body != `{"error":"Insufficient funds"}` {
		t.Fatalf("unexpected body snippet %q", httpErr.Body)
	}
	if !strings.HasPrefix(httpErr.Error(), "HTTP 402") {
		t.Fatalf("unexpected error text %q", httpErr.Error())
	}
}

func TestSubmitPaymentNon200WithTruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declare more than is written so the client's body read fails.
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "partial")
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, Options{}).SubmitPayment(context.Background(), testPayment())
	var httpErr *runner.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *runner.HTTPError for an unreadable rejection, got %v", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", httpErr.StatusCode)
	}
}

func TestSnippetTruncatesByRune(t *testing.T) {
	got := snippet([]byte(strings.Repeat("é", maxErrorBody+50)))
	if !utf8.ValidString(got) {
		t.Fatalf("snippet split a rune: %q", got)
	}
	want := strings.Repeat("é", maxErrorBody) + "..."
	if got != want {
		t.Fatalf("snippet kept %d runes, want %d", utf8.RuneCountInString(got)-3, maxErrorBody)
	}
	if short := snippet([]byte("  ok  ")); short != "ok" {
		t.Fatalf("snippet(short) = %q", short)
	}
}

func TestSubmitPaymentContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server.URL, Options{}).SubmitPayment(ctx, testPayment())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, Options{})
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	status.Store(http.StatusServiceUnavailable)
	if err := c.Health(context.Background()); err == nil {
		t.Fatal("expected unhealthy for 503")
	}
}

func TestHealthTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if err := newTestClient(t, url, Options{}).Health(context.Background()); err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestPropagatesTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var traceparent string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		traceparent = r.Header.Get("Traceparent")
		mu.Unlock()
		_, _ = io.WriteString(w, `{"paymentId":"p"}`)
	}))
	defer server.Close()

	ctx, span := tp.Tracer("test").Start(context.Background(), "payment submit")
	defer span.End()

	if _, err := newTestClient(t, server.URL, Options{Propagate: true}).SubmitPayment(ctx, testPayment()); err != nil {
		t.Fatalf("SubmitPayment() error = %v", err)
	}
	mu.Lock()
	first := traceparent
	mu.Unlock()
	if !strings.Contains(first, span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent %q does not carry trace id", first)
	}

	if _, err := newTestClient(t, server.URL, Options{}).SubmitPayment(ctx, testPayment()); err != nil {
		t.Fatalf("SubmitPayment() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if traceparent != "" {
		t.Fatalf("traceparent injected with propagation off: %q", traceparent)
	}
}

func TestNewPaymentClientValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Options
	}{
		{"empty url", Options{}},
		{"bad scheme", Options{BaseURL: "ftp://example.com"}},
		{"invalid header key", Options{BaseURL: "http://x", Headers: map[string]string{" ": "v"}}},
		{"header key with newline", Options{BaseURL: "http://x", Headers: map[string]string{"X-Bad\n": "v"}}},
		{"header key with leading carriage return", Options{BaseURL: "http://x", Headers: map[string]string{"\rX-Bad": "v"}}},
		{"header key with inner newline", Options{BaseURL: "http://x", Headers: map[string]string{"X-\r\nBad": "v"}}},
		{"header value with newline", Options{BaseURL: "http://x", Headers: map[string]string{"X-Ok": "a\r\nb"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPaymentClient(tt.opt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout)
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}

	elapsed := time.Since(start)
	if elapsed < timeout {
		t.Fatalf("request returned too quickly: %s < %s", elapsed, timeout)
	}
	if elapsed > timeout*5 {
		t.Fatalf("request took too long: %s", elapsed)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConns == 0 || transport.IdleConnTimeout == 0 {
		t.Fatalf("expected transport to keep idle connections")
	}
}
