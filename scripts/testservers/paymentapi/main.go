// Command paymentapi is a mock payment API for manual end-to-end runs of
// paysim. It answers /health, POST /api/payments and /metrics.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type paymentRequest struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	CustomerID string  `json:"customerId"`
	Type       string  `json:"type"`
}

type paymentResponse struct {
	PaymentID        string  `json:"paymentId"`
	Status           string  `json:"status"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	Timestamp        string  `json:"timestamp"`
	ProcessingTimeMs float64 `json:"processingTimeMs"`
}

type serverOptions struct {
	MinLatency  time.Duration
	MaxLatency  time.Duration
	FailureRate float64
}

type server struct {
	opt    serverOptions
	logger *zap.Logger
	sleep  func(time.Duration)

	mu  sync.Mutex
	rnd *rand.Rand

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	amounts  *prometheus.CounterVec
}

func newServer(opt serverOptions, rnd *rand.Rand, logger *zap.Logger) *server {
	s := &server{
		opt:      opt,
		logger:   logger,
		sleep:    time.Sleep,
		rnd:      rnd,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_requests_total",
			Help: "Total number of payment requests",
		}, []string{"method", "endpoint", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_request_duration_seconds",
			Help:    "Time spent processing payment requests",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		}, []string{"method", "endpoint"}),
		amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_amount_total",
			Help: "Sum of accepted payment amounts",
		}, []string{"currency"}),
	}
	s.registry.MustRegister(s.requests, s.latency, s.amounts)
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	mux.HandleFunc("/api/payments", s.instrument("/api/payments", s.handlePayment))
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		s.latency.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handlePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	start := time.Now()

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}
	if req.Amount <= 0 {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "Amount must be positive"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	delay, fail := s.draw()
	s.sleep(delay)

	if fail {
		s.logger.Info("payment declined",
			zap.String("customer_id", req.CustomerID),
			zap.Float64("amount", req.Amount),
			zap.String("idempotency_key", r.Header.Get("Idempotency-Key")),
		)
		respondJSON(w, http.StatusPaymentRequired, map[string]any{"error": "Payment processing failed"})
		return
	}

	s.amounts.WithLabelValues(req.Currency).Add(req.Amount)
	respondJSON(w, http.StatusOK, paymentResponse{
		PaymentID:        "pay_" + uuid.NewString(),
		Status:           "completed",
		Amount:           req.Amount,
		Currency:         req.Currency,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	})
}

// draw picks the simulated processing delay and whether the payment fails.
func (s *server) draw() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.opt.MinLatency
	if span := s.opt.MaxLatency - s.opt.MinLatency; span > 0 {
		delay += time.Duration(s.rnd.Int63n(int64(span)))
	}
	return delay, s.rnd.Float64() < s.opt.FailureRate
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func main() {
	flags := pflag.NewFlagSet("paymentapi", pflag.ExitOnError)
	port := flags.Int("port", 8081, "Listening port")
	minLatency := flags.Duration("min-latency", 50*time.Millisecond, "Minimum simulated processing time")
	maxLatency := flags.Duration("max-latency", 500*time.Millisecond, "Maximum simulated processing time")
	failureRate := flags.Float64("failure-rate", 0.02, "Share of payments declined with HTTP 402")
	_ = flags.Parse(os.Args[1:])

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	s := newServer(serverOptions{
		MinLatency:  *minLatency,
		MaxLatency:  *maxLatency,
		FailureRate: *failureRate,
	}, rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("payment API listening", zap.String("addr", addr))
	srv := &http.Server{Addr: addr, Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
