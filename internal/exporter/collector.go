package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/paysim/internal/runner"
)

const namespace = "paysim"

// Collector turns scheduler events into Prometheus metrics. It owns its
// registry so several runs in one process never collide.
type Collector struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	settled   *prometheus.CounterVec
	cycles    *prometheus.CounterVec
	batchSize prometheus.Gauge
	runState  prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Payment requests dispatched, by mode and outcome status.",
		}, []string{"mode", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Client-observed payment request duration.",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		}, []string{"status"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_amount_total",
			Help:      "Sum of amounts confirmed by the payment API.",
		}, []string{"currency"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Dispatch cycles started.",
		}, []string{"mode"}),
		batchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Size of the most recent dispatch cycle.",
		}),
		runState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_state",
			Help:      "Scheduler state: 0 idle, 1 dispatching, 2 draining, 3 done.",
		}),
	}

	c.registry.MustRegister(
		c.requests,
		c.durations,
		c.settled,
		c.cycles,
		c.batchSize,
		c.runState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Observe(e runner.Event) {
	switch e.Kind {
	case runner.EventStateChanged:
		c.runState.Set(float64(e.State))
	case runner.EventCycleStarted:
		c.cycles.WithLabelValues(string(e.Mode)).Inc()
		c.batchSize.Set(float64(e.Size))
	case runner.EventOutcome:
		o := e.Outcome
		status := string(o.Status)
		c.requests.WithLabelValues(string(e.Mode), status).Inc()
		c.durations.WithLabelValues(status).Observe(o.DurationSeconds())
		if o.Succeeded() {
			c.settled.WithLabelValues(string(o.Payment.Currency)).Add(o.SettledAmount)
		}
	}
}
