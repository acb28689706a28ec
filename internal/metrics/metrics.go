// Package metrics exposes Prometheus counters for the action API and the
// deposit ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels of an API action.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder is what the HTTP layer reports into.
type Recorder interface {
	RecordAction(action, outcome string, duration time.Duration)
	RecordDeposit(amount int)
	RecordUndo()
	RecordLoginThrottled()
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	actions        *prometheus.CounterVec
	actionLatency  *prometheus.HistogramVec
	deposits       prometheus.Counter
	depositedBaht  prometheus.Counter
	undos          prometheus.Counter
	loginThrottled prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bahtsaving_actions_total",
			Help: "API actions handled, by action and outcome.",
		}, []string{"action", "outcome"}),
		actionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bahtsaving_action_duration_seconds",
			Help:    "Time spent handling an API action.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		deposits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bahtsaving_deposits_total",
			Help: "Deposits recorded.",
		}),
		depositedBaht: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bahtsaving_deposited_baht_total",
			Help: "Baht recorded by deposits, before undos.",
		}),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bahtsaving_deposit_undos_total",
			Help: "Deposits undone.",
		}),
		loginThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bahtsaving_login_throttled_total",
			Help: "Login attempts rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		c.actions,
		c.actionLatency,
		c.deposits,
		c.depositedBaht,
		c.undos,
		c.loginThrottled,
	)
	return c
}

func (c *Collector) RecordAction(action, outcome string, duration time.Duration) {
	c.actions.WithLabelValues(action, outcome).Inc()
	c.actionLatency.WithLabelValues(action).Observe(duration.Seconds())
}

func (c *Collector) RecordDeposit(amount int) {
	c.deposits.Inc()
	c.depositedBaht.Add(float64(amount))
}

func (c *Collector) RecordUndo() {
	c.undos.Inc()
}

func (c *Collector) RecordLoginThrottled() {
	c.loginThrottled.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordAction(string, string, time.Duration) {}
func (Nop) RecordDeposit(int) {}
func (Nop) RecordUndo() {}
func (Nop) RecordLoginThrottled() {}
