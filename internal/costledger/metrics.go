package costledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the ledger's burn rate, the Circuit Breaker's state, and
// injection-governed throughput as Prometheus collectors, registered against
// reg at construction time.
type Metrics struct {
	burnRate        prometheus.Gauge
	breakerState    prometheus.Gauge
	injectionBudget prometheus.Gauge
	operationsTotal prometheus.Counter
}

// breakerStateValue maps a BreakerState onto the gauge's numeric scale:
// closed=0, half_open=1, open=2, matching severity order.
func breakerStateValue(s BreakerState) float64 {
	switch s {
	case BreakerHalfOpen:
		return 1
	case BreakerOpen:
		return 2
	default:
		return 0
	}
}

// NewMetrics registers the cost-ledger collectors against reg. reg must not
// be nil; pass prometheus.NewRegistry() for an isolated registry or
// prometheus.DefaultRegisterer to expose via the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		burnRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cjo",
			Subsystem: "cost_ledger",
			Name:      "burn_rate",
			Help:      "Cost spent per second over the ledger's trailing observation window.",
		}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cjo",
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0=closed, 1=half_open, 2=open.",
		}),
		injectionBudget: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cjo",
			Subsystem: "governor",
			Name:      "injection_budget",
			Help:      "phi-Governor's current injection budget (<= phi^-1).",
		}),
		operationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cjo",
			Subsystem: "worker_pool",
			Name:      "operations_total",
			Help:      "Critical-path operations (dimension scores + dog votes) completed through bounded worker pools.",
		}),
	}
	reg.MustRegister(m.burnRate, m.breakerState, m.injectionBudget, m.operationsTotal)
	return m
}

// Observe samples ledger and breaker for the trailing window and updates
// the burn-rate and breaker-state gauges.
func (m *Metrics) Observe(ledger *Ledger, breaker *Breaker, governor *Governor, window time.Duration) {
	if ledger != nil {
		m.burnRate.Set(ledger.BurnRate(window))
	}
	if breaker != nil {
		m.breakerState.Set(breakerStateValue(breaker.State()))
	}
	if governor != nil {
		m.injectionBudget.Set(governor.InjectionBudget())
	}
}

// IncOperations increments the worker-pool throughput counter by n.
func (m *Metrics) IncOperations(n int) {
	if n <= 0 {
		return
	}
	m.operationsTotal.Add(float64(n))
}
