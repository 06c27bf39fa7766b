// Package metrics exposes the gateway's Prometheus instrumentation. All
// helper methods are nil-safe so packages can be wired without metrics in
// tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	PartnerCallsTotal   *prometheus.CounterVec
	PartnerCallDuration *prometheus.HistogramVec
	BreakerState        *prometheus.GaugeVec
	QueueJobsTotal      *prometheus.CounterVec
	PollerRunsTotal     *prometheus.CounterVec
	OrdersByStatus      *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PartnerCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_partner_calls_total",
			Help: "Partner exchange calls by exchange, API and outcome.",
		}, []string{"exchange", "api", "outcome"}),
		PartnerCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_partner_call_duration_seconds",
			Help:    "Partner exchange call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"exchange"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_breaker_state",
			Help: "Circuit breaker state per exchange (0=CLOSED, 1=OPEN, 2=HALF_OPEN).",
		}, []string{"exchange"}),
		QueueJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_queue_jobs_total",
			Help: "Submission queue jobs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		PollerRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_poller_runs_total",
			Help: "Reconciliation poller runs by job and outcome.",
		}, []string{"job", "outcome"}),
		OrdersByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_orders_by_status",
			Help: "Current order counts by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.PartnerCallsTotal,
		m.PartnerCallDuration,
		m.BreakerState,
		m.QueueJobsTotal,
		m.PollerRunsTotal,
		m.OrdersByStatus,
	)
	return m
}

// ObserveCall implements partner.CallObserver.
func (m *Metrics) ObserveCall(exchange, api, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.PartnerCallsTotal.WithLabelValues(exchange, api, outcome).Inc()
	m.PartnerCallDuration.WithLabelValues(exchange).Observe(latency.Seconds())
}

// ObserveBreakerState implements partner.CallObserver.
func (m *Metrics) ObserveBreakerState(exchange, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "OPEN":
		v = 1
	case "HALF_OPEN":
		v = 2
	}
	m.BreakerState.WithLabelValues(exchange).Set(v)
}

func (m *Metrics) ObserveQueueJob(kind, outcome string) {
	if m == nil {
		return
	}
	m.QueueJobsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObservePollerRun(job, outcome string) {
	if m == nil {
		return
	}
	m.PollerRunsTotal.WithLabelValues(job, outcome).Inc()
}
