package payroll

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts payroll outcomes.
type Metrics struct {
	calculations   *prometheus.CounterVec
	payments       prometheus.Counter
	commitFailures *prometheus.CounterVec
}

// NewMetrics registers payroll collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetpay_payroll_calculations_total",
		Help: "Payroll computations partitioned by outcome.",
	}, []string{"outcome"})
	payments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleetpay_payroll_payments_total",
		Help: "Payments recorded against calculation records.",
	})
	commitFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetpay_payroll_commit_failures_total",
		Help: "Write-phase failures requiring reconciliation, by stage.",
	}, []string{"stage"})
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(calculations, payments, commitFailures)
	return &Metrics{calculations: calculations, payments: payments, commitFailures: commitFailures}
}

func (m *Metrics) observeCalculation(outcome string) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observePayment() {
	if m == nil {
		return
	}
	m.payments.Inc()
}

func (m *Metrics) observeCommitFailure(stage string) {
	if m == nil {
		return
	}
	m.commitFailures.WithLabelValues(stage).Inc()
}
