// Package metrics holds the Prometheus collectors for money-moving operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registrations  *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	prizesPaid     prometheus.Counter
	withdrawals    *prometheus.CounterVec
	refunds        prometheus.Counter
	deposits       *prometheus.CounterVec
	notifyFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena",
			Name:      "registrations_total",
			Help:      "Tournament join attempts by outcome.",
		}, []string{"outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena",
			Name:      "settlements_total",
			Help:      "Prize distributions by outcome.",
		}, []string{"outcome"}),
		prizesPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena",
			Name:      "prizes_paid_rupees_total",
			Help:      "Winning credits paid out by settlements.",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena",
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests by status transition.",
		}, []string{"status"}),
		refunds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena",
			Name:      "entry_fee_refunds_total",
			Help:      "Entry fees refunded after cancellations.",
		}),
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena",
			Name:      "deposits_total",
			Help:      "Payment orders by final status.",
		}, []string{"status"}),
		notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered.",
		}),
	}
	reg.MustRegister(m.registrations, m.settlements, m.prizesPaid, m.withdrawals, m.refunds, m.deposits, m.notifyFailures)
	return m
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Settlement(outcome string, paid decimal.Decimal) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	if paid.IsPositive() {
		m.prizesPaid.Add(paid.InexactFloat64())
	}
}

func (m *Metrics) Withdrawal(status string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(status).Inc()
}

func (m *Metrics) Refunds(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.refunds.Add(float64(n))
}

func (m *Metrics) Deposit(status string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(status).Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}
