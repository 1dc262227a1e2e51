package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Registration("joined")
		m.Settlement("settled", decimal.NewFromInt(10))
		m.Withdrawal("PENDING")
		m.Refunds(3)
		m.Deposit("COMPLETED")
		m.NotificationFailed()
	})
}

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Registration("joined")
	m.Registration("joined")
	m.Registration("capacity_exceeded")
	m.Settlement("settled", decimal.RequireFromString("80.50"))
	m.Settlement("already_settled", decimal.Zero)
	m.Refunds(0)
	m.Refunds(4)

	expected := `
# HELP arena_registrations_total Tournament join attempts by outcome.
# TYPE arena_registrations_total counter
arena_registrations_total{outcome="capacity_exceeded"} 1
arena_registrations_total{outcome="joined"} 2
# HELP arena_prizes_paid_rupees_total Winning credits paid out by settlements.
# TYPE arena_prizes_paid_rupees_total counter
arena_prizes_paid_rupees_total 80.5
# HELP arena_entry_fee_refunds_total Entry fees refunded after cancellations.
# TYPE arena_entry_fee_refunds_total counter
arena_entry_fee_refunds_total 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"arena_registrations_total", "arena_prizes_paid_rupees_total", "arena_entry_fee_refunds_total"))
}
