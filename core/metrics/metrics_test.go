package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	RegisterTenantGauge(reg, func() int { return 3 })

	m.NodeEvent("track_ended")
	m.Reconcile(OutcomePlay)
	m.Reconcile(OutcomePlay)
	m.Command("skip", nil)
	m.Command("skip", errors.New("boom"))
	m.NotificationFailed()
	m.BacklogAdd(2)
	m.BacklogAdd(-1)

	values := counterValues(t, reg)
	assert.Equal(t, 1.0, values["guildfm_node_events_total|track_ended"])
	assert.Equal(t, 2.0, values["guildfm_reconcile_outcomes_total|play"])
	assert.Equal(t, 1.0, values["guildfm_commands_total|skip|ok"])
	assert.Equal(t, 1.0, values["guildfm_commands_total|skip|error"])
	assert.Equal(t, 1.0, values["guildfm_notification_failures_total"])
	assert.Equal(t, 1.0, values["guildfm_dispatch_backlog"])
	assert.Equal(t, 3.0, values["guildfm_tenants"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.NodeEvent("track_started")
		m.Reconcile(OutcomeStale)
		m.Command("np", nil)
		m.NotificationFailed()
		m.NodeCommandFailed("play")
		m.BacklogAdd(1)
	})
}
