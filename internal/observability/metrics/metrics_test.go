package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestBookingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveConfirmed()
	m.ObserveConfirmed()
	m.ObserveConflict()
	m.ObserveReminderScheduled()
	m.ObserveReminderCancelled()
	m.ObserveCancellation()

	assert.Equal(t, 2.0, counterValue(t, m.confirmedTotal))
	assert.Equal(t, 1.0, counterValue(t, m.conflictsTotal))
	assert.Equal(t, 1.0, counterValue(t, m.remindersScheduled))
	assert.Equal(t, 1.0, counterValue(t, m.remindersCancelled))
	assert.Equal(t, 1.0, counterValue(t, m.cancellationsTotal))
}

func TestBookingMetricsVecLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveInbound("message", "ok")
	m.ObserveInbound("message", "ok")
	m.ObserveInbound("selection", "error")
	m.ObserveReminderFired("delivered")
	m.ObserveHandleLatency("awaiting_date", 0.02)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	inbound := byName["salon_conversation_inbound_events_total"]
	require.NotNil(t, inbound)
	assert.Len(t, inbound.GetMetric(), 2)

	fired := byName["salon_reminder_fired_total"]
	require.NotNil(t, fired)
	assert.Equal(t, 1.0, fired.GetMetric()[0].GetCounter().GetValue())
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveInbound("message", "ok")
	m.ObserveConfirmed()
	m.ObserveConflict()
	m.ObserveCancellation()
	m.ObserveReminderScheduled()
	m.ObserveReminderFired("delivered")
	m.ObserveReminderCancelled()
	m.ObserveHandleLatency("awaiting_name", 0.1)
}
